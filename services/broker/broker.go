package broker

import (
	"callbackbroker/interfaces"
	"callbackbroker/internals/models"
	"context"
	"github.com/sirupsen/logrus"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

const DefaultDeliveryTimeout = 5 * time.Second

var _ models.Broker = (*Broker)(nil)

// Broker owns the subscription registry, the publish queue and the single
// delivery worker draining it. mu guards registry, queue and closed; cond is
// bound to mu and signalled whenever the queue gains a message or the broker
// closes.
type Broker struct {
	mu       sync.Mutex
	cond     *sync.Cond
	registry registry
	queue    queue
	closed   bool

	deliverer interfaces.Deliverer
	timeout   time.Duration
	logger    logrus.FieldLogger

	// ctx scopes every outbound delivery; cancelled when Close gives up waiting.
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	attempts atomic.Uint64
	failures atomic.Uint64
}

type Option func(*Broker)

// WithDeliveryTimeout bounds each outbound call. Zero disables the bound.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(b *Broker) {
		b.timeout = d
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(b *Broker) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBroker creates the broker and starts its delivery worker.
func NewBroker(deliverer interfaces.Deliverer, opts ...Option) *Broker {
	discard := logrus.New()
	discard.Out = io.Discard

	b := &Broker{
		deliverer: deliverer,
		timeout:   DefaultDeliveryTimeout,
		logger:    discard,
		done:      make(chan struct{}),
	}
	b.cond = sync.NewCond(&b.mu)
	for _, opt := range opts {
		opt(b)
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())

	go b.run()
	return b
}

// Subscribe appends callbackURL to the registry. The same URL may be
// registered any number of times; every entry receives its own delivery.
func (b *Broker) Subscribe(ctx context.Context, callbackURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sub, err := models.NewSubscription(callbackURL)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return models.ErrBrokerClosed
	}
	b.registry.register(sub)
	b.mu.Unlock()

	b.logger.WithField("callback_url", sub.CallbackURL).Info("subscription registered")
	return nil
}

// Publish enqueues message for delivery to every subscriber registered at
// this moment and returns without waiting for delivery.
func (b *Broker) Publish(ctx context.Context, message models.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return models.ErrBrokerClosed
	}
	b.queue.enqueue(message, b.registry.len())
	b.cond.Signal()
	b.mu.Unlock()

	b.logger.WithField("author", message.Author).Info("message accepted")
	return nil
}

func (b *Broker) Stats() models.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return models.Stats{
		Subscribers: b.registry.len(),
		Pending:     b.queue.len(),
		Attempts:    b.attempts.Load(),
		Failures:    b.failures.Load(),
		Closed:      b.closed,
	}
}

// Done is closed once the delivery worker has exited.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// Close stops accepting subscriptions and publishes and lets the worker drain
// what is already queued. If ctx ends first, in-flight deliveries are
// cancelled, the remaining queue is dropped and ctx.Err() is returned. Close
// always returns after the worker has exited.
//
// Later calls wait for the worker too and then return ErrBrokerClosed. Only
// the first caller's ctx can abort the drain; a later caller whose ctx ends
// first gets ctx.Err() and the drain carries on.
func (b *Broker) Close(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		select {
		case <-b.done:
			return models.ErrBrokerClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	b.closed = true
	b.cond.Broadcast()
	b.mu.Unlock()

	select {
	case <-b.done:
		b.cancel()
		return nil
	case <-ctx.Done():
		b.cancel()
		<-b.done
		return ctx.Err()
	}
}
