package broker

import (
	"callbackbroker/internals/models"
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

func (b *Broker) run() {
	defer close(b.done)
	b.logger.Info("delivery worker started")
	defer b.logger.Info("delivery worker stopped")

	for {
		message, targets, ok := b.next()
		if !ok {
			return
		}
		b.fanOut(message, targets)
	}
}

// next blocks until a message is queued or the broker is closed. It returns
// false once the broker is closed and nothing is left to drain, or when the
// drain was aborted. The snapshot is copied under the lock so delivery runs
// unlocked.
func (b *Broker) next() (models.Message, []string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.queue.empty() && !b.closed {
		b.cond.Wait()
	}
	if b.ctx.Err() != nil {
		return models.Message{}, nil, false
	}
	item, ok := b.queue.dequeueOldest()
	if !ok {
		return models.Message{}, nil, false
	}
	return item.message, b.registry.snapshot(item.audience), true
}

// fanOut attempts delivery to every target concurrently and returns once all
// attempts finished, so the next message never overtakes this one.
func (b *Broker) fanOut(message models.Message, targets []string) {
	if len(targets) == 0 {
		return
	}
	payload, err := json.Marshal(message)
	if err != nil {
		b.logger.WithError(err).Error("encode message")
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(targets))
	for _, target := range targets {
		go func(target string) {
			defer wg.Done()
			b.deliver(target, payload)
		}(target)
	}
	wg.Wait()
}

func (b *Broker) deliver(target string, payload []byte) {
	b.attempts.Add(1)
	log := b.logger.WithField("callback_url", target)

	ctx, cancel := b.ctx, context.CancelFunc(func() {})
	if b.timeout > 0 {
		ctx, cancel = context.WithTimeout(b.ctx, b.timeout)
	}
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			b.failures.Add(1)
			log.WithError(fmt.Errorf("panic: %v", r)).Error("delivery failed")
		}
	}()

	if err := b.deliverer.Deliver(ctx, target, payload); err != nil {
		b.failures.Add(1)
		log.WithError(err).Warn("delivery failed")
		return
	}
	log.Debug("delivered")
}
