package interfaces

import (
	"callbackbroker/internals/models"
	"context"
)

// Deliverer performs one outbound delivery attempt of an already serialized
// message. The broker never retries on error.
type Deliverer interface {
	Deliver(ctx context.Context, callbackURL string, payload []byte) error
}

// DeliverFunc adapts a function to Deliverer.
type DeliverFunc func(ctx context.Context, callbackURL string, payload []byte) error

func (f DeliverFunc) Deliver(ctx context.Context, callbackURL string, payload []byte) error {
	return f(ctx, callbackURL, payload)
}

type Publisher interface {
	Publish(ctx context.Context, message models.Message) error
}

type Subscriber interface {
	Subscribe(ctx context.Context, callbackURL string) error
}

// BrokerConnector is a client-side handle on a broker cluster.
type BrokerConnector interface {
	Publisher
	Subscriber
	Connect(ctx context.Context) error
	GetCurrentNode() string
	Close() error
}
