package models

import "context"

// Broker is the surface the gateways talk to.
type Broker interface {
	Subscribe(ctx context.Context, callbackURL string) error
	Publish(ctx context.Context, message Message) error
	Stats() Stats
}

// Stats is a point-in-time view of broker state.
type Stats struct {
	Subscribers int    `json:"subscribers"`
	Pending     int    `json:"pending"`
	Attempts    uint64 `json:"delivery_attempts"`
	Failures    uint64 `json:"delivery_failures"`
	Closed      bool   `json:"closed"`
}
