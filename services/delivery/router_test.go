package delivery_test

import (
	"callbackbroker/interfaces"
	"callbackbroker/internals/models"
	"callbackbroker/services/delivery"
	"context"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestRouterDispatchesByScheme(t *testing.T) {
	var hits []string
	record := func(name string) interfaces.Deliverer {
		return interfaces.DeliverFunc(func(context.Context, string, []byte) error {
			hits = append(hits, name)
			return nil
		})
	}
	r := delivery.NewRouter().
		Handle(record("http"), "http", "https").
		Handle(record("redis"), "redis")
	ctx := context.Background()

	assert.NoError(t, r.Deliver(ctx, "http://a/inbox", nil))
	assert.NoError(t, r.Deliver(ctx, "HTTPS://a/inbox", nil))
	assert.NoError(t, r.Deliver(ctx, "redis://a/ch", nil))
	assert.Equal(t, []string{"http", "http", "redis"}, hits)

	assert.ErrorIs(t, r.Deliver(ctx, "ftp://a/inbox", nil), models.ErrDeliveryFailed)
}
