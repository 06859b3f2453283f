package delivery

import (
	"callbackbroker/interfaces"
	"callbackbroker/internals/models"
	"context"
	"fmt"
	"net/url"
	"strings"
)

// Router picks a Deliverer by the callback URL scheme.
type Router struct {
	routes map[string]interfaces.Deliverer
}

func NewRouter() *Router {
	return &Router{routes: make(map[string]interfaces.Deliverer)}
}

// Handle registers d for every given scheme. Not safe to call once the
// router is in use.
func (r *Router) Handle(d interfaces.Deliverer, schemes ...string) *Router {
	for _, scheme := range schemes {
		r.routes[strings.ToLower(scheme)] = d
	}
	return r
}

func (r *Router) Deliver(ctx context.Context, callbackURL string, payload []byte) error {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}
	d, ok := r.routes[strings.ToLower(u.Scheme)]
	if !ok {
		return fmt.Errorf("%w: no deliverer for scheme %q", models.ErrDeliveryFailed, u.Scheme)
	}
	return d.Deliver(ctx, callbackURL, payload)
}
