package broker

import "callbackbroker/internals/models"

// registry is append-only, so the first n entries at any later time are
// exactly the entries that existed when its length was n. Callers hold
// Broker.mu.
type registry struct {
	subs []models.Subscription
}

func (r *registry) register(sub models.Subscription) {
	r.subs = append(r.subs, sub)
}

func (r *registry) len() int {
	return len(r.subs)
}

// snapshot copies the callback URLs of the first n subscriptions.
func (r *registry) snapshot(n int) []string {
	if n > len(r.subs) {
		n = len(r.subs)
	}
	urls := make([]string, n)
	for i := 0; i < n; i++ {
		urls[i] = r.subs[i].CallbackURL
	}
	return urls
}
