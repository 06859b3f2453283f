package models

import (
	"fmt"
	"net/url"
	"strings"
)

// Message is what a publisher hands to the broker and what every subscriber
// receives. It is never mutated after Publish accepts it.
type Message struct {
	Author   string `json:"author"`
	Contents string `json:"contents"`
}

// Subscription is a registered callback target.
type Subscription struct {
	CallbackURL string `json:"client_callback_url"`
}

// NewSubscription normalizes and validates a callback URL. A URL without a
// scheme is treated as plain http.
func NewSubscription(callbackURL string) (Subscription, error) {
	raw := strings.TrimSpace(callbackURL)
	if raw == "" {
		return Subscription{}, fmt.Errorf("%w: callback url is empty", ErrMalformedInput)
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Subscription{}, fmt.Errorf("%w: callback url: %v", ErrMalformedInput, err)
	}
	if u.Host == "" {
		return Subscription{}, fmt.Errorf("%w: callback url %q has no host", ErrMalformedInput, callbackURL)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https", "redis", "rediss":
	default:
		return Subscription{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}

	return Subscription{CallbackURL: u.String()}, nil
}
