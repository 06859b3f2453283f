package models

import (
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestNewSubscription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://sub1/inbox", "http://sub1/inbox"},
		{"  https://sub1:8443/inbox  ", "https://sub1:8443/inbox"},
		{"localhost:9000/v1/client/inbox", "http://localhost:9000/v1/client/inbox"},
		{"redis://cache:6379/news", "redis://cache:6379/news"},
	}
	for _, tt := range tests {
		sub, err := NewSubscription(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, sub.CallbackURL)
	}
}

func TestNewSubscriptionRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "http://", "://nohost", "http://[::1"} {
		_, err := NewSubscription(in)
		assert.ErrorIs(t, err, ErrMalformedInput, in)
	}

	_, err := NewSubscription("ftp://files/inbox")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	assert.ErrorIs(t, err, ErrMalformedInput)
}

func TestMessageWireFormat(t *testing.T) {
	b, err := json.Marshal(Message{Author: "alice", Contents: "hello"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"author":"alice","contents":"hello"}`, string(b))

	b, err = json.Marshal(Subscription{CallbackURL: "http://sub1/inbox"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"client_callback_url":"http://sub1/inbox"}`, string(b))
}
