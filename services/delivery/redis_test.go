package delivery

import (
	"callbackbroker/internals/models"
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestParseRedisTarget(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want redisTarget
	}{
		{
			name: "default port",
			url:  "redis://cache/news",
			want: redisTarget{server: redisServer{addr: "cache:6379"}, channel: "news"},
		},
		{
			name: "password and db",
			url:  "redis://:secret@cache:6380/alerts?db=2",
			want: redisTarget{server: redisServer{addr: "cache:6380", password: "secret", db: 2}, channel: "alerts"},
		},
		{
			name: "tls",
			url:  "rediss://cache:6380/a/b",
			want: redisTarget{server: redisServer{addr: "cache:6380", tls: true}, channel: "a/b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRedisTarget(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRedisTargetErrors(t *testing.T) {
	for _, raw := range []string{
		"http://cache/news",
		"redis:///news",
		"redis://cache",
		"redis://cache/news?db=x",
	} {
		_, err := parseRedisTarget(raw)
		assert.ErrorIs(t, err, models.ErrDeliveryFailed, raw)
	}
}

func TestRedisDelivererUnreachableServer(t *testing.T) {
	d := NewRedisDeliverer(1)
	defer d.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := d.Deliver(ctx, "redis://127.0.0.1:1/news", []byte(`{}`))
	assert.ErrorIs(t, err, models.ErrDeliveryFailed)
	assert.Empty(t, d.clients)
}
