package gateway_test

import (
	"callbackbroker/internals/gateway"
	"callbackbroker/internals/models"
	"callbackbroker/services/broker"
	"callbackbroker/services/delivery"
	"context"
	"encoding/json"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newBroker(t *testing.T) *broker.Broker {
	t.Helper()
	b := broker.NewBroker(delivery.NewHTTPDeliverer(nil), broker.WithDeliveryTimeout(time.Second))
	t.Cleanup(func() {
		_ = b.Close(context.Background())
	})
	return b
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHTTPSubscribe(t *testing.T) {
	logger, _ := test.NewNullLogger()
	b := newBroker(t)
	h := gateway.NewHTTPGateway(b, logger, 0, 0).Handler()

	rec := do(t, h, http.MethodPost, "/v1/subscribe", "application/json", `{"client_callback_url":"http://sub1/inbox"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"subscribed"}`, rec.Body.String())
	assert.Equal(t, 1, b.Stats().Subscribers)
}

func TestHTTPRejectsMalformedRequests(t *testing.T) {
	logger, _ := test.NewNullLogger()
	b := newBroker(t)
	h := gateway.NewHTTPGateway(b, logger, 64, 0).Handler()

	tests := []struct {
		name        string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"subscribe without url", "/v1/subscribe", "application/json", `{}`, http.StatusBadRequest},
		{"subscribe bad json", "/v1/subscribe", "application/json", `{"client_callback_url":`, http.StatusBadRequest},
		{"subscribe wrong type", "/v1/subscribe", "application/json", `{"client_callback_url":42}`, http.StatusBadRequest},
		{"subscribe empty url", "/v1/subscribe", "application/json", `{"client_callback_url":""}`, http.StatusBadRequest},
		{"subscribe bad scheme", "/v1/subscribe", "application/json", `{"client_callback_url":"ftp://x/y"}`, http.StatusBadRequest},
		{"subscribe not json", "/v1/subscribe", "text/plain", `{"client_callback_url":"http://a/b"}`, http.StatusUnsupportedMediaType},
		{"publish without contents", "/v1/publish", "application/json", `{"author":"alice"}`, http.StatusBadRequest},
		{"publish without author", "/v1/publish", "application/json", `{"contents":"hi"}`, http.StatusBadRequest},
		{"publish trailing data", "/v1/publish", "application/json", `{"author":"a","contents":"b"} {}`, http.StatusBadRequest},
		{"publish too large", "/v1/publish", "application/json", `{"author":"a","contents":"` + strings.Repeat("x", 128) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, tt.contentType, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}

	stats := b.Stats()
	assert.Zero(t, stats.Subscribers)
	assert.Zero(t, stats.Pending)
	assert.Zero(t, stats.Attempts)
}

func TestHTTPPublishAcceptsEmptyStrings(t *testing.T) {
	logger, _ := test.NewNullLogger()
	h := gateway.NewHTTPGateway(newBroker(t), logger, 0, 0).Handler()

	rec := do(t, h, http.MethodPost, "/v1/publish", "", `{"author":"","contents":""}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"published"}`, rec.Body.String())
}

func TestHTTPClosedBroker(t *testing.T) {
	logger, _ := test.NewNullLogger()
	b := newBroker(t)
	require.NoError(t, b.Close(context.Background()))
	h := gateway.NewHTTPGateway(b, logger, 0, 0).Handler()

	rec := do(t, h, http.MethodPost, "/v1/publish", "application/json", `{"author":"a","contents":"b"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = do(t, h, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHTTPHealth(t *testing.T) {
	logger, _ := test.NewNullLogger()
	b := newBroker(t)
	require.NoError(t, b.Subscribe(context.Background(), "http://sub/inbox"))
	h := gateway.NewHTTPGateway(b, logger, 0, 0).Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.EqualValues(t, 1, body["subscribers"])
}

func TestHTTPEndToEnd(t *testing.T) {
	received := make(chan string, 1)
	subscriber := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- r.URL.Path + " " + string(body)
	}))
	defer subscriber.Close()

	logger, _ := test.NewNullLogger()
	b := newBroker(t)
	srv := httptest.NewServer(gateway.NewHTTPGateway(b, logger, 0, 0).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/subscribe", "application/json",
		strings.NewReader(`{"client_callback_url":"`+subscriber.URL+`/inbox"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/v1/publish", "application/json",
		strings.NewReader(`{"author":"alice","contents":"hello"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	select {
	case got := <-received:
		path, body, _ := strings.Cut(got, " ")
		assert.Equal(t, "/inbox", path)
		assert.JSONEq(t, `{"author":"alice","contents":"hello"}`, body)
	case <-time.After(5 * time.Second):
		t.Fatal("subscriber never received the message")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, b.Close(ctx))
	assert.Equal(t, models.Stats{Subscribers: 1, Attempts: 1, Closed: true}, b.Stats())
}
