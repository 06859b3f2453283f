package delivery

import (
	"bytes"
	"callbackbroker/internals/models"
	"context"
	"fmt"
	"github.com/google/uuid"
	"io"
	"net/http"
)

const (
	HeaderDeliveryID = "X-Delivery-ID"
	userAgent        = "callbackbroker/1.0"
	maxDrainBytes    = 64 << 10
)

// HTTPDeliverer POSTs the JSON payload to http and https callbacks. Any
// transport error or non-2xx status is a failed delivery.
type HTTPDeliverer struct {
	client *http.Client
}

func NewHTTPDeliverer(client *http.Client) *HTTPDeliverer {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPDeliverer{client: client}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, callbackURL string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", models.ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(HeaderDeliveryID, uuid.NewString())

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s responded %d", models.ErrDeliveryFailed, callbackURL, resp.StatusCode)
	}
	return nil
}
