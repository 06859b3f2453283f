package brokerClient

import (
	"bytes"
	"callbackbroker/interfaces"
	"callbackbroker/internals/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
)

var _ interfaces.BrokerConnector = (*RESTClient)(nil)

// RESTClient talks to the broker's REST gateway. Like BrokerClient it keeps a
// list of known nodes and moves to the next healthy one when the current node
// is closing or cannot be dialed.
type RESTClient struct {
	mu          sync.RWMutex
	KnownNodes  []string
	CurrentNode string

	client *http.Client
}

// NewRESTClient accepts nodes as base URLs or host:port pairs; the latter get
// an http:// prefix.
func NewRESTClient(nodes []string, client *http.Client) *RESTClient {
	if client == nil {
		client = &http.Client{}
	}
	known := make([]string, 0, len(nodes))
	for _, node := range nodes {
		node = strings.TrimRight(strings.TrimSpace(node), "/")
		if !strings.Contains(node, "://") {
			node = "http://" + node
		}
		known = append(known, node)
	}
	return &RESTClient{KnownNodes: known, client: client}
}

func (c *RESTClient) Connect(ctx context.Context) error {
	var errs []error
	for _, node := range c.KnownNodes {
		if err := c.checkHealth(ctx, node); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", node, err))
			continue
		}
		c.mu.Lock()
		c.CurrentNode = node
		c.mu.Unlock()
		return nil
	}
	if len(errs) == 0 {
		return ErrNoNodes
	}
	return fmt.Errorf("%w: %w", ErrNoNodes, errors.Join(errs...))
}

func (c *RESTClient) GetCurrentNode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CurrentNode
}

func (c *RESTClient) Subscribe(ctx context.Context, callbackURL string) error {
	return c.post(ctx, "/v1/subscribe", map[string]string{"client_callback_url": callbackURL})
}

func (c *RESTClient) Publish(ctx context.Context, message models.Message) error {
	return c.post(ctx, "/v1/publish", message)
}

func (c *RESTClient) Close() error {
	c.mu.Lock()
	c.CurrentNode = ""
	c.mu.Unlock()
	c.client.CloseIdleConnections()
	return nil
}

func (c *RESTClient) checkHealth(ctx context.Context, node string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, node+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %s", resp.Status)
	}
	return nil
}

// post retries once on another node when the current one refused the request
// without accepting it: a 503 from a closing broker or a failed dial.
func (c *RESTClient) post(ctx context.Context, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	node := c.GetCurrentNode()
	if node == "" {
		if err := c.Connect(ctx); err != nil {
			return err
		}
		node = c.GetCurrentNode()
	}

	err = c.send(ctx, node+path, payload)
	if !retryable(err) {
		return err
	}
	if cerr := c.Connect(ctx); cerr != nil {
		return errors.Join(err, cerr)
	}
	return c.send(ctx, c.GetCurrentNode()+path, payload)
}

func (c *RESTClient) send(ctx context.Context, url string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&body)
	if body.Error == "" {
		body.Error = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", models.ErrMalformedInput, body.Error)
	case http.StatusServiceUnavailable:
		return fmt.Errorf("%w: %s", models.ErrBrokerClosed, body.Error)
	default:
		return fmt.Errorf("broker returned %s: %s", resp.Status, body.Error)
	}
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, models.ErrBrokerClosed) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
