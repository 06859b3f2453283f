package brokerClient

import (
	"callbackbroker/helpers"
	"callbackbroker/interfaces"
	"callbackbroker/internals/gateway"
	"callbackbroker/internals/models"
	"context"
	"errors"
	"fmt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"sync"
)

var ErrNoNodes = errors.New("failed to connect to any node")

var _ interfaces.BrokerConnector = (*BrokerClient)(nil)

// BrokerClient talks to the first healthy node in KnownNodes and moves on to
// the next one when the current node reports Unavailable.
type BrokerClient struct {
	mu          sync.RWMutex
	conn        *grpc.ClientConn
	KnownNodes  []string
	CurrentNode string

	dialOptions []grpc.DialOption
	checker     *helpers.ConnectionChecker
}

func NewBrokerClient(nodes []string, checker *helpers.ConnectionChecker, opts ...grpc.DialOption) *BrokerClient {
	if checker == nil {
		checker = helpers.NewConnectionChecker(0)
	}
	dialOptions := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return &BrokerClient{
		KnownNodes:  nodes,
		dialOptions: dialOptions,
		checker:     checker,
	}
}

func (c *BrokerClient) Connect(ctx context.Context) error {
	var errs []error
	for _, node := range c.KnownNodes {
		conn, err := grpc.NewClient(node, c.dialOptions...)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", node, err))
			continue
		}
		if err := c.checker.CheckConnection(ctx, conn); err != nil {
			_ = conn.Close()
			errs = append(errs, fmt.Errorf("%s: %w", node, err))
			continue
		}

		c.mu.Lock()
		previous := c.conn
		c.conn = conn
		c.CurrentNode = node
		c.mu.Unlock()
		if previous != nil {
			_ = previous.Close()
		}
		return nil
	}
	if len(errs) == 0 {
		return ErrNoNodes
	}
	return fmt.Errorf("%w: %w", ErrNoNodes, errors.Join(errs...))
}

func (c *BrokerClient) GetCurrentNode() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.CurrentNode
}

func (c *BrokerClient) Subscribe(ctx context.Context, callbackURL string) error {
	req, err := gateway.NewSubscribeRequest(callbackURL)
	if err != nil {
		return err
	}
	return c.invoke(ctx, gateway.SubscribeMethod, req)
}

func (c *BrokerClient) Publish(ctx context.Context, message models.Message) error {
	req, err := gateway.NewPublishRequest(message)
	if err != nil {
		return err
	}
	return c.invoke(ctx, gateway.PublishMethod, req)
}

func (c *BrokerClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.CurrentNode = ""
	return err
}

func (c *BrokerClient) current() *grpc.ClientConn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// invoke retries once on another node if the current one is unavailable.
// A broker answers Unavailable only when it did not accept the request, so
// the retry cannot duplicate a message.
func (c *BrokerClient) invoke(ctx context.Context, method string, req *structpb.Struct) error {
	conn := c.current()
	if conn == nil {
		if err := c.Connect(ctx); err != nil {
			return err
		}
		conn = c.current()
	}

	err := conn.Invoke(ctx, method, req, &emptypb.Empty{})
	if status.Code(err) != codes.Unavailable {
		return err
	}
	if cerr := c.Connect(ctx); cerr != nil {
		return errors.Join(err, cerr)
	}
	return c.current().Invoke(ctx, method, req, &emptypb.Empty{})
}
