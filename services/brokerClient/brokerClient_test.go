package brokerClient

import (
	"callbackbroker/interfaces"
	"callbackbroker/internals/gateway"
	"callbackbroker/internals/models"
	"callbackbroker/services/broker"
	"context"
	"fmt"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"net"
	"testing"
	"time"
)

type node struct {
	broker  *broker.Broker
	gateway *gateway.GrpcGateWay
	lis     *bufconn.Listener
	server  *grpc.Server
}

func startNode(t *testing.T) *node {
	t.Helper()
	logger, _ := test.NewNullLogger()
	n := &node{lis: bufconn.Listen(1 << 20)}
	n.broker = broker.NewBroker(interfaces.DeliverFunc(func(context.Context, string, []byte) error {
		return nil
	}))
	n.gateway = gateway.NewGrpcGateWay(n.broker, logger, 0)
	n.server = n.gateway.NewServer()
	go func() {
		_ = n.server.Serve(n.lis)
	}()
	t.Cleanup(func() {
		n.server.Stop()
		_ = n.broker.Close(context.Background())
	})
	return n
}

func dialer(nodes map[string]*node) grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, addr string) (net.Conn, error) {
		n, ok := nodes[addr]
		if !ok {
			return nil, fmt.Errorf("unknown node %s", addr)
		}
		return n.lis.DialContext(ctx)
	})
}

func TestConnectSkipsDeadNodes(t *testing.T) {
	dead := startNode(t)
	alive := startNode(t)
	dead.server.Stop()

	client := NewBrokerClient(
		[]string{"passthrough:///dead", "passthrough:///alive"},
		nil,
		dialer(map[string]*node{"dead": dead, "alive": alive}),
	)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Connect(ctx))
	assert.Equal(t, "passthrough:///alive", client.GetCurrentNode())

	require.NoError(t, client.Subscribe(ctx, "http://sub/inbox"))
	assert.Equal(t, 1, alive.broker.Stats().Subscribers)
}

func TestConnectFailsWithoutNodes(t *testing.T) {
	dead := startNode(t)
	dead.server.Stop()

	client := NewBrokerClient([]string{"passthrough:///dead"}, nil, dialer(map[string]*node{"dead": dead}))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	assert.ErrorIs(t, client.Connect(ctx), ErrNoNodes)
	assert.ErrorIs(t, NewBrokerClient(nil, nil).Connect(ctx), ErrNoNodes)
}

func TestPublishFailsOverWhenNodeCloses(t *testing.T) {
	first := startNode(t)
	second := startNode(t)

	client := NewBrokerClient(
		[]string{"passthrough:///first", "passthrough:///second"},
		nil,
		dialer(map[string]*node{"first": first, "second": second}),
	)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, client.Publish(ctx, models.Message{Author: "a", Contents: "1"}))
	assert.Equal(t, "passthrough:///first", client.GetCurrentNode())

	first.gateway.Drain()
	require.NoError(t, first.broker.Close(ctx))

	require.NoError(t, client.Publish(ctx, models.Message{Author: "a", Contents: "2"}))
	assert.Equal(t, "passthrough:///second", client.GetCurrentNode())
}

func TestInvalidRequestIsNotRetried(t *testing.T) {
	n := startNode(t)
	client := NewBrokerClient([]string{"passthrough:///n"}, nil, dialer(map[string]*node{"n": n}))
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, client.Subscribe(ctx, ""))
	assert.Zero(t, n.broker.Stats().Subscribers)
}
