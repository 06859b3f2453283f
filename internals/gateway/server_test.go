package gateway_test

import (
	"callbackbroker/internals/gateway"
	"context"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestGatewayServeStopsOnCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	b := newBroker(t)
	gw := &gateway.Gateway{
		HTTP:            gateway.NewHTTPGateway(b, logger, 0, 0),
		GRPC:            gateway.NewGrpcGateWay(b, logger, 0),
		Logger:          logger,
		ShutdownTimeout: time.Second,
	}

	httpLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	grpcLis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- gw.Serve(ctx, httpLis, grpcLis)
	}()

	url := "http://" + httpLis.Addr().String()
	require.Eventually(t, func() bool {
		resp, err := http.Post(url+"/v1/subscribe", "application/json",
			strings.NewReader(`{"client_callback_url":"http://sub/inbox"}`))
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not stop")
	}
	assert.Equal(t, 1, b.Stats().Subscribers)
}
