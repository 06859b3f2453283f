package helpers

import (
	"context"
	"fmt"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"time"
)

const DefaultCheckTimeout = 5 * time.Second

// ConnectionChecker asks a broker node's gRPC health service whether it is
// serving.
type ConnectionChecker struct {
	Timeout time.Duration
}

func NewConnectionChecker(timeout time.Duration) *ConnectionChecker {
	if timeout <= 0 {
		timeout = DefaultCheckTimeout
	}
	return &ConnectionChecker{Timeout: timeout}
}

func (c *ConnectionChecker) CheckConnection(ctx context.Context, conn grpc.ClientConnInterface) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("node not serving: %s", resp.GetStatus())
	}
	return nil
}
