package gateway

import (
	"context"
	"errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"net"
	"net/http"
	"time"
)

const DefaultShutdownTimeout = 10 * time.Second

// Gateway runs the REST and gRPC front ends until ctx is done, then stops
// both. Either front end may be nil.
type Gateway struct {
	HTTP            *HTTPGateway
	GRPC            *GrpcGateWay
	Logger          logrus.FieldLogger
	ShutdownTimeout time.Duration
}

// ListenAndServe opens the listeners and calls Serve. An empty address skips
// that front end.
func (gw *Gateway) ListenAndServe(ctx context.Context, httpAddr, grpcAddr string) error {
	var httpLis, grpcLis net.Listener
	var err error
	if httpAddr != "" && gw.HTTP != nil {
		if httpLis, err = net.Listen("tcp", httpAddr); err != nil {
			return err
		}
	}
	if grpcAddr != "" && gw.GRPC != nil {
		if grpcLis, err = net.Listen("tcp", grpcAddr); err != nil {
			if httpLis != nil {
				_ = httpLis.Close()
			}
			return err
		}
	}
	return gw.Serve(ctx, httpLis, grpcLis)
}

func (gw *Gateway) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	timeout := gw.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	g, ctx := errgroup.WithContext(ctx)

	if httpLis != nil {
		server := &http.Server{
			Handler:           gw.HTTP.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			gw.Logger.WithField("addr", httpLis.Addr().String()).Info("http gateway listening")
			if err := server.Serve(httpLis); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	if grpcLis != nil {
		server := gw.GRPC.NewServer()
		g.Go(func() error {
			gw.Logger.WithField("addr", grpcLis.Addr().String()).Info("grpc gateway listening")
			return server.Serve(grpcLis)
		})
		g.Go(func() error {
			<-ctx.Done()
			gw.GRPC.Drain()
			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()
			select {
			case <-stopped:
			case <-time.After(timeout):
				server.Stop()
				<-stopped
			}
			return nil
		})
	}

	return g.Wait()
}
