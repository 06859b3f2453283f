package main

import (
	bootlogger "callbackbroker/boot/logger"
	"callbackbroker/env"
	"callbackbroker/internals/gateway"
	"callbackbroker/services/broker"
	"callbackbroker/services/delivery"
	"context"
	"fmt"
	"github.com/urfave/cli/v2"
	"net/http"
	"os/signal"
	"syscall"
)

func brokerCommand() *cli.Command {
	return &cli.Command{
		Name:  "broker",
		Usage: "run the broker with its REST and gRPC gateways",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"o"}, Usage: "REST port, shorthand for --http-addr :PORT"},
			&cli.StringFlag{Name: "http-addr", Usage: "REST listen address (HTTP_ADDR)"},
			&cli.StringFlag{Name: "grpc-addr", Usage: "gRPC listen address (GRPC_ADDR)"},
			&cli.IntFlag{Name: "threads", Usage: "max concurrent requests (HTTP_MAX_CONCURRENT)"},
			&cli.DurationFlag{Name: "delivery-timeout", Usage: "per-subscriber delivery timeout (DELIVERY_TIMEOUT)"},
		},
		Action: runBroker,
	}
}

func runBroker(c *cli.Context) error {
	cfg, err := env.ReadBrokerConfig()
	if err != nil {
		return fmt.Errorf("could not parse env: %w", err)
	}
	if c.IsSet("port") {
		cfg.HTTPAddr = fmt.Sprintf(":%d", c.Int("port"))
	}
	if c.IsSet("http-addr") {
		cfg.HTTPAddr = c.String("http-addr")
	}
	if c.IsSet("grpc-addr") {
		cfg.GRPCAddr = c.String("grpc-addr")
	}
	if c.IsSet("threads") {
		cfg.HTTPMaxConcurrent = c.Int("threads")
	}
	if c.IsSet("delivery-timeout") {
		cfg.DeliveryTimeout = c.Duration("delivery-timeout")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := bootlogger.New(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	redisDeliverer := delivery.NewRedisDeliverer(cfg.RedisPoolSize)
	defer func() {
		if err := redisDeliverer.Close(); err != nil {
			logger.WithError(err).Warn("closing redis clients")
		}
	}()
	router := delivery.NewRouter().
		Handle(delivery.NewHTTPDeliverer(&http.Client{}), "http", "https").
		Handle(redisDeliverer, "redis", "rediss")

	b := broker.NewBroker(router,
		broker.WithDeliveryTimeout(cfg.DeliveryTimeout),
		broker.WithLogger(logger),
	)

	gw := &gateway.Gateway{
		HTTP:            gateway.NewHTTPGateway(b, logger, cfg.HTTPMaxBodyBytes, cfg.HTTPMaxConcurrent),
		GRPC:            gateway.NewGrpcGateWay(b, logger, cfg.HTTPMaxConcurrent),
		Logger:          logger,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}
	logger.WithField("threads", cfg.HTTPMaxConcurrent).Info("broker started")
	serveErr := gw.ListenAndServe(ctx, cfg.HTTPAddr, cfg.GRPCAddr)

	logger.Info("shutting down broker")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := b.Close(shutdownCtx); err != nil {
		logger.WithError(err).Warn("broker shutdown incomplete, pending messages dropped")
	} else {
		logger.Info("broker shutdown complete")
	}
	return serveErr
}
