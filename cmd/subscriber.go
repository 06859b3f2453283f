package main

import (
	bootlogger "callbackbroker/boot/logger"
	"callbackbroker/env"
	"callbackbroker/services/subscriber"
	"context"
	"errors"
	"fmt"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

func subscriberCommand() *cli.Command {
	return &cli.Command{
		Name:  "subscriber",
		Usage: "serve an inbox, register it with the broker and log what arrives",
		Flags: append(nodeFlags(),
			&cli.IntFlag{Name: "client-port", Aliases: []string{"c"}, Required: true, Usage: "port the inbox listens on"},
			&cli.StringFlag{Name: "client-host", Value: "localhost", Usage: "host the broker should call back"},
		),
		Action: runSubscriber,
	}
}

func runSubscriber(c *cli.Context) error {
	cfg, err := env.ReadClientConfig()
	if err != nil {
		return fmt.Errorf("could not parse env: %w", err)
	}
	logger, err := bootlogger.New(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := c.Int("client-port")
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("cannot create listener: %w", err)
	}

	hub := subscriber.NewHub(logger)
	inbox := subscriber.NewInbox(hub, logger)
	server := &http.Server{Handler: inbox.Handler(), ReadHeaderTimeout: 5 * time.Second}
	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()
	defer func() {
		hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	client := connector(c, cfg)
	defer client.Close()

	callbackURL := subscriber.InboxURL(c.String("client-host"), port)
	if err := client.Subscribe(ctx, callbackURL); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"callback_url": callbackURL,
		"node":         client.GetCurrentNode(),
	}).Info("subscribed, waiting for messages")

	select {
	case <-ctx.Done():
		logger.WithField("received", inbox.Received()).Info("subscriber stopping")
		return nil
	case err := <-serveErr:
		return err
	}
}
