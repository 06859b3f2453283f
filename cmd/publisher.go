package main

import (
	bootlogger "callbackbroker/boot/logger"
	"callbackbroker/env"
	"callbackbroker/helpers"
	"callbackbroker/interfaces"
	"callbackbroker/internals/models"
	"callbackbroker/services/brokerClient"
	"callbackbroker/services/publisher"
	"fmt"
	"github.com/urfave/cli/v2"
	"net/http"
	"os/signal"
	"syscall"
)

func publisherCommand() *cli.Command {
	return &cli.Command{
		Name:  "publisher",
		Usage: "publish a message through the broker",
		Flags: append(nodeFlags(),
			&cli.StringFlag{Name: "author", Aliases: []string{"a"}, Usage: "author of the message"},
			&cli.StringFlag{Name: "contents", Aliases: []string{"m"}, Usage: "contents of the message"},
			&cli.IntFlag{Name: "count", Value: 1, Usage: "how many numbered copies to publish"},
			&cli.DurationFlag{Name: "interval", Usage: "pause between copies"},
		),
		Action: runPublisher,
	}
}

func runPublisher(c *cli.Context) error {
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

	client := connector(c, cfg)
	defer client.Close()

	message := models.Message{Author: c.String("author"), Contents: c.String("contents")}
	return publisher.PublishRepeatedly(ctx, client, message, c.Int("count"), c.Duration("interval"), logger)
}

func nodeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "port", Aliases: []string{"o"}, Usage: "broker REST port on localhost, as given to broker -o"},
		&cli.StringSliceFlag{Name: "nodes", Usage: "broker gRPC addresses, tried in order (KNOWN_HOSTS)"},
	}
}

// connector picks the transport: --port talks REST to one local broker,
// --nodes or KNOWN_HOSTS talk gRPC with failover.
func connector(c *cli.Context, cfg *env.ClientConfig) interfaces.BrokerConnector {
	switch {
	case c.IsSet("nodes"):
		return brokerClient.NewBrokerClient(c.StringSlice("nodes"), helpers.NewConnectionChecker(cfg.ConnectTimeout))
	case c.IsSet("port"):
		node := fmt.Sprintf("localhost:%d", c.Int("port"))
		return brokerClient.NewRESTClient([]string{node}, &http.Client{Timeout: cfg.ConnectTimeout})
	default:
		return brokerClient.NewBrokerClient(cfg.KnownHosts, helpers.NewConnectionChecker(cfg.ConnectTimeout))
	}
}
