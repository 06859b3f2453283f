package main

import (
	"fmt"
	"github.com/urfave/cli/v2"
	"os"
)

func main() {
	app := &cli.App{
		Name:  "callbackbroker",
		Usage: "publish/subscribe broker that fans messages out to subscriber callbacks",
		Commands: []*cli.Command{
			brokerCommand(),
			subscriberCommand(),
			publisherCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
