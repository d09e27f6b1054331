package main

import (
	"fmt"
	"os/signal"
	"syscall"

	natspkg "github.com/brojonat/tonwatch/service/nats"
	"github.com/urfave/cli/v2"
)

func natsCommands() *cli.Command {
	return &cli.Command{
		Name:  "nats",
		Usage: "NATS transaction streaming commands",
		Subcommands: []*cli.Command{
			subscribeCommand(),
		},
	}
}

// subscribeCommand follows transaction events published to JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Subscribe to transaction events",
		ArgsUsage: "[account]",
		Description: `Stream transaction events from the TRANSACTIONS JetStream stream.

Events for an account are published to the subject txns.{account}. Without an
account argument every account's events are shown. Each event is printed as one
JSON line.

Example:
  tonwatch nats subscribe EQ... --new --jq .message`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "new",
				Usage: "Only events published after subscribing (default: replay the stream)",
			},
			&cli.StringFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Durable consumer name (survives restarts)",
			},
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Exit after this many events (0 for no limit)",
			},
			jqFlag,
		},
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("accepts at most one argument: account")
			}

			out, err := newPrinter(c.App.Writer, c.String("jq"))
			if err != nil {
				return err
			}

			logger := cliLogger(c)
			consumer, err := natspkg.NewConsumer(c.String("nats-url"), "tonwatch-cli", logger)
			if err != nil {
				return err
			}
			defer consumer.Close()

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			account := c.Args().First()
			events, err := consumer.Subscribe(ctx, natspkg.SubscribeOptions{
				Account:    account,
				DeliverNew: c.Bool("new"),
				Durable:    c.String("durable"),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(c.App.ErrWriter, "subscribed to %s (Ctrl-C to exit)\n", natspkg.Subject(account))

			limit := c.Int("count")
			received := 0
			for {
				select {
				case <-ctx.Done():
					fmt.Fprintf(c.App.ErrWriter, "received %d events\n", received)
					return nil
				case event := <-events:
					if err := out.PrintLine(event); err != nil {
						return err
					}
					received++
					if limit > 0 && received >= limit {
						return nil
					}
				}
			}
		},
	}
}
