package main

import (
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/tonwatch/client"
	"github.com/urfave/cli/v2"
)

func clientCommands() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "HTTP client commands for interacting with the tonwatch API",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Request timeout (not applied to stream)",
				Value: 10 * time.Second,
			},
		},
		Subcommands: []*cli.Command{
			healthCommand(),
			clientListCommand(),
			clientGetCommand(),
			clientStreamCommand(),
		},
	}
}

func apiClient(c *cli.Context, timeout time.Duration) (*client.Client, error) {
	serverURL := c.String("server-url")
	if serverURL == "" {
		return nil, fmt.Errorf("server-url is required (set SERVER_URL env var or use --server-url)")
	}
	return client.NewClient(serverURL, &http.Client{Timeout: timeout}, cliLogger(c)), nil
}

func healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "Check server health",
		Action: func(c *cli.Context) error {
			cl, err := apiClient(c, c.Duration("timeout"))
			if err != nil {
				return err
			}
			if err := cl.Health(c.Context); err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			fmt.Fprintf(c.App.Writer, "server is healthy: %s\n", c.String("server-url"))
			return nil
		},
	}
}

func clientListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List transactions from the API",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Usage:   "Filter by watched account",
			},
			&cli.Int64Flag{
				Name:  "since",
				Usage: "Only transactions with a ledger timestamp after this unix time",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   100,
				Usage:   "Page size",
			},
			&cli.IntFlag{
				Name:  "offset",
				Usage: "Number of transactions to skip",
			},
			jqFlag,
		},
		Action: func(c *cli.Context) error {
			out, err := newPrinter(c.App.Writer, c.String("jq"))
			if err != nil {
				return err
			}
			cl, err := apiClient(c, c.Duration("timeout"))
			if err != nil {
				return err
			}

			res, err := cl.ListTransactions(c.Context, client.ListOptions{
				Account: c.String("account"),
				Since:   c.Int64("since"),
				Limit:   c.Int("limit"),
				Offset:  c.Int("offset"),
			})
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			return out.Print(res)
		},
	}
}

func clientGetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Get one transaction from the API",
		ArgsUsage: "<hash>",
		Flags:     []cli.Flag{jqFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: transaction hash")
			}
			out, err := newPrinter(c.App.Writer, c.String("jq"))
			if err != nil {
				return err
			}
			cl, err := apiClient(c, c.Duration("timeout"))
			if err != nil {
				return err
			}

			txn, err := cl.GetTransaction(c.Context, c.Args().First())
			if errors.Is(err, client.ErrNotFound) {
				return fmt.Errorf("transaction %s not found", c.Args().First())
			}
			if err != nil {
				return fmt.Errorf("failed to get transaction: %w", err)
			}
			return out.Print(txn)
		},
	}
}

func clientStreamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Follow the server-sent transaction stream",
		ArgsUsage: "[account]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "count",
				Aliases: []string{"n"},
				Usage:   "Exit after this many transactions (0 for no limit)",
			},
			jqFlag,
		},
		Action: func(c *cli.Context) error {
			out, err := newPrinter(c.App.Writer, c.String("jq"))
			if err != nil {
				return err
			}
			// No timeout: the response stays open.
			cl, err := apiClient(c, 0)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			limit := c.Int("count")
			received := 0
			errDone := errors.New("done")

			err = cl.Stream(ctx, c.Args().First(), func(txn *client.Transaction) error {
				if err := out.PrintLine(txn); err != nil {
					return err
				}
				received++
				if limit > 0 && received >= limit {
					return errDone
				}
				return nil
			})
			if errors.Is(err, errDone) || (err != nil && ctx.Err() != nil) {
				return nil
			}
			return err
		},
	}
}
