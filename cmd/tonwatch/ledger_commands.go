package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/brojonat/tonwatch/service/comment"
	"github.com/brojonat/tonwatch/service/config"
	"github.com/brojonat/tonwatch/service/ledger"
	"github.com/brojonat/tonwatch/service/sink"
	"github.com/brojonat/tonwatch/service/solana"
	"github.com/brojonat/tonwatch/service/subscriber"
	"github.com/brojonat/tonwatch/service/ton"
	"github.com/urfave/cli/v2"
)

func ledgerCommands() *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Query the ledger directly",
		Subcommands: []*cli.Command{
			scanCommand(),
		},
	}
}

func scanCommand() *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Run one sync cycle from a given point in time and print what it finds",
		Description: `Walks the account's history newest first with the same filter the worker
uses, starting from --since instead of the current time. Each admitted
transaction is printed as one JSON line on stdout; the cycle summary goes to
stderr. With --persist the records are also written to the database.

Example:
  tonwatch ledger scan --account EQ... --since 24h --jq .message`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "account",
				Aliases:  []string{"a"},
				Usage:    "Account to scan",
				EnvVars:  []string{"ACCOUNT_ADDRESS"},
				Required: true,
			},
			&cli.StringFlag{
				Name:     "since",
				Usage:    "Lower bound: unix seconds, RFC3339 time, or a lookback duration like 6h",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "ledger",
				Usage:   "Ledger backend (ton or solana)",
				EnvVars: []string{"LEDGER"},
				Value:   config.LedgerTON,
			},
			&cli.StringFlag{
				Name:    "toncenter-url",
				Usage:   "toncenter v2 API base URL",
				EnvVars: []string{"TONCENTER_URL"},
				Value:   ton.DefaultBaseURL,
			},
			&cli.StringFlag{
				Name:    "toncenter-api-key",
				Usage:   "toncenter API key",
				EnvVars: []string{"TONCENTER_API_KEY"},
			},
			&cli.StringFlag{
				Name:    "solana-rpc-url",
				Usage:   "Solana RPC URL (ledger=solana)",
				EnvVars: []string{"SOLANA_RPC_URL"},
			},
			&cli.IntFlag{
				Name:  "page-size",
				Usage: "Transactions per page",
				Value: subscriber.DefaultPageSize,
			},
			&cli.IntFlag{
				Name:  "max-retries",
				Usage: "Retries per page before the scan aborts",
				Value: subscriber.DefaultMaxRetries,
			},
			&cli.DurationFlag{
				Name:  "retry-delay",
				Usage: "Delay between page retries",
				Value: subscriber.DefaultRetryDelay,
			},
			&cli.BoolFlag{
				Name:  "persist",
				Usage: "Also insert admitted transactions into the database",
			},
			jqFlag,
		},
		Action: func(c *cli.Context) error {
			since, err := parseSince(c.String("since"), time.Now())
			if err != nil {
				return err
			}

			out, err := newPrinter(c.App.Writer, c.String("jq"))
			if err != nil {
				return err
			}

			logger := cliLogger(c)
			account := c.String("account")

			client, err := newScanLedgerClient(c, account, logger)
			if err != nil {
				return err
			}

			handlers := []sink.Handler{
				sink.HandlerFunc{
					Label: "stdout",
					Fn: func(_ context.Context, rec *ledger.TransactionRecord) error {
						return out.PrintLine(rec)
					},
				},
			}
			if c.Bool("persist") {
				store, closer, err := getStore(c)
				if err != nil {
					return err
				}
				defer closer()
				handlers = append(handlers, sink.Persist(store, nil, logger))
			}

			dispatcher := sink.NewDispatcher(sink.DefaultBuffer, nil, logger, handlers...)

			sub := subscriber.NewSubscriber(
				subscriber.Config{
					Account:        account,
					PageSize:       c.Int("page-size"),
					MaxRetries:     c.Int("max-retries"),
					RetryDelay:     c.Duration("retry-delay"),
					StartWatermark: since,
				},
				client,
				comment.NewDecoder(),
				dispatcher,
				nil,
				logger,
			)

			res := sub.Sync(c.Context)

			// Flush everything the cycle published before reporting.
			if err := dispatcher.Close(context.Background()); err != nil {
				return fmt.Errorf("failed to flush output: %w", err)
			}

			fmt.Fprintf(c.App.ErrWriter, "scan %s: pages=%d fetched=%d published=%d watermark=%d->%d\n",
				res.Status, res.Pages, res.Fetched, res.Published, res.PreviousWatermark, res.Watermark)

			if res.Status != subscriber.StatusDone {
				return fmt.Errorf("scan %s: %s", res.Status, res.Error)
			}
			return nil
		},
	}
}

func newScanLedgerClient(c *cli.Context, account string, logger *slog.Logger) (ledger.Client, error) {
	switch c.String("ledger") {
	case config.LedgerSolana:
		rpcURL := c.String("solana-rpc-url")
		if rpcURL == "" {
			return nil, fmt.Errorf("solana-rpc-url is required when ledger is solana")
		}
		return solana.NewClient(solana.NewRPCClient(rpcURL), solana.EndpointLabel(rpcURL), 100*time.Millisecond, nil, logger), nil
	case config.LedgerTON:
		if err := ton.ValidateAddress(account); err != nil {
			return nil, err
		}
		return ton.NewClient(c.String("toncenter-url"), c.String("toncenter-api-key"), nil, nil, logger), nil
	default:
		return nil, fmt.Errorf("unknown ledger %q (use %s or %s)", c.String("ledger"), config.LedgerTON, config.LedgerSolana)
	}
}

// parseSince accepts unix seconds, an RFC3339 time, or a duration measured back from now.
func parseSince(s string, now time.Time) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("since must be positive, got %d", n)
		}
		return n, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Unix(), nil
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return now.Add(-d).Unix(), nil
	}
	return 0, fmt.Errorf("invalid since %q (use unix seconds, RFC3339, or a duration like 6h)", s)
}
