package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/brojonat/tonwatch/service/db"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"
)

func dbCommands() *cli.Command {
	return &cli.Command{
		Name:  "db",
		Usage: "Database migration and inspection commands",
		Subcommands: []*cli.Command{
			migrateCommand(),
			listTransactionsCommand(),
			getTransactionCommand(),
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations",
		Action: func(c *cli.Context) error {
			dbURL, err := databaseURL(c)
			if err != nil {
				return err
			}

			logger := cliLogger(c)
			if err := db.Migrate(c.Context, dbURL, logger); err != nil {
				return err
			}

			version, err := db.SchemaVersion(c.Context, dbURL, logger)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.ErrWriter, "schema at version %d\n", version)
			return nil
		},
	}
}

func listTransactionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List stored transactions, newest first",
		Aliases: []string{"ls"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Usage:   "Filter by watched account (default: all accounts)",
			},
			&cli.Int64Flag{
				Name:  "since",
				Usage: "Only transactions with a ledger timestamp after this unix time",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of transactions",
				Value:   50,
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

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			transactions, err := store.ListTransactions(c.Context, db.ListTransactionsParams{
				Account: c.String("account"),
				Since:   c.Int64("since"),
				Limit:   int32(c.Int("limit")),
				Offset:  int32(c.Int("offset")),
			})
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			return out.Print(transactions)
		},
	}
}

func getTransactionCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Show one stored transaction",
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

			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			txn, err := store.GetTransaction(c.Context, c.Args().First())
			if errors.Is(err, db.ErrTransactionNotFound) {
				return fmt.Errorf("transaction %s not found", c.Args().First())
			}
			if err != nil {
				return fmt.Errorf("failed to get transaction: %w", err)
			}

			return out.Print(txn)
		},
	}
}

func databaseURL(c *cli.Context) (string, error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		return "", fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}
	return dbURL, nil
}

// getStore connects to the database named by --database-url.
func getStore(c *cli.Context) (*db.Store, func(), error) {
	dbURL, err := databaseURL(c)
	if err != nil {
		return nil, nil, err
	}

	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db.NewStore(pool, nil), pool.Close, nil
}
