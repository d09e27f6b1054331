package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/brojonat/tonwatch/service/logging"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	_ = godotenv.Load()

	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "tonwatch",
		Usage: "TON account transaction watcher CLI",
		Description: `A command-line tool for operating and debugging the tonwatch service.

Use this CLI to migrate and inspect the database, scan an account's history,
follow the NATS event stream, query the HTTP API, and manage Temporal schedules.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Commands: []*cli.Command{
			dbCommands(),
			ledgerCommands(),
			natsCommands(),
			clientCommands(),
			temporalCommands(),
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "Database connection URL",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "temporal-host",
				Usage:   "Temporal server address",
				EnvVars: []string{"TEMPORAL_HOST"},
				Value:   "localhost:7233",
			},
			&cli.StringFlag{
				Name:    "temporal-namespace",
				Usage:   "Temporal namespace",
				EnvVars: []string{"TEMPORAL_NAMESPACE"},
				Value:   "default",
			},
			&cli.StringFlag{
				Name:    "temporal-task-queue",
				Usage:   "Temporal task queue the worker polls",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "tonwatch-sync",
			},
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "tonwatch API server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level for diagnostics on stderr",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "warn",
			},
		},
	}
}

// cliLogger writes diagnostics to the app's error writer so stdout stays JSON.
func cliLogger(c *cli.Context) *slog.Logger {
	return logging.NewWriter(c.App.ErrWriter, c.String("log-level"), "text")
}
