package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/brojonat/tonwatch/service/temporal"
	"github.com/urfave/cli/v2"
	"go.temporal.io/sdk/client"
)

func temporalCommands() *cli.Command {
	return &cli.Command{
		Name:  "temporal",
		Usage: "Temporal schedule management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "schedule",
				Usage: "Manage sync schedules",
				Subcommands: []*cli.Command{
					createScheduleCommand(),
					deleteScheduleCommand(),
					describeScheduleCommand(),
					listSchedulesCommand(),
				},
			},
		},
	}
}

func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	return temporal.NewClient(
		c.String("temporal-host"),
		c.String("temporal-namespace"),
		c.String("temporal-task-queue"),
		cliLogger(c),
	)
}

func requireAccount(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("requires exactly one argument: account")
	}
	return c.Args().First(), nil
}

func createScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create or update the sync schedule for an account",
		ArgsUsage: "<account>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Sync interval",
				EnvVars: []string{"POLL_INTERVAL"},
				Value:   10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			account, err := requireAccount(c)
			if err != nil {
				return err
			}
			interval := c.Duration("interval")
			if interval < time.Second {
				return fmt.Errorf("interval must be at least 1s, got %v", interval)
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.UpsertSyncSchedule(c.Context, account, interval); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "schedule %s syncs every %v\n", temporal.ScheduleID(account), interval)
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete the sync schedule for an account",
		ArgsUsage: "<account>",
		Action: func(c *cli.Context) error {
			account, err := requireAccount(c)
			if err != nil {
				return err
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.DeleteSyncSchedule(c.Context, account); err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "schedule %s deleted\n", temporal.ScheduleID(account))
			return nil
		},
	}
}

func describeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "describe",
		Usage:     "Describe the sync schedule for an account",
		Aliases:   []string{"desc"},
		ArgsUsage: "<account>",
		Action: func(c *cli.Context) error {
			account, err := requireAccount(c)
			if err != nil {
				return err
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			id := temporal.ScheduleID(account)
			desc, err := tc.SDKClient().ScheduleClient().GetHandle(c.Context, id).Describe(c.Context)
			if err != nil {
				return fmt.Errorf("failed to describe schedule %q: %w", id, err)
			}

			w := c.App.Writer
			fmt.Fprintf(w, "Schedule ID:    %s\n", id)
			fmt.Fprintf(w, "Paused:         %v\n", desc.Schedule.State.Paused)
			if desc.Schedule.Policy != nil {
				fmt.Fprintf(w, "Overlap:        %s\n", desc.Schedule.Policy.Overlap)
			}
			if wa, ok := desc.Schedule.Action.(*client.ScheduleWorkflowAction); ok {
				fmt.Fprintf(w, "Workflow:       %v\n", wa.Workflow)
				fmt.Fprintf(w, "Task Queue:     %s\n", wa.TaskQueue)
			}
			for _, interval := range desc.Schedule.Spec.Intervals {
				fmt.Fprintf(w, "Every:          %v\n", interval.Every)
			}
			fmt.Fprintf(w, "Recent Actions: %d\n", len(desc.Info.RecentActions))
			if n := len(desc.Info.RecentActions); n > 0 {
				fmt.Fprintf(w, "Last Action:    %s\n", desc.Info.RecentActions[n-1].ActualTime.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func listSchedulesCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Usage:   "List Temporal schedules",
		Aliases: []string{"ls"},
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			iter, err := tc.SDKClient().ScheduleClient().List(c.Context, client.ScheduleListOptions{
				PageSize: 100,
			})
			if err != nil {
				return fmt.Errorf("failed to list schedules: %w", err)
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCHEDULE ID\tPAUSED")
			count := 0
			for iter.HasNext() {
				schedule, err := iter.Next()
				if err != nil {
					return fmt.Errorf("failed to iterate schedules: %w", err)
				}
				fmt.Fprintf(w, "%s\t%v\n", schedule.ID, schedule.Paused)
				count++
			}
			w.Flush()

			fmt.Fprintf(c.App.ErrWriter, "\nTotal: %d schedules\n", count)
			return nil
		},
	}
}
