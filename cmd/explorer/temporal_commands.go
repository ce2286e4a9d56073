package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"go.temporal.io/sdk/client"

	"github.com/gabrielcipriano/bittensor-explorer/service/temporal"
)

var symbolFlag = &cli.StringFlag{
	Name:    "symbol",
	Usage:   "Token symbol",
	EnvVars: []string{"TOKEN_SYMBOL"},
	Value:   "TAO",
}

var retentionFlag = &cli.DurationFlag{
	Name:    "retention",
	Usage:   "Prune snapshots older than this after each refresh (0 keeps everything)",
	EnvVars: []string{"STATS_RETENTION"},
	Value:   30 * 24 * time.Hour,
}

func listSchedulesCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-schedules",
		Usage:   "List all Temporal schedules",
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

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SCHEDULE ID\tPAUSED\tNEXT RUN")
			count := 0
			for iter.HasNext() {
				schedule, err := iter.Next()
				if err != nil {
					return fmt.Errorf("failed to iterate schedules: %w", err)
				}
				next := "-"
				if len(schedule.NextActionTimes) > 0 {
					next = schedule.NextActionTimes[0].Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%s\t%v\t%s\n", schedule.ID, schedule.Paused, next)
				count++
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d schedules\n", count)
			return nil
		},
	}
}

func describeScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:    "describe-schedule",
		Usage:   "Describe the stats refresh schedule of a token",
		Aliases: []string{"desc"},
		Flags:   []cli.Flag{symbolFlag},
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			scheduleID := "refresh-token-stats-" + c.String("symbol")
			handle := tc.SDKClient().ScheduleClient().GetHandle(c.Context, scheduleID)
			desc, err := handle.Describe(c.Context)
			if err != nil {
				return fmt.Errorf("failed to describe schedule: %w", err)
			}

			fmt.Printf("Schedule ID:    %s\n", scheduleID)
			fmt.Printf("Paused:         %v\n", desc.Schedule.State.Paused)
			if note := desc.Schedule.State.Note; note != "" {
				fmt.Printf("State Note:     %s\n", note)
			}

			if wa, ok := desc.Schedule.Action.(*client.ScheduleWorkflowAction); ok {
				fmt.Printf("\nWorkflow:\n")
				fmt.Printf("  Workflow:     %v\n", wa.Workflow)
				fmt.Printf("  Task Queue:   %s\n", wa.TaskQueue)
			}

			for i, interval := range desc.Schedule.Spec.Intervals {
				fmt.Printf("\nInterval %d:     every %v\n", i+1, interval.Every)
			}

			fmt.Printf("\nRecent Actions: %d\n", len(desc.Info.RecentActions))
			if n := len(desc.Info.RecentActions); n > 0 {
				fmt.Printf("Last Action:    %s\n", desc.Info.RecentActions[n-1].ActualTime.Format(time.RFC3339))
			}
			if len(desc.Info.NextActionTimes) > 0 {
				fmt.Printf("Next Action:    %s\n", desc.Info.NextActionTimes[0].Format(time.RFC3339))
			}
			return nil
		},
	}
}

func upsertScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "upsert-schedule",
		Usage: "Create the stats refresh schedule of a token or change its interval",
		Flags: []cli.Flag{
			symbolFlag,
			retentionFlag,
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "Refresh interval",
				EnvVars: []string{"STATS_REFRESH_INTERVAL"},
				Value:   time.Minute,
			},
			&cli.DurationFlag{
				Name:    "min-interval",
				Usage:   "Smallest interval accepted",
				EnvVars: []string{"MIN_REFRESH_INTERVAL"},
				Value:   10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			interval := c.Duration("interval")
			if minInterval := c.Duration("min-interval"); interval < minInterval {
				return fmt.Errorf("interval must be at least %v, got %v", minInterval, interval)
			}
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			symbol := c.String("symbol")
			if err := tc.UpsertStatsSchedule(c.Context, symbol, interval); err != nil {
				return err
			}
			fmt.Printf("✓ Schedule for %s refreshes every %v\n", symbol, interval)
			return nil
		},
	}
}

func deleteScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete-schedule",
		Usage: "Stop refreshing the stats of a token",
		Flags: []cli.Flag{
			symbolFlag,
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Skip confirmation prompt",
			},
		},
		Action: func(c *cli.Context) error {
			symbol := c.String("symbol")
			if !c.Bool("force") {
				fmt.Printf("Delete the stats schedule of %s? (y/N): ", symbol)
				var answer string
				fmt.Scanln(&answer)
				if answer != "y" && answer != "Y" {
					fmt.Println("Cancelled")
					return nil
				}
			}

			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			if err := tc.DeleteStatsSchedule(c.Context, symbol); err != nil {
				return err
			}
			fmt.Printf("✓ Deleted schedule for %s\n", symbol)
			return nil
		},
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Run one stats refresh now and wait for the result",
		Flags: []cli.Flag{symbolFlag, retentionFlag},
		Action: func(c *cli.Context) error {
			tc, err := getTemporalClient(c)
			if err != nil {
				return err
			}
			defer tc.Close()

			result, err := tc.RefreshNow(c.Context, c.String("symbol"))
			if err != nil {
				return err
			}
			if c.Bool("json") {
				return outputJSON(result)
			}

			fmt.Printf("Symbol:     %s\n", result.Symbol)
			fmt.Printf("Price:      $%v (%+.2f%%)\n", result.Price, result.Change24h)
			fmt.Printf("Stats ID:   %d\n", result.StatsID)
			fmt.Printf("Published:  %v\n", result.Published)
			fmt.Printf("Pruned:     %d\n", result.Pruned)
			fmt.Printf("Fetched:    %s\n", result.FetchedAt.Format(time.RFC3339))
			if result.Error != nil {
				fmt.Printf("Error:      %s\n", *result.Error)
			}
			return nil
		},
	}
}

// getTemporalClient connects with the global temporal flags. Commands that
// start workflows pass --retention through to the refresh input.
func getTemporalClient(c *cli.Context) (*temporal.Client, error) {
	host := c.String("temporal-host")
	if host == "" {
		host = "localhost:7233"
	}
	namespace := c.String("temporal-namespace")
	if namespace == "" {
		namespace = "default"
	}
	taskQueue := c.String("temporal-task-queue")
	if taskQueue == "" {
		taskQueue = "explorer-token-stats"
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return temporal.NewClient(host, namespace, taskQueue, c.Duration("retention"), logger)
}
