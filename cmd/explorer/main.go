package main

import (
	"fmt"
	"log"
	"os"

	"github.com/urfave/cli/v2"
)

var (
	// Version information (set via ldflags during build)
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "explorer",
		Usage: "Bittensor explorer CLI",
		Description: `A command-line tool for the bittensor explorer.

Browse transfers, calls and delegations through the explorer API, follow token
stats as they refresh, and manage the database, Temporal schedules and NATS
stream behind the stats pipeline.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),

		// jq filters contain commas.
		DisableSliceFlagSeparator: true,
		Commands: []*cli.Command{
			// Explorer API commands
			networksCommand(),
			transfersCommand(),
			callsCommand(),
			delegatesCommand(),
			accountCommand(),
			validatorCommand(),
			historyCommand(),
			statsCommands(),
			// Database commands
			{
				Name:  "db",
				Usage: "Database migration and inspection commands",
				Subcommands: []*cli.Command{
					migrateCommand(),
					rollbackCommand(),
					migrationStatusCommand(),
					listStatsCommand(),
					listRunsCommand(),
				},
			},
			// Temporal inspection and management commands
			{
				Name:  "temporal",
				Usage: "Temporal inspection and management commands",
				Subcommands: []*cli.Command{
					listSchedulesCommand(),
					describeScheduleCommand(),
					upsertScheduleCommand(),
					deleteScheduleCommand(),
					refreshCommand(),
				},
			},
			// NATS token stats commands
			{
				Name:  "nats",
				Usage: "NATS token stats streaming commands",
				Subcommands: []*cli.Command{
					subscribeCommand(),
					inspectStreamCommand(),
				},
			},
			// Server utility commands
			{
				Name:  "server",
				Usage: "Server utility commands",
				Subcommands: []*cli.Command{
					healthCommand(),
					versionCommand(),
				},
			},
		},
		// Global flags available to all commands
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server-url",
				Usage:   "Explorer server URL",
				EnvVars: []string{"SERVER_URL"},
				Value:   "http://localhost:8080",
			},
			&cli.StringFlag{
				Name:    "network",
				Usage:   "Network to browse",
				EnvVars: []string{"NETWORK"},
				Value:   "bittensor",
			},
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
				Usage:   "Temporal task queue of the stats worker",
				EnvVars: []string{"TEMPORAL_TASK_QUEUE"},
				Value:   "explorer-token-stats",
			},
			&cli.StringFlag{
				Name:    "nats-url",
				Usage:   "NATS server URL",
				EnvVars: []string{"NATS_URL"},
				Value:   "nats://localhost:4222",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output in JSON format",
			},
		},
	}
}
