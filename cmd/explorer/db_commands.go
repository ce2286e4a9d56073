package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/gabrielcipriano/bittensor-explorer/service/db"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending schema migrations",
		Action: func(c *cli.Context) error {
			pool, err := getPool(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := db.ApplyMigrations(pool)
			if err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}
			if c.Bool("json") {
				return outputJSON(map[string]int{"applied": n})
			}
			fmt.Printf("Applied %d migrations\n", n)
			return nil
		},
	}
}

func rollbackCommand() *cli.Command {
	return &cli.Command{
		Name:  "rollback",
		Usage: "Undo the latest schema migrations",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "steps",
				Usage: "Number of migrations to undo",
				Value: 1,
			},
		},
		Action: func(c *cli.Context) error {
			steps := c.Int("steps")
			if steps < 1 {
				return fmt.Errorf("steps must be at least 1")
			}
			pool, err := getPool(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			n, err := db.RollbackMigrations(pool, steps)
			if err != nil {
				return fmt.Errorf("failed to roll back migrations: %w", err)
			}
			if c.Bool("json") {
				return outputJSON(map[string]int{"rolled_back": n})
			}
			fmt.Printf("Rolled back %d migrations\n", n)
			return nil
		},
	}
}

func migrationStatusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show which migrations have been applied",
		Action: func(c *cli.Context) error {
			pool, err := getPool(c)
			if err != nil {
				return err
			}
			defer pool.Close()

			records, err := db.MigrationStatus(pool)
			if err != nil {
				return fmt.Errorf("failed to read migration status: %w", err)
			}
			if c.Bool("json") {
				return outputJSON(records)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MIGRATION\tAPPLIED")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%v\n", r.ID, r.Applied)
			}
			return w.Flush()
		},
	}
}

func listStatsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-stats",
		Usage:   "List stored token stats snapshots",
		Aliases: []string{"stats"},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "symbol",
				Usage:   "Token symbol",
				EnvVars: []string{"TOKEN_SYMBOL"},
				Value:   "TAO",
			},
			&cli.DurationFlag{
				Name:    "window",
				Aliases: []string{"w"},
				Usage:   "How far back to look",
				Value:   24 * time.Hour,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of snapshots",
				Value:   50,
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			since := time.Now().Add(-c.Duration("window"))
			stats, err := store.ListTokenStats(c.Context, c.String("symbol"), since, int32(c.Int("limit")))
			if err != nil {
				return fmt.Errorf("failed to list token stats: %w", err)
			}
			if c.Bool("json") {
				return outputJSON(stats)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSYMBOL\tPRICE\tCHANGE 24H\tVOLUME 24H\tMARKET CAP\tFETCHED")
			for _, s := range stats {
				fmt.Fprintf(w, "%d\t%s\t%.4f\t%.2f%%\t%.0f\t%.0f\t%s\n",
					s.ID,
					s.Symbol,
					s.Price,
					s.PriceChange24h,
					s.Volume24h,
					s.MarketCap,
					s.FetchedAt.Format(time.RFC3339),
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d snapshots\n", len(stats))
			return nil
		},
	}
}

func listRunsCommand() *cli.Command {
	return &cli.Command{
		Name:  "list-runs",
		Usage: "List recent stats refresh workflow runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "symbol",
				Usage:   "Token symbol",
				EnvVars: []string{"TOKEN_SYMBOL"},
				Value:   "TAO",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of runs",
				Value:   20,
			},
		},
		Action: func(c *cli.Context) error {
			store, closer, err := getStore(c)
			if err != nil {
				return err
			}
			defer closer()

			runs, err := store.ListRefreshRuns(c.Context, c.String("symbol"), int32(c.Int("limit")))
			if err != nil {
				return fmt.Errorf("failed to list refresh runs: %w", err)
			}
			if c.Bool("json") {
				return outputJSON(runs)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "WORKFLOW\tSTATUS\tSTARTED\tDURATION\tERROR")
			for _, r := range runs {
				duration := "running"
				if r.FinishedAt != nil {
					duration = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
				}
				errMsg := ""
				if r.Error != nil {
					errMsg = *r.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.WorkflowID,
					r.Status,
					r.StartedAt.Format(time.RFC3339),
					duration,
					errMsg,
				)
			}
			w.Flush()

			fmt.Fprintf(os.Stderr, "\nTotal: %d runs\n", len(runs))
			return nil
		},
	}
}

func getPool(c *cli.Context) (*pgxpool.Pool, error) {
	dbURL := c.String("database-url")
	if dbURL == "" {
		dbURL = os.Getenv("DATABASE_URL")
	}
	if dbURL == "" {
		return nil, fmt.Errorf("database-url is required (set DATABASE_URL env var or use --database-url)")
	}

	pool, err := pgxpool.New(context.Background(), dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func getStore(c *cli.Context) (*db.Store, func(), error) {
	pool, err := getPool(c)
	if err != nil {
		return nil, nil, err
	}
	return db.NewStore(pool, nil), pool.Close, nil
}
