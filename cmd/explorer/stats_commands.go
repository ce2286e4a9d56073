package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/urfave/cli/v2"

	natspkg "github.com/gabrielcipriano/bittensor-explorer/service/nats"
	"github.com/gabrielcipriano/bittensor-explorer/service/pricefeed"
	"github.com/gabrielcipriano/bittensor-explorer/service/views"
)

// errStopStream ends a stream once --count snapshots were printed.
var errStopStream = errors.New("stop streaming")

func statsCommands() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Token price statistics",
		Subcommands: []*cli.Command{
			statsShowCommand(),
			statsHistoryCommand(),
			statsStreamCommand(),
		},
	}
}

func statsShowCommand() *cli.Command {
	return &cli.Command{
		Name:  "show",
		Usage: "Show the latest token stats",
		Flags: []cli.Flag{jqFlag},
		Action: func(c *cli.Context) error {
			stats, err := getClient(c).Stats(c.Context)
			if err != nil {
				return fmt.Errorf("failed to get stats: %w", err)
			}
			if done, err := emit(c, stats); done {
				return err
			}
			fmt.Println(renderStatsBox(stats.Symbol, views.NewHeader(stats.Symbol, stats), stats.FetchedAt))
			return nil
		},
	}
}

func statsHistoryCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Plot stored token price snapshots",
		Description: `Fetch stored snapshots from the server and plot the price.

Examples:
  explorer stats history --window 72h
  explorer stats history --jq '.[-1].price'`,
		Flags: []cli.Flag{
			jqFlag,
			&cli.DurationFlag{
				Name:    "window",
				Aliases: []string{"w"},
				Usage:   "How far back to look",
				Value:   24 * time.Hour,
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Maximum number of snapshots",
				Value:   500,
			},
			&cli.IntFlag{
				Name:  "height",
				Usage: "Chart height in rows",
				Value: 12,
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: "Chart width in columns (0 fits the data)",
				Value: 72,
			},
		},
		Action: func(c *cli.Context) error {
			history, err := getClient(c).StatsHistory(c.Context, c.Duration("window"), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to get stats history: %w", err)
			}
			if done, err := emit(c, history); done {
				return err
			}

			if len(history) < 2 {
				fmt.Println("Not enough data to draw graph.")
				return nil
			}
			prices := make([]float64, len(history))
			for i, s := range history {
				prices[i] = s.Price
			}
			first, last := history[0], history[len(history)-1]
			fmt.Println(asciigraph.Plot(prices,
				asciigraph.Height(c.Int("height")),
				asciigraph.Width(c.Int("width")),
				asciigraph.Caption(fmt.Sprintf("%s price (USD), %s to %s", last.Symbol,
					first.FetchedAt.UTC().Format(time.RFC3339), last.FetchedAt.UTC().Format(time.RFC3339))),
			))
			return nil
		},
	}
}

func statsStreamCommand() *cli.Command {
	return &cli.Command{
		Name:  "stream",
		Usage: "Follow token stats as the server refreshes them",
		Description: `Stream token stats over Server-Sent Events until interrupted.

Use --where to print only the snapshots a jq expression accepts.

Examples:
  explorer stats stream
  explorer stats stream --symbol TAO --where '.price_change_24h < -5' --json`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "symbol",
				Usage: "Token symbol (defaults to the server's)",
			},
			&cli.StringSliceFlag{
				Name:  "where",
				Usage: "jq condition a snapshot must satisfy (can be repeated)",
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "Exit after this many snapshots (0 follows forever)",
			},
		},
		Action: func(c *cli.Context) error {
			where, err := compileJQ(c.StringSlice("where"))
			if err != nil {
				return err
			}
			jsonOutput := c.Bool("json")
			limit := c.Int("count")

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "Streaming token stats from %s (Ctrl-C to exit)\n\n", c.String("server-url"))
			}

			count := 0
			err = getClient(c).StreamStats(ctx, c.String("symbol"), func(e *natspkg.TokenStatsEvent) error {
				ok, err := matchesJQ(where, e)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
				count++
				printStatsEvent(e, jsonOutput)
				if limit > 0 && count >= limit {
					return errStopStream
				}
				return nil
			})
			if errors.Is(err, errStopStream) || errors.Is(err, context.Canceled) {
				err = nil
			}
			if !jsonOutput {
				fmt.Fprintf(os.Stderr, "\nReceived %d snapshots\n", count)
			}
			return err
		},
	}
}

func printStatsEvent(e *natspkg.TokenStatsEvent, jsonOutput bool) {
	if jsonOutput {
		data, _ := json.Marshal(e)
		fmt.Println(string(data))
		return
	}
	stats := &pricefeed.TokenStats{
		Symbol:         e.Symbol,
		Price:          e.Price,
		PriceChange24h: e.PriceChange24h,
		Volume24h:      e.Volume24h,
		MarketCap:      e.MarketCap,
		FetchedAt:      e.FetchedAt,
	}
	fmt.Println(renderStatsBox(e.Symbol, views.NewHeader(e.Symbol, stats), e.FetchedAt))
}
