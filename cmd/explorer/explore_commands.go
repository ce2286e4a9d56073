package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/urfave/cli/v2"

	"github.com/gabrielcipriano/bittensor-explorer/client"
	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/format"
	"github.com/gabrielcipriano/bittensor-explorer/service/ss58"
)

const defaultSS58Prefix = 42

var pageFlags = []cli.Flag{
	&cli.IntFlag{
		Name:  "offset",
		Usage: "Number of rows to skip",
	},
	&cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Page size",
		Value:   10,
	},
}

func pageFromFlags(c *cli.Context) client.Page {
	return client.Page{Offset: c.Int("offset"), Limit: c.Int("limit")}
}

// networkInfo looks up the network selected by --network.
func networkInfo(ctx context.Context, cl *client.Client, name string) (client.Network, error) {
	networks, err := cl.Networks(ctx)
	if err != nil {
		return client.Network{}, fmt.Errorf("failed to list networks: %w", err)
	}
	for _, n := range networks {
		if n.Name == name {
			return n, nil
		}
	}
	return client.Network{}, fmt.Errorf("unknown network %q", name)
}

func networksCommand() *cli.Command {
	return &cli.Command{
		Name:  "networks",
		Usage: "List the networks the server explores",
		Flags: []cli.Flag{jqFlag},
		Action: func(c *cli.Context) error {
			networks, err := getClient(c).Networks(c.Context)
			if err != nil {
				return err
			}
			if done, err := emit(c, networks); done {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tDISPLAY NAME\tCURRENCY\tSS58 PREFIX\tDEFAULT")
			for _, n := range networks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%v\n", n.Name, n.DisplayName, n.Currency, n.SS58Prefix, n.Default)
			}
			return w.Flush()
		},
	}
}

func transfersCommand() *cli.Command {
	return &cli.Command{
		Name:      "transfers",
		Usage:     "List transfers, optionally of one account",
		ArgsUsage: "[address]",
		Description: `List the latest transfers of the network, newest first.

With an address, only transfers from or to that account are listed.

Examples:
  explorer transfers
  explorer transfers 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY --limit 25
  explorer transfers --jq '.data[] | select(.success | not) | .extrinsicHash'`,
		Flags: append([]cli.Flag{jqFlag}, pageFlags...),
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("accepts at most one argument: account address")
			}
			cl := getClient(c)
			network := c.String("network")

			resp, err := cl.Transfers(c.Context, network, c.Args().First(), pageFromFlags(c))
			if err != nil {
				return fmt.Errorf("failed to list transfers: %w", err)
			}
			if done, err := emit(c, resp); done {
				return err
			}

			info, err := networkInfo(c.Context, cl, network)
			if err != nil {
				return err
			}
			address := func(pubkey string) string {
				return ss58.Shorten(ss58.Reencode(pubkey, info.SS58Prefix))
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BLOCK\tTIME (UTC)\tFROM\tTO\tAMOUNT\tSUCCESS")
			for _, t := range resp.Data {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%v\n",
					t.BlockNumber,
					shortTime(t.Timestamp),
					address(t.FromPublicKey),
					address(t.ToPublicKey),
					format.FormatRawAmount(t.Amount, info.Currency, format.Optimal),
					t.Success,
				)
			}
			w.Flush()

			printPagination(resp.Pagination, len(resp.Data), "transfers")
			return nil
		},
	}
}

func callsCommand() *cli.Command {
	return &cli.Command{
		Name:      "calls",
		Usage:     "List calls, optionally by name",
		ArgsUsage: "[Pallet.call]",
		Description: `List the latest extrinsic calls, newest first.

Examples:
  explorer calls
  explorer calls SubtensorModule.add_stake --limit 50`,
		Flags: append([]cli.Flag{jqFlag}, pageFlags...),
		Action: func(c *cli.Context) error {
			if c.NArg() > 1 {
				return fmt.Errorf("accepts at most one argument: call name")
			}

			resp, err := getClient(c).Calls(c.Context, c.String("network"), c.Args().First(), pageFromFlags(c))
			if err != nil {
				return fmt.Errorf("failed to list calls: %w", err)
			}
			if done, err := emit(c, resp); done {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tBLOCK\tTIME (UTC)\tSUCCESS")
			for _, call := range resp.Data {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%v\n",
					call.ID,
					call.Name,
					call.BlockHeight,
					shortTime(call.Timestamp),
					call.Success,
				)
			}
			w.Flush()

			printPagination(resp.Pagination, len(resp.Data), "calls")
			return nil
		},
	}
}

func delegatesCommand() *cli.Command {
	return &cli.Command{
		Name:  "delegates",
		Usage: "List delegation events of an account or a validator",
		Description: `List DELEGATE and UNDELEGATE events.

Exactly one of --account or --validator is required. With --csv the rows are
downloaded in the export format of the web table instead.

Examples:
  explorer delegates --account 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY
  explorer delegates --validator 5F4tQyWrhfGVcNhoqeiNsR6KjD4wMZ2kfhLj4oHYuyHbZAc3 --sort amount --dir DESC
  explorer delegates --account 5Grw... --csv > delegation.csv`,
		Flags: append([]cli.Flag{
			jqFlag,
			&cli.StringFlag{
				Name:    "account",
				Aliases: []string{"a"},
				Usage:   "Delegator address",
			},
			&cli.StringFlag{
				Name:    "validator",
				Aliases: []string{"v"},
				Usage:   "Validator address",
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "Sort column: amount or time",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Sort direction: ASC or DESC",
			},
			&cli.StringFlag{
				Name:  "min-amount",
				Usage: "Only amounts above this raw value",
			},
			&cli.StringFlag{
				Name:    "search",
				Aliases: []string{"s"},
				Usage:   "Counterparty address to match",
			},
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Write the CSV export to stdout",
			},
		}, pageFlags...),
		Action: func(c *cli.Context) error {
			query := client.DelegatesQuery{
				Account:   c.String("account"),
				Validator: c.String("validator"),
				Sort:      c.String("sort"),
				Dir:       c.String("dir"),
				MinAmount: c.String("min-amount"),
				Search:    c.String("search"),
				Page:      pageFromFlags(c),
			}
			if (query.Account == "") == (query.Validator == "") {
				return fmt.Errorf("exactly one of --account or --validator is required")
			}
			cl := getClient(c)
			network := c.String("network")

			if c.Bool("csv") {
				address, fromValidator := query.Account, false
				if query.Validator != "" {
					address, fromValidator = query.Validator, true
				}
				return cl.DelegatesCSV(c.Context, network, address, fromValidator, query, os.Stdout)
			}

			resp, err := cl.Delegates(c.Context, network, query)
			if err != nil {
				return fmt.Errorf("failed to list delegates: %w", err)
			}
			if done, err := emit(c, resp); done {
				return err
			}

			info, err := networkInfo(c.Context, cl, network)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "BLOCK\tACCOUNT\tVALIDATOR\tACTION\tAMOUNT")
			for _, d := range resp.Data {
				validator := ss58.Shorten(d.Delegate)
				if d.DelegateName != "" {
					validator = d.DelegateName
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					d.BlockNumber,
					ss58.Shorten(d.Account),
					validator,
					d.Action,
					format.FormatRawAmount(d.Amount, info.Currency, format.Optimal),
				)
			}
			w.Flush()

			printPagination(resp.Pagination, len(resp.Data), "delegation events")
			return nil
		},
	}
}

func accountCommand() *cli.Command {
	return &cli.Command{
		Name:      "account",
		Usage:     "Resolve an address into an account",
		ArgsUsage: "<address>",
		Flags:     []cli.Flag{jqFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account address")
			}

			account, err := getClient(c).Account(c.Context, c.String("network"), c.Args().First())
			if err != nil {
				return fmt.Errorf("failed to get account: %w", err)
			}
			if done, err := emit(c, account); done {
				return err
			}

			fmt.Printf("Address:     %s\n", account.Address)
			fmt.Printf("Public key:  %s\n", account.ID)
			fmt.Printf("Runtime:     %s\n", orDash(account.RuntimeSpec.SpecVersion))
			return nil
		},
	}
}

func validatorCommand() *cli.Command {
	return &cli.Command{
		Name:      "validator",
		Usage:     "Show a validator and optionally plot its stake history",
		ArgsUsage: "<address>",
		Flags: []cli.Flag{
			jqFlag,
			&cli.BoolFlag{
				Name:  "history",
				Usage: "Fetch every page of stake history and plot it",
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
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: validator address")
			}
			address := c.Args().First()
			cl := getClient(c)
			network := c.String("network")

			validator, err := cl.Validator(c.Context, network, address)
			if err != nil {
				return fmt.Errorf("failed to get validator: %w", err)
			}

			var history []explorer.ValidatorStakeHistory
			if c.Bool("history") {
				history, err = stakeHistory(c.Context, cl, network, address)
				if err != nil {
					return err
				}
			}

			if done, err := emit(c, map[string]interface{}{"validator": validator, "history": history}); done {
				return err
			}

			info, err := networkInfo(c.Context, cl, network)
			if err != nil {
				return err
			}

			name := validator.Name
			if name == "" {
				name = validator.Address
			}
			fmt.Printf("Validator:   %s\n", name)
			fmt.Printf("Address:     %s\n", validator.Address)
			fmt.Printf("Rank:        %d\n", validator.Rank)
			fmt.Printf("Stake:       %s\n", format.FormatRawAmount(validator.Amount, info.Currency, format.DecimalPlaces(2)))
			fmt.Printf("Nominators:  %d\n", validator.Nominators)
			if validator.AmountDayChange != nil {
				fmt.Printf("Stake 24h:   %s\n", format.FormatRawAmount(validator.AmountDayChange, info.Currency, format.DecimalPlaces(2)))
			}
			if validator.NominatorsDayChange != nil {
				fmt.Printf("Nominators 24h: %+d\n", *validator.NominatorsDayChange)
			}
			fmt.Printf("Updated:     %s (block %d)\n", shortTime(validator.Timestamp), validator.Height)

			if len(history) > 1 {
				points := make([]float64, len(history))
				for i, h := range history {
					points[i] = format.RawAmountToFloat(h.Amount)
				}
				fmt.Println()
				fmt.Println(asciigraph.Plot(points,
					asciigraph.Height(c.Int("height")),
					asciigraph.Width(c.Int("width")),
					asciigraph.Caption(fmt.Sprintf("Stake (%s), %s to %s", info.Currency,
						shortTime(history[0].Timestamp), shortTime(history[len(history)-1].Timestamp))),
				))
			}
			return nil
		},
	}
}

// stakeHistory follows the cursor until every page is read.
func stakeHistory(ctx context.Context, cl *client.Client, network, address string) ([]explorer.ValidatorStakeHistory, error) {
	var all []explorer.ValidatorStakeHistory
	after := ""
	for {
		page, err := cl.ValidatorStakeHistory(ctx, network, address, after)
		if err != nil {
			return nil, fmt.Errorf("failed to get stake history: %w", err)
		}
		all = append(all, page.Data...)
		if !page.HasNextPage || page.EndCursor == "" || page.EndCursor == after {
			return all, nil
		}
		after = page.EndCursor
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Plot the stake an account holds with each delegate over time",
		ArgsUsage: "<address>",
		Description: `Draw the delegation history chart of an account in the terminal.

Examples:
  explorer history 5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY
  explorer history 5Grw... --csv > history.csv`,
		Flags: []cli.Flag{
			jqFlag,
			&cli.BoolFlag{
				Name:  "csv",
				Usage: "Write the CSV export to stdout",
			},
			&cli.IntFlag{
				Name:  "height",
				Usage: "Chart height in rows",
				Value: 15,
			},
			&cli.IntFlag{
				Name:  "width",
				Usage: "Chart width in columns (0 fits the data)",
				Value: 80,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("requires exactly one argument: account address")
			}
			address := c.Args().First()
			cl := getClient(c)
			network := c.String("network")

			if c.Bool("csv") {
				return cl.DelegateHistoryCSV(c.Context, network, address, os.Stdout)
			}

			chart, err := cl.DelegateHistory(c.Context, network, address)
			if err != nil {
				return fmt.Errorf("failed to get delegate history: %w", err)
			}
			if done, err := emit(c, chart); done {
				return err
			}

			if len(chart.Series) == 0 {
				fmt.Println("No delegation history found")
				return nil
			}
			fmt.Println(plotDelegateHistory(chart, c.Int("width"), c.Int("height")))
			fmt.Println()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "DELEGATE\tPOINTS\tLATEST")
			for _, s := range chart.Series {
				latest := "-"
				if n := len(s.Points); n > 0 {
					latest = strconv.FormatFloat(s.Points[n-1].Value, 'f', -1, 64)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", s.Name, len(s.Points), latest)
			}
			return w.Flush()
		},
	}
}

func printPagination(p explorer.Pagination, shown int, noun string) {
	if shown == 0 {
		fmt.Fprintf(os.Stderr, "\nNo %s found\n", noun)
		return
	}
	fmt.Fprintf(os.Stderr, "\nShowing %d-%d of %d %s\n", p.Offset+1, p.Offset+shown, p.TotalCount, noun)
	if p.HasNextPage {
		fmt.Fprintf(os.Stderr, "Next page: --offset %d\n", p.Offset+shown)
	}
}
