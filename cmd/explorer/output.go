package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"

	"github.com/gabrielcipriano/bittensor-explorer/client"
	"github.com/gabrielcipriano/bittensor-explorer/service/views"
)

var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	titleStyle  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
	upStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	downStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	boxStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#874BFD")).
			Padding(1, 2)
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Blue, asciigraph.Red, asciigraph.Green, asciigraph.Yellow,
	asciigraph.Magenta, asciigraph.Cyan, asciigraph.Orange, asciigraph.Purple,
}

var jqFlag = &cli.StringSliceFlag{
	Name:  "jq",
	Usage: "jq filter applied to the JSON result (can be repeated; outputs are printed one per line)",
}

// getClient builds an API client from the global flags.
func getClient(c *cli.Context) *client.Client {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	return client.NewClient(c.String("server-url"), &http.Client{Timeout: 30 * time.Second}, logger)
}

func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// compileJQ parses and compiles each filter.
func compileJQ(filters []string) ([]*gojq.Code, error) {
	codes := make([]*gojq.Code, len(filters))
	for i, filter := range filters {
		query, err := gojq.Parse(filter)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
		}
		codes[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
		}
	}
	return codes, nil
}

// toJQValue converts v into the generic maps and slices gojq operates on.
func toJQValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// runJQ applies each filter to v and returns every emitted value.
func runJQ(codes []*gojq.Code, v interface{}) ([]interface{}, error) {
	input, err := toJQValue(v)
	if err != nil {
		return nil, fmt.Errorf("failed to convert result for jq: %w", err)
	}
	var results []interface{}
	for _, code := range codes {
		iter := code.Run(input)
		for {
			result, ok := iter.Next()
			if !ok {
				break
			}
			if err, ok := result.(error); ok {
				return nil, fmt.Errorf("jq filter failed: %w", err)
			}
			results = append(results, result)
		}
	}
	return results, nil
}

// matchesJQ reports whether every filter yields a truthy first value for v.
func matchesJQ(codes []*gojq.Code, v interface{}) (bool, error) {
	input, err := toJQValue(v)
	if err != nil {
		return false, err
	}
	for _, code := range codes {
		result, ok := code.Run(input).Next()
		if !ok {
			return false, nil
		}
		if err, ok := result.(error); ok {
			return false, fmt.Errorf("jq filter failed: %w", err)
		}
		if !isTruthy(result) {
			return false, nil
		}
	}
	return true, nil
}

// isTruthy checks if a jq result value is truthy.
// In jq, false and null are falsy, everything else is truthy.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	return true
}

// writeJQResults prints strings raw and everything else as compact JSON.
func writeJQResults(w io.Writer, results []interface{}) error {
	for _, r := range results {
		if s, ok := r.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	}
	return nil
}

// emit prints v through the --jq filters or as JSON. It reports false when
// neither was requested and the caller should render its own table.
func emit(c *cli.Context, v interface{}) (bool, error) {
	if filters := c.StringSlice("jq"); len(filters) > 0 {
		codes, err := compileJQ(filters)
		if err != nil {
			return true, err
		}
		results, err := runJQ(codes, v)
		if err != nil {
			return true, err
		}
		return true, writeJQResults(os.Stdout, results)
	}
	if c.Bool("json") {
		return true, outputJSON(v)
	}
	return false, nil
}

// plotDelegateHistory draws one line per delegate. Series are aligned on the
// chart timestamps; a delegate without a sample at a timestamp carries its
// previous value.
func plotDelegateHistory(chart *views.DelegateHistoryChart, width, height int) string {
	if len(chart.Series) == 0 || len(chart.Timestamps) < 2 {
		return "Not enough data to draw graph."
	}

	data := make([][]float64, 0, len(chart.Series))
	colors := make([]asciigraph.AnsiColor, 0, len(chart.Series))
	legends := make([]string, 0, len(chart.Series))
	for i, s := range chart.Series {
		byTime := make(map[int64]float64, len(s.Points))
		for _, p := range s.Points {
			byTime[p.Time.Unix()] = p.Value
		}
		line := make([]float64, len(chart.Timestamps))
		var last float64
		for j, ts := range chart.Timestamps {
			if v, ok := byTime[ts.Unix()]; ok {
				last = v
			}
			line[j] = last
		}
		data = append(data, line)
		colors = append(colors, seriesColors[i%len(seriesColors)])
		legends = append(legends, s.Name)
	}

	first := chart.Timestamps[0].Format("2006-01-02")
	last := chart.Timestamps[len(chart.Timestamps)-1].Format("2006-01-02")
	return asciigraph.PlotMany(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.SeriesColors(colors...),
		asciigraph.SeriesLegends(legends...),
		asciigraph.Caption(fmt.Sprintf("Stake per delegate, %s to %s", first, last)),
	)
}

// renderStatsBox renders a token snapshot as a bordered panel.
func renderStatsBox(symbol string, h views.Header, fetchedAt time.Time) string {
	change := h.ChangeArrow + " " + h.Change
	switch h.ChangeClass {
	case "up":
		change = upStyle.Render(change)
	case "down":
		change = downStyle.Render(change)
	}
	rows := []string{
		titleStyle.Render(symbol + " token stats"),
		"",
		fmt.Sprintf("Price:       $%s  %s", h.Price, change),
		fmt.Sprintf("Volume 24h:  $%s", h.Volume24h),
		fmt.Sprintf("Market cap:  $%s", h.MarketCap),
	}
	if !fetchedAt.IsZero() {
		rows = append(rows, "", subtleStyle.Render("fetched "+fetchedAt.UTC().Format(time.RFC3339)))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func shortTime(ts string) string {
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return ts
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
