package views

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"time"

	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/format"
	"github.com/gabrielcipriano/bittensor-explorer/service/table"
)

// ChartPoint is one stake sample of a series.
type ChartPoint struct {
	Time   time.Time `json:"x"`
	Value  float64   `json:"y"`
	Amount *big.Int  `json:"amount"`
	// Now marks the synthetic point built from current balances.
	Now bool `json:"now,omitempty"`
}

// Series is the stake history of an account towards one delegate.
type Series struct {
	Delegate string       `json:"delegate"`
	Name     string       `json:"name"`
	Points   []ChartPoint `json:"data"`
}

// DelegateHistoryChart is the stake-per-delegate chart of an account.
type DelegateHistoryChart struct {
	Account    string      `json:"account"`
	Timestamps []time.Time `json:"timestamps"`
	Series     []Series    `json:"series"`
	Max        float64     `json:"max"`
}

// nowOffset places the current balances one day ahead so they plot after the last snapshot.
const nowOffset = 24 * time.Hour

// BuildDelegateHistoryChart groups history snapshots into one series per
// delegate and appends a "now" point to each delegate with a current balance.
// Series are ordered by first appearance, history before balances.
func BuildDelegateHistoryChart(account string, history []explorer.AccountDelegateHistory, balances []explorer.DelegateBalance, verified map[string]explorer.VerifiedDelegate, now time.Time) DelegateHistoryChart {
	c := DelegateHistoryChart{Account: account, Timestamps: []time.Time{}, Series: []Series{}}
	index := make(map[string]int)

	seriesFor := func(delegate string) *Series {
		i, ok := index[delegate]
		if !ok {
			name := delegate
			if n, ok := explorer.DelegateName(verified, delegate); ok {
				name = n
			}
			c.Series = append(c.Series, Series{Delegate: delegate, Name: name})
			i = len(c.Series) - 1
			index[delegate] = i
		}
		return &c.Series[i]
	}

	seen := make(map[string]bool)
	for _, h := range history {
		t, ok := parseTimestamp(h.Timestamp)
		if !ok {
			continue
		}
		if !seen[h.Timestamp] {
			seen[h.Timestamp] = true
			c.Timestamps = append(c.Timestamps, t)
		}
		s := seriesFor(h.Delegate)
		s.Points = append(s.Points, newChartPoint(t, h.Amount, false))
		c.Max = max(c.Max, format.RawAmountToFloat(h.Amount))
	}

	if len(balances) > 0 {
		at := now.UTC().Add(nowOffset)
		c.Timestamps = append(c.Timestamps, at)
		for _, b := range balances {
			s := seriesFor(b.Delegate)
			s.Points = append(s.Points, newChartPoint(at, b.Amount, true))
			c.Max = max(c.Max, format.RawAmountToFloat(b.Amount))
		}
	}
	return c
}

func newChartPoint(t time.Time, amount *big.Int, now bool) ChartPoint {
	if amount == nil {
		amount = new(big.Int)
	}
	return ChartPoint{Time: t, Value: format.RawAmountToFloat(amount), Amount: amount, Now: now}
}

// Empty reports whether there is nothing to plot.
func (c DelegateHistoryChart) Empty() bool {
	return len(c.Series) == 0
}

// AxisLabel formats a y axis value.
func AxisLabel(v float64) string {
	return format.NFormatter(v, 2)
}

// PointLabel is the tooltip title of a point.
func PointLabel(p ChartPoint) string {
	if p.Now {
		return "Now"
	}
	return p.Time.Format(time.DateOnly)
}

const missingCell = "--"

// Export walks the timestamps up to now and writes, per series, the stake of
// the matching calendar day and its change since the series' previous sample,
// followed by the total and its change.
func (c DelegateHistoryChart) Export(now time.Time) table.Export {
	cols := []table.ExportColumn{{Key: "date", DisplayLabel: "Date"}}
	for i := range c.Series {
		n := strconv.Itoa(i + 1)
		cols = append(cols,
			table.ExportColumn{Key: "name" + n, DisplayLabel: "Vali name " + n},
			table.ExportColumn{Key: "total" + n, DisplayLabel: "Vali total " + n},
			table.ExportColumn{Key: "increase" + n, DisplayLabel: "Vali daily increase " + n},
		)
	}
	cols = append(cols,
		table.ExportColumn{Key: "total", DisplayLabel: "Total"},
		table.ExportColumn{Key: "increase", DisplayLabel: "Total daily increase"},
	)

	byDay := make([]map[string]ChartPoint, len(c.Series))
	for i, s := range c.Series {
		byDay[i] = make(map[string]ChartPoint, len(s.Points))
		for _, p := range s.Points {
			day := p.Time.UTC().Format(time.DateOnly)
			if _, dup := byDay[i][day]; !dup {
				byDay[i][day] = p
			}
		}
	}

	timestamps := append([]time.Time(nil), c.Timestamps...)
	sort.SliceStable(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	prev := make([]*big.Rat, len(c.Series))
	for i := range prev {
		prev[i] = new(big.Rat)
	}
	prevTotal := new(big.Rat)

	rows := make([]map[string]string, 0, len(timestamps))
	for _, ts := range timestamps {
		if ts.After(now) {
			continue
		}
		row := map[string]string{"date": ts.UTC().Format(utcLayout)}
		day := ts.UTC().Format(time.DateOnly)
		total := new(big.Rat)
		for i, s := range c.Series {
			n := strconv.Itoa(i + 1)
			p, ok := byDay[i][day]
			if !ok {
				row["name"+n], row["total"+n], row["increase"+n] = missingCell, missingCell, missingCell
				continue
			}
			y := format.RawAmountToDecimal(p.Amount)
			row["name"+n] = s.Name
			row["total"+n] = format.FormatDecimal(y, format.Optimal)
			row["increase"+n] = format.FormatDecimal(new(big.Rat).Sub(y, prev[i]), format.Optimal)
			prev[i] = y
			total.Add(total, y)
		}
		row["total"] = format.FormatDecimal(total, format.Optimal)
		row["increase"] = format.FormatDecimal(new(big.Rat).Sub(total, prevTotal), format.Optimal)
		prevTotal = total
		rows = append(rows, row)
	}

	return table.Export{
		Columns:  cols,
		Data:     rows,
		Filename: fmt.Sprintf("delegation-%s.csv", c.Account),
	}
}
