package views

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/table"
)

func tao(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000))
}

func chartFixture() ([]explorer.AccountDelegateHistory, []explorer.DelegateBalance, map[string]explorer.VerifiedDelegate) {
	history := []explorer.AccountDelegateHistory{
		{Delegate: "5A", Amount: tao(100), Timestamp: "2024-01-01T00:00:00Z"},
		{Delegate: "5B", Amount: tao(10), Timestamp: "2024-01-01T00:00:00Z"},
		{Delegate: "5A", Amount: tao(150), Timestamp: "2024-01-02T00:00:00Z"},
	}
	balances := []explorer.DelegateBalance{
		{Delegate: "5A", Amount: tao(160)},
		{Delegate: "5C", Amount: tao(500)},
	}
	verified := map[string]explorer.VerifiedDelegate{"5A": {Name: "Alpha"}}
	return history, balances, verified
}

var chartNow = time.Date(2024, 1, 3, 8, 0, 0, 0, time.UTC)

func TestBuildDelegateHistoryChart(t *testing.T) {
	history, balances, verified := chartFixture()
	c := BuildDelegateHistoryChart("5Ex", history, balances, verified, chartNow)

	require.Len(t, c.Series, 3, "one series per distinct delegate across history and balances")
	assert.Equal(t, "Alpha", c.Series[0].Name)
	assert.Equal(t, "5B", c.Series[1].Name)
	assert.Equal(t, "5C", c.Series[2].Name)

	assert.Equal(t, []time.Time{
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		chartNow.Add(24 * time.Hour),
	}, c.Timestamps)

	alpha := c.Series[0].Points
	require.Len(t, alpha, 3)
	assert.True(t, alpha[2].Now)
	assert.Equal(t, "Now", PointLabel(alpha[2]))
	assert.Equal(t, "2024-01-01", PointLabel(alpha[0]))
	assert.Equal(t, 160.0, alpha[2].Value)

	assert.Equal(t, 500.0, c.Max)
	assert.Equal(t, "500", AxisLabel(c.Max))
}

func TestBuildDelegateHistoryChart_SeriesCount(t *testing.T) {
	tests := []struct {
		name     string
		history  []explorer.AccountDelegateHistory
		balances []explorer.DelegateBalance
		want     int
	}{
		{"empty", nil, nil, 0},
		{"history only", []explorer.AccountDelegateHistory{
			{Delegate: "5A", Amount: tao(1), Timestamp: "2024-01-01T00:00:00Z"},
			{Delegate: "5A", Amount: tao(1), Timestamp: "2024-01-02T00:00:00Z"},
		}, nil, 1},
		{"balances only", nil, []explorer.DelegateBalance{{Delegate: "5A", Amount: tao(1)}, {Delegate: "5B", Amount: tao(1)}}, 2},
		{"overlap", []explorer.AccountDelegateHistory{
			{Delegate: "5A", Amount: tao(1), Timestamp: "2024-01-01T00:00:00Z"},
		}, []explorer.DelegateBalance{{Delegate: "5A", Amount: tao(2)}}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := BuildDelegateHistoryChart("5Ex", tt.history, tt.balances, nil, chartNow)
			assert.Len(t, c.Series, tt.want)
			assert.Equal(t, tt.want == 0, c.Empty())
		})
	}
}

func TestBuildDelegateHistoryChart_NoBalancesNoNowPoint(t *testing.T) {
	history, _, _ := chartFixture()
	c := BuildDelegateHistoryChart("5Ex", history, nil, nil, chartNow)
	assert.Len(t, c.Timestamps, 2)
	assert.Equal(t, 150.0, c.Max)
}

func TestDelegateHistoryChart_Export(t *testing.T) {
	history, balances, verified := chartFixture()
	c := BuildDelegateHistoryChart("5Ex", history, balances, verified, chartNow)

	e := c.Export(chartNow)
	assert.Equal(t, "delegation-5Ex.csv", e.Filename)

	var sb strings.Builder
	require.NoError(t, table.WriteCSV(&sb, e))
	want := strings.Join([]string{
		"Date,Vali name 1,Vali total 1,Vali daily increase 1,Vali name 2,Vali total 2,Vali daily increase 2,Vali name 3,Vali total 3,Vali daily increase 3,Total,Total daily increase",
		"2024-01-01 00:00:00,Alpha,100,100,5B,10,10,--,--,--,110,110",
		"2024-01-02 00:00:00,Alpha,150,50,--,--,--,--,--,--,150,40",
		"",
	}, "\n")
	assert.Equal(t, want, sb.String(), "the future now point is skipped")
}

func TestDelegateHistoryChart_ExportFractionalDeltas(t *testing.T) {
	history := []explorer.AccountDelegateHistory{
		{Delegate: "5A", Amount: big.NewInt(1_500_000_000), Timestamp: "2024-01-01T00:00:00Z"},
		{Delegate: "5A", Amount: big.NewInt(1_250_000_000), Timestamp: "2024-01-02T00:00:00Z"},
	}
	c := BuildDelegateHistoryChart("5Ex", history, nil, nil, chartNow)
	e := c.Export(chartNow)

	require.Len(t, e.Data, 2)
	assert.Equal(t, "1.5", e.Data[0]["total1"])
	assert.Equal(t, "1.25", e.Data[1]["total1"])
	assert.Equal(t, "-0.25", e.Data[1]["increase1"])
	assert.Equal(t, "-0.25", e.Data[1]["increase"])
}

func TestDelegateHistoryChart_SVG(t *testing.T) {
	history, balances, verified := chartFixture()
	svg := string(BuildDelegateHistoryChart("5Ex", history, balances, verified, chartNow).SVG())

	assert.True(t, strings.HasPrefix(svg, "<svg"))
	assert.Equal(t, 3, strings.Count(svg, "<polyline"))
	assert.Contains(t, svg, "Alpha: Now 160")

	assert.Empty(t, BuildDelegateHistoryChart("5Ex", nil, nil, nil, chartNow).SVG())
}
