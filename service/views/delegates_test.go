package views

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/table"
)

const (
	alice = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	bob   = "5FHneW46xGXgs5mUiveU4sbTyGBzmstUspZC92UhjJM694ty"
)

func testDelegates() explorer.PaginatedResource[explorer.Delegate] {
	return explorer.NewResource(&explorer.ItemsResponse[explorer.Delegate]{
		Data: []explorer.Delegate{
			{ID: "1", Account: alice, Delegate: bob, DelegateName: "Bob's Validator", Action: explorer.ActionDelegate,
				Amount: big.NewInt(1_500_000_000_000), BlockNumber: 100, ExtrinsicID: 4},
			{ID: "2", Account: alice, Delegate: bob, Action: explorer.ActionUndelegate,
				Amount: big.NewInt(250_000_000), BlockNumber: 101},
		},
		Pagination: explorer.Pagination{Limit: 10, TotalCount: 2},
	}, nil)
}

func keys(e table.Export) []string {
	out := make([]string, 0, len(e.Columns))
	for _, c := range e.Columns {
		out = append(out, c.Key)
	}
	return out
}

func fixedTimestamps(ctx context.Context, heights []int64) (map[int64]string, error) {
	return map[int64]string{
		100: "2024-03-01T10:00:00.000Z",
		101: "2024-03-02T11:30:00.000Z",
	}, nil
}

func TestOrderMappings(t *testing.T) {
	assert.Equal(t, explorer.DelegatesOrder("AMOUNT_DESC"), OrderFromSort(&table.SortOrder{Property: "amount", Direction: table.DESC}))
	assert.Equal(t, explorer.DelegatesOrder("BLOCK_NUMBER_ASC"), OrderFromSort(&table.SortOrder{Property: "time", Direction: table.ASC}))
	assert.Equal(t, explorer.DelegatesOrder(""), OrderFromSort(&table.SortOrder{Property: "account", Direction: table.ASC}))
	assert.Equal(t, explorer.DelegatesOrder(""), OrderFromSort(nil))

	for _, order := range []explorer.DelegatesOrder{"AMOUNT_ASC", "AMOUNT_DESC", "BLOCK_NUMBER_ASC", "BLOCK_NUMBER_DESC"} {
		s := SortFromOrder(order)
		require.NotNil(t, s, order)
		assert.Equal(t, order, OrderFromSort(s))
	}
	assert.Nil(t, SortFromOrder("NATURAL"))
}

func TestDelegatesFilterMappings(t *testing.T) {
	m := DelegatesFilterMappings("100000000")
	require.Len(t, m, 1)
	assert.Equal(t, "Amount >", m[0].Key)
	assert.Equal(t, "greaterThan", m[0].Operator)
	require.Len(t, m[0].Values, len(m[0].Labels))
	assert.Equal(t, "100000000000000", m[0].Values[0])
	assert.Equal(t, "100000000", m[0].Values[len(m[0].Values)-1])

	state := table.State{Filter: map[string]string{"amount": "1000000000000"}}
	f := DelegateFilterFromState(explorer.DelegatesForAccount(alice), state, m)
	assert.Equal(t, explorer.DelegateFilter{
		"account": {"equalTo": alice},
		"amount":  {"greaterThan": "1000000000000"},
	}, f)
}

func TestDelegatesTable(t *testing.T) {
	now := time.Date(2024, 3, 2, 12, 30, 0, 0, time.UTC)
	tbl := DelegatesTable(testDelegates(), DelegatesTableOptions{
		Network:             "bittensor",
		Currency:            "TAO",
		SS58Prefix:          42,
		ShowTime:            true,
		Timestamps:          map[int64]string{100: "2024-03-01T10:00:00Z", 101: "2024-03-02T11:30:00Z"},
		MinDelegationAmount: "100000000",
		Path:                "/bittensor/account/" + alice,
		ExportURL:           "/bittensor/account/" + alice + "/delegates.csv",
		Now:                 func() time.Time { return now },
	})

	v := tbl.Build()
	require.Equal(t, table.StateData, v.State)
	assert.Equal(t, "No delegate/undelegate events found", v.NotFoundMessage)
	require.NotNil(t, v.Search)
	assert.Equal(t, "DELEGATE", v.Search.Placeholder)
	assert.NotEmpty(t, v.ExportURL)

	labels := make([]string, 0, len(v.Headers))
	for _, h := range v.Headers {
		labels = append(labels, h.Label)
	}
	assert.Equal(t, []string{"Extrinsic", "Account", "", "Delegate", "Amount", "Time"}, labels)

	first, second := v.Rows[0], v.Rows[1]
	assert.Contains(t, string(first[0]), `href="/bittensor/extrinsic/100-4"`)
	assert.Empty(t, second[0], "no extrinsic link without an extrinsic id")
	assert.Contains(t, string(first[1]), "5Grwva...GKutQY")
	assert.Contains(t, string(first[2]), "dir-out")
	assert.Contains(t, string(second[2]), "dir-in")
	assert.Contains(t, string(first[3]), `href="/bittensor/validators/`+bob+`"`)
	assert.Contains(t, string(first[3]), "Bob&#39;s Validator")
	assert.Contains(t, string(second[3]), "5FHneW...M694ty")
	assert.Contains(t, string(first[4]), "1,500 TAO")
	assert.Contains(t, string(first[5]), "a day ago")
	assert.Contains(t, string(second[5]), "an hour ago")
}

func TestDelegatesTable_WithoutTime(t *testing.T) {
	tbl := DelegatesTable(testDelegates(), DelegatesTableOptions{Network: "bittensor", Currency: "TAO"})
	assert.Len(t, tbl.Columns, 5)
	assert.Empty(t, tbl.ExportURL)
}

func TestDelegatesExport_FromAccountPage(t *testing.T) {
	e, err := DelegatesExport(context.Background(), testDelegates(), alice, "TAO", false, fixedTimestamps)
	require.NoError(t, err)

	assert.Equal(t, []string{"height", "createdAt", "account", "action", "amount"}, keys(e))
	assert.Equal(t, "delegation-"+alice, e.Filename)
	require.Len(t, e.Data, 2)
	assert.Equal(t, map[string]string{
		"height":    "100",
		"createdAt": "2024-03-01 10:00:00",
		"account":   alice,
		"validator": "Bob's Validator",
		"action":    "DELEGATE",
		"amount":    "1,500 TAO",
	}, e.Data[0])
	assert.Equal(t, "0.25 TAO", e.Data[1]["amount"])

	var sb strings.Builder
	require.NoError(t, table.WriteCSV(&sb, e))
	assert.True(t, strings.HasPrefix(sb.String(), "Block height,Time(UTC),Account,Action,Amount\n"))
}

func TestDelegatesExport_FromValidatorPage(t *testing.T) {
	e, err := DelegatesExport(context.Background(), testDelegates(), bob, "TAO", true, fixedTimestamps)
	require.NoError(t, err)
	assert.Equal(t, []string{"height", "createdAt", "validator", "action", "amount"}, keys(e))
	assert.Equal(t, bob, e.Data[1]["validator"], "unnamed delegates fall back to the address")
}

func TestDelegatesExport_NoData(t *testing.T) {
	called := false
	fetch := func(ctx context.Context, heights []int64) (map[int64]string, error) {
		called = true
		return nil, nil
	}

	e, err := DelegatesExport(context.Background(), explorer.LoadingResource[explorer.Delegate](), alice, "TAO", false, fetch)
	require.NoError(t, err)
	assert.Empty(t, e.Data)
	assert.False(t, called)
}

func TestDelegatesExport_TimestampError(t *testing.T) {
	fetch := func(ctx context.Context, heights []int64) (map[int64]string, error) {
		return nil, errors.New("archive down")
	}
	_, err := DelegatesExport(context.Background(), testDelegates(), alice, "TAO", false, fetch)
	assert.ErrorContains(t, err, "archive down")
}
