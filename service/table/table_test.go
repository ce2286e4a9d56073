package table

import (
	"errors"
	"html/template"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
)

type row struct {
	Name   string
	Amount int
}

func testTable(r explorer.PaginatedResource[row]) Table[row] {
	return Table[row]{
		Resource:        r,
		NotFoundMessage: "No rows found",
		Columns: []Column[row]{
			{Label: "Name", Render: func(r row) template.HTML { return template.HTML(template.HTMLEscapeString(r.Name)) }},
			{Label: "Amount", SortProperty: "amount", Render: func(r row) template.HTML { return template.HTML(strconv.Itoa(r.Amount)) }},
		},
		State:             State{Sort: &SortOrder{Property: "amount", Direction: DESC}},
		FilterMappings:    []FilterMapping{amountMapping},
		SearchPlaceholder: "DELEGATE",
		Path:              "/bittensor/delegates",
	}
}

func TestBuild_States(t *testing.T) {
	tests := []struct {
		name     string
		resource explorer.PaginatedResource[row]
		want     ViewState
	}{
		{"loading", explorer.LoadingResource[row](), StateLoading},
		{"error", explorer.NewResource[row](nil, errors.New("boom")), StateError},
		{"not found", explorer.NewResource(&explorer.ItemsResponse[row]{}, nil), StateNotFound},
		{"data", explorer.NewResource(&explorer.ItemsResponse[row]{Data: []row{{"a", 1}}}, nil), StateData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testTable(tt.resource).Build()
			assert.Equal(t, tt.want, v.State)
			if tt.want != StateData {
				assert.Empty(t, v.Rows)
			}
			if tt.want == StateError {
				require.NotNil(t, v.Error)
			}
		})
	}
}

func TestBuild_Data(t *testing.T) {
	r := explorer.NewResource(&explorer.ItemsResponse[row]{
		Data: []row{{"<b>", 5}, {"c", 7}},
		Pagination: explorer.Pagination{
			Offset: 10, Limit: 10, HasNextPage: true, TotalCount: 40,
		},
	}, nil)

	v := testTable(r).Build()
	require.Equal(t, StateData, v.State)
	assert.Equal(t, "No rows found", v.NotFoundMessage)

	require.Len(t, v.Rows, 2)
	assert.Equal(t, template.HTML("&lt;b&gt;"), v.Rows[0][0])
	assert.Equal(t, template.HTML("7"), v.Rows[1][1])

	require.Len(t, v.Headers, 2)
	assert.Empty(t, v.Headers[0].URL, "unsortable column has no link")
	assert.True(t, v.Headers[1].Active)
	assert.Equal(t, DESC, v.Headers[1].Direction)
	assert.Equal(t, "/bittensor/delegates?dir=ASC&sort=amount", v.Headers[1].URL)

	assert.Equal(t, 11, v.Pager.From)
	assert.Equal(t, 20, v.Pager.To)
	assert.Equal(t, "/bittensor/delegates?dir=DESC&sort=amount", v.Pager.PrevURL)
	assert.Equal(t, "/bittensor/delegates?dir=DESC&offset=20&sort=amount", v.Pager.NextURL)

	require.Len(t, v.Filters, 1)
	assert.Equal(t, "Amount >", v.Filters[0].Key)
	assert.Len(t, v.Filters[0].Options, 2)
	assert.True(t, strings.Contains(v.Filters[0].Options[1].URL, "filter.amount=100000000"))

	require.NotNil(t, v.Search)
	assert.Equal(t, "DELEGATE", v.Search.Placeholder)
	assert.Equal(t, map[string]string{"sort": "amount", "dir": "DESC"}, v.Search.Hidden)
	assert.Empty(t, v.ExportURL)
}

func TestNewPager_LastPage(t *testing.T) {
	p := NewPager(explorer.Pagination{Offset: 30, Limit: 10, TotalCount: 35}, State{}, "/p")
	assert.Equal(t, 31, p.From)
	assert.Equal(t, 35, p.To)
	assert.Equal(t, "/p?offset=20", p.PrevURL)
	assert.Empty(t, p.NextURL)
}

func TestWriteCSV(t *testing.T) {
	e := Export{
		Columns: []ExportColumn{
			{Key: "height", DisplayLabel: "Block height"},
			{Key: "account", DisplayLabel: "Account"},
			{Key: "amount", DisplayLabel: "Amount"},
		},
		Data: []map[string]string{
			{"height": "10", "account": "5Ex", "amount": "1,000 TAO"},
			{"height": "11", "amount": "2 TAO"},
		},
		Filename: "delegation-5Ex",
	}

	var sb strings.Builder
	require.NoError(t, WriteCSV(&sb, e.Omit("account")))
	assert.Equal(t, "Block height,Amount\n10,\"1,000 TAO\"\n11,2 TAO\n", sb.String())

	sb.Reset()
	require.NoError(t, WriteCSV(&sb, e))
	assert.Equal(t, "Block height,Account,Amount\n10,5Ex,\"1,000 TAO\"\n11,,2 TAO\n", sb.String())
}

func TestServeCSV(t *testing.T) {
	rec := httptest.NewRecorder()
	err := ServeCSV(rec, Export{
		Columns:  []ExportColumn{{Key: "a", DisplayLabel: "A"}},
		Data:     []map[string]string{{"a": "1"}},
		Filename: "delegation-5Ex",
	})
	require.NoError(t, err)

	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="delegation-5Ex.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "A\n1\n", rec.Body.String())

	assert.Equal(t, "chart.csv", Export{Filename: "chart.csv"}.DownloadName())
	assert.Equal(t, "export.csv", Export{}.DownloadName())
}
