package table

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var amountMapping = FilterMapping{
	Property: "amount",
	Key:      "Amount >",
	Labels:   []string{"100k", "..."},
	Values:   []string{"100000000000000", "100000000"},
	Operator: "greaterThan",
}

func TestToggleSort(t *testing.T) {
	first := ToggleSort(nil, "amount")
	assert.Equal(t, SortOrder{Property: "amount", Direction: DESC}, first)

	second := ToggleSort(&first, "amount")
	assert.Equal(t, ASC, second.Direction)

	third := ToggleSort(&second, "amount")
	assert.Equal(t, DESC, third.Direction)

	other := ToggleSort(&second, "time")
	assert.Equal(t, SortOrder{Property: "time", Direction: DESC}, other)
}

func TestToggleSort_Alternates(t *testing.T) {
	order := ToggleSort(nil, "amount")
	for i := 0; i < 6; i++ {
		next := ToggleSort(&order, "amount")
		assert.NotEqual(t, order.Direction, next.Direction)
		order = next
	}
}

func TestParseState(t *testing.T) {
	q := url.Values{
		"sort":          {"amount"},
		"dir":           {"asc"},
		"filter.amount": {"100000000"},
		"filter.other":  {"1"},
		"search":        {"  opentensor "},
		"offset":        {"20"},
		"limit":         {"-1"},
	}

	s := ParseState(q, []FilterMapping{amountMapping})
	require.NotNil(t, s.Sort)
	assert.Equal(t, SortOrder{Property: "amount", Direction: ASC}, *s.Sort)
	assert.Equal(t, map[string]string{"amount": "100000000"}, s.Filter)
	assert.Equal(t, "opentensor", s.Search)
	assert.Equal(t, 20, s.Offset)
	assert.Equal(t, 0, s.Limit)
}

func TestParseState_UnknownFilterValueDropped(t *testing.T) {
	s := ParseState(url.Values{"filter.amount": {"42"}}, []FilterMapping{amountMapping})
	assert.Nil(t, s.Filter)
	assert.Nil(t, s.Sort)
}

func TestState_EncodeRoundTrip(t *testing.T) {
	s := State{
		Sort:   &SortOrder{Property: "time", Direction: DESC},
		Filter: map[string]string{"amount": "100000000"},
		Search: "5Grw",
		Offset: 10,
	}

	got := ParseState(s.Encode(), []FilterMapping{amountMapping})
	assert.Equal(t, s, got)
	assert.Equal(t, "/x?dir=DESC&filter.amount=100000000&offset=10&search=5Grw&sort=time", s.URL("/x"))
	assert.Equal(t, "/x", State{}.URL("/x"))
}

func TestState_WithHelpersResetOffset(t *testing.T) {
	s := State{Offset: 30, Filter: map[string]string{"a": "1"}}

	sorted := s.WithSort(SortOrder{Property: "amount", Direction: ASC})
	assert.Equal(t, 0, sorted.Offset)
	assert.Equal(t, 30, s.Offset)

	filtered := s.WithFilter("amount", "2")
	assert.Equal(t, 0, filtered.Offset)
	assert.Len(t, filtered.Filter, 2)
	assert.Len(t, s.Filter, 1, "original filter untouched")

	assert.Equal(t, 0, s.WithOffset(-10).Offset)
}
