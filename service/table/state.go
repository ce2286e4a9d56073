// Package table renders paginated resources as HTML grids with sorting,
// filtering, search and CSV export. Tables are controlled: the state lives in
// the request URL and the page handler re-fetches when it changes.
package table

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// SortDirection is the order of a sorted column.
type SortDirection string

const (
	ASC  SortDirection = "ASC"
	DESC SortDirection = "DESC"
)

// Flip returns the opposite direction.
func (d SortDirection) Flip() SortDirection {
	if d == ASC {
		return DESC
	}
	return ASC
}

// SortOrder is the column a table is sorted by.
type SortOrder struct {
	Property  string        `json:"property"`
	Direction SortDirection `json:"direction"`
}

// ToggleSort returns the order after clicking the header of property.
// A new property starts descending; the current property flips.
func ToggleSort(current *SortOrder, property string) SortOrder {
	if current != nil && current.Property == property {
		return SortOrder{Property: property, Direction: current.Direction.Flip()}
	}
	return SortOrder{Property: property, Direction: DESC}
}

// FilterMapping describes a filterable property and the values a user may pick.
// Labels and Values are parallel.
type FilterMapping struct {
	Property string
	Key      string
	Labels   []string
	Values   []string
	Operator string
}

// Label returns the label of a mapped value.
func (m FilterMapping) Label(value string) (string, bool) {
	for i, v := range m.Values {
		if v == value && i < len(m.Labels) {
			return m.Labels[i], true
		}
	}
	return "", false
}

// State is the sort, filter, search and page a table is showing.
type State struct {
	Sort   *SortOrder
	Filter map[string]string
	Search string
	Offset int
	Limit  int
}

const (
	paramSort   = "sort"
	paramDir    = "dir"
	paramSearch = "search"
	paramOffset = "offset"
	paramLimit  = "limit"
	paramFilter = "filter."
)

// ParseState reads table state from a query string. Filter values that are
// not in a mapping are dropped.
func ParseState(q url.Values, mappings []FilterMapping) State {
	s := State{Search: strings.TrimSpace(q.Get(paramSearch))}

	if p := q.Get(paramSort); p != "" {
		dir := SortDirection(strings.ToUpper(q.Get(paramDir)))
		if dir != ASC {
			dir = DESC
		}
		s.Sort = &SortOrder{Property: p, Direction: dir}
	}

	for _, m := range mappings {
		v := q.Get(paramFilter + m.Property)
		if _, ok := m.Label(v); ok {
			if s.Filter == nil {
				s.Filter = make(map[string]string)
			}
			s.Filter[m.Property] = v
		}
	}

	if v, err := strconv.Atoi(q.Get(paramOffset)); err == nil && v > 0 {
		s.Offset = v
	}
	if v, err := strconv.Atoi(q.Get(paramLimit)); err == nil && v > 0 {
		s.Limit = v
	}
	return s
}

// Encode writes the state as query parameters. Zero values are left out.
func (s State) Encode() url.Values {
	q := url.Values{}
	if s.Sort != nil && s.Sort.Property != "" {
		q.Set(paramSort, s.Sort.Property)
		q.Set(paramDir, string(s.Sort.Direction))
	}
	keys := make([]string, 0, len(s.Filter))
	for k := range s.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.Set(paramFilter+k, s.Filter[k])
	}
	if s.Search != "" {
		q.Set(paramSearch, s.Search)
	}
	if s.Offset > 0 {
		q.Set(paramOffset, strconv.Itoa(s.Offset))
	}
	if s.Limit > 0 {
		q.Set(paramLimit, strconv.Itoa(s.Limit))
	}
	return q
}

// WithSort returns a copy sorted by order, back on the first page.
func (s State) WithSort(order SortOrder) State {
	s.Sort = &order
	s.Offset = 0
	return s
}

// WithFilter returns a copy with property filtered to value, back on the first page.
func (s State) WithFilter(property, value string) State {
	f := make(map[string]string, len(s.Filter)+1)
	for k, v := range s.Filter {
		f[k] = v
	}
	f[property] = value
	s.Filter = f
	s.Offset = 0
	return s
}

// WithOffset returns a copy showing the page at offset.
func (s State) WithOffset(offset int) State {
	if offset < 0 {
		offset = 0
	}
	s.Offset = offset
	return s
}

// URL renders the state as a link to path.
func (s State) URL(path string) string {
	q := s.Encode().Encode()
	if q == "" {
		return path
	}
	return path + "?" + q
}
