package table

import (
	"html/template"

	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
)

// Column renders one attribute of a row.
// A column with a SortProperty is sortable.
type Column[T any] struct {
	Label        string
	Render       func(T) template.HTML
	SortProperty string
	Width        string
}

// Table binds a paginated resource to its columns and controls.
type Table[T any] struct {
	Resource          explorer.PaginatedResource[T]
	NotFoundMessage   string
	Columns           []Column[T]
	State             State
	FilterMappings    []FilterMapping
	SearchPlaceholder string
	// ExportURL enables the CSV download button when set.
	ExportURL string
	// Path is the page the control links point at.
	Path string
}

// ViewState is the single thing a table shows.
type ViewState string

const (
	StateLoading  ViewState = "loading"
	StateNotFound ViewState = "not-found"
	StateError    ViewState = "error"
	StateData     ViewState = "data"
)

// View is the template model of a table.
type View struct {
	State           ViewState
	NotFoundMessage string
	Error           *explorer.DataError
	Headers         []HeaderCell
	Rows            [][]template.HTML
	Pager           Pager
	Filters         []FilterControl
	Search          *SearchControl
	ExportURL       string
}

// HeaderCell is a column header. URL is set for sortable columns.
type HeaderCell struct {
	Label     string
	Width     string
	URL       string
	Active    bool
	Direction SortDirection
}

// FilterControl is the option list of one filter mapping.
type FilterControl struct {
	Key      string
	Selected string
	Options  []FilterOption
}

// FilterOption is one pickable filter value.
type FilterOption struct {
	Label    string
	URL      string
	Selected bool
}

// SearchControl is the search box of a table.
type SearchControl struct {
	Value       string
	Placeholder string
	Path        string
	Hidden      map[string]string
}

const defaultNotFoundMessage = "No items found"

// Build renders the table into its view. Exactly one of loading, not found,
// error or data is selected, in that order of precedence.
func (t Table[T]) Build() View {
	v := View{
		NotFoundMessage: t.NotFoundMessage,
		ExportURL:       t.ExportURL,
		Filters:         t.filterControls(),
		Search:          t.searchControl(),
	}
	if v.NotFoundMessage == "" {
		v.NotFoundMessage = defaultNotFoundMessage
	}

	r := t.Resource
	switch {
	case r.Loading:
		v.State = StateLoading
		return v
	case r.Error != nil:
		v.State = StateError
		v.Error = r.Error
		return v
	case r.NotFound || len(r.Data) == 0:
		v.State = StateNotFound
		return v
	}

	v.State = StateData
	v.Headers = t.headers()
	v.Rows = make([][]template.HTML, 0, len(r.Data))
	for _, item := range r.Data {
		row := make([]template.HTML, len(t.Columns))
		for i, c := range t.Columns {
			if c.Render != nil {
				row[i] = c.Render(item)
			}
		}
		v.Rows = append(v.Rows, row)
	}
	v.Pager = NewPager(r.Pagination, t.State, t.Path)
	return v
}

func (t Table[T]) headers() []HeaderCell {
	cells := make([]HeaderCell, 0, len(t.Columns))
	for _, c := range t.Columns {
		cell := HeaderCell{Label: c.Label, Width: c.Width}
		if c.SortProperty != "" {
			cell.URL = t.State.WithSort(ToggleSort(t.State.Sort, c.SortProperty)).URL(t.Path)
			if s := t.State.Sort; s != nil && s.Property == c.SortProperty {
				cell.Active = true
				cell.Direction = s.Direction
			}
		}
		cells = append(cells, cell)
	}
	return cells
}

func (t Table[T]) filterControls() []FilterControl {
	controls := make([]FilterControl, 0, len(t.FilterMappings))
	for _, m := range t.FilterMappings {
		selected := t.State.Filter[m.Property]
		fc := FilterControl{Key: m.Key, Options: make([]FilterOption, 0, len(m.Values))}
		for i, value := range m.Values {
			if i >= len(m.Labels) {
				break
			}
			opt := FilterOption{
				Label:    m.Labels[i],
				URL:      t.State.WithFilter(m.Property, value).URL(t.Path),
				Selected: value == selected,
			}
			if opt.Selected {
				fc.Selected = opt.Label
			}
			fc.Options = append(fc.Options, opt)
		}
		controls = append(controls, fc)
	}
	return controls
}

func (t Table[T]) searchControl() *SearchControl {
	if t.SearchPlaceholder == "" {
		return nil
	}
	// The search form resubmits the other state as hidden fields.
	rest := t.State
	rest.Search = ""
	rest.Offset = 0
	hidden := make(map[string]string)
	for k, vs := range rest.Encode() {
		if len(vs) > 0 {
			hidden[k] = vs[0]
		}
	}
	return &SearchControl{
		Value:       t.State.Search,
		Placeholder: t.SearchPlaceholder,
		Path:        t.Path,
		Hidden:      hidden,
	}
}
