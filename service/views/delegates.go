package views

import (
	"context"
	"fmt"
	"html/template"
	"strconv"
	"time"

	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/format"
	"github.com/gabrielcipriano/bittensor-explorer/service/table"
)

var delegatesOrderMappings = map[string]map[table.SortDirection]explorer.DelegatesOrder{
	"amount": {
		table.ASC:  "AMOUNT_ASC",
		table.DESC: "AMOUNT_DESC",
	},
	"time": {
		table.ASC:  "BLOCK_NUMBER_ASC",
		table.DESC: "BLOCK_NUMBER_DESC",
	},
}

// OrderFromSort maps a table sort onto the indexer order; unknown columns give the default order.
func OrderFromSort(s *table.SortOrder) explorer.DelegatesOrder {
	if s == nil {
		return ""
	}
	return delegatesOrderMappings[s.Property][s.Direction]
}

// SortFromOrder is the inverse of OrderFromSort.
func SortFromOrder(order explorer.DelegatesOrder) *table.SortOrder {
	for property, dirs := range delegatesOrderMappings {
		for dir, o := range dirs {
			if o == order {
				return &table.SortOrder{Property: property, Direction: dir}
			}
		}
	}
	return nil
}

var amountFilterLabels = []string{"100k", "50k", "10k", "5k", "1k", "500", "100", "..."}

// DelegatesFilterMappings returns the amount threshold filter. The last
// threshold is the smallest delegation the chain accepts.
func DelegatesFilterMappings(minDelegationAmount string) []table.FilterMapping {
	values := make([]string, 0, len(amountFilterLabels))
	for _, whole := range []int64{100000, 50000, 10000, 5000, 1000, 500, 100} {
		values = append(values, format.RawAmountToDecimaledString(whole))
	}
	values = append(values, minDelegationAmount)
	return []table.FilterMapping{{
		Property: "amount",
		Key:      "Amount >",
		Labels:   amountFilterLabels,
		Values:   values,
		Operator: "greaterThan",
	}}
}

// DelegateFilterFromState adds the selected table filters to base.
func DelegateFilterFromState(base explorer.DelegateFilter, state table.State, mappings []table.FilterMapping) explorer.DelegateFilter {
	f := base
	for _, m := range mappings {
		if v, ok := state.Filter[m.Property]; ok {
			f = f.With(m.Property, m.Operator, v)
		}
	}
	return f
}

// DelegatesTableOptions configures a delegates table for one page.
type DelegatesTableOptions struct {
	Network    string
	Currency   string
	SS58Prefix uint16
	// ShowTime adds the sortable time column; Timestamps maps block heights to their times.
	ShowTime            bool
	Timestamps          map[int64]string
	MinDelegationAmount string
	State               table.State
	Path                string
	ExportURL           string
	Now                 func() time.Time
}

// DelegatesTable lists delegate and undelegate events.
func DelegatesTable(delegates explorer.PaginatedResource[explorer.Delegate], opts DelegatesTableOptions) table.Table[explorer.Delegate] {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	columns := []table.Column[explorer.Delegate]{
		{
			Label: "Extrinsic",
			Render: func(d explorer.Delegate) template.HTML {
				if d.ExtrinsicID == 0 {
					return ""
				}
				id := fmt.Sprintf("%d-%d", d.BlockNumber, d.ExtrinsicID)
				return link(fmt.Sprintf("/%s/extrinsic/%s", opts.Network, id), id)
			},
		},
		{
			Label: "Account",
			Render: func(d explorer.Delegate) template.HTML {
				return accountAddress(d.Account, opts.SS58Prefix, accountPath(opts.Network, d.Account))
			},
		},
		{
			Label: "",
			Render: func(d explorer.Delegate) template.HTML {
				class := "dir-out"
				if d.Action == explorer.ActionUndelegate {
					class = "dir-in"
				}
				return template.HTML(fmt.Sprintf(`<span class="%s">%s</span>`, class, template.HTMLEscapeString(d.Action)))
			},
		},
		{
			Label: "Delegate",
			Render: func(d explorer.Delegate) template.HTML {
				if d.DelegateName != "" {
					return link(fmt.Sprintf("/%s/validators/%s", opts.Network, d.Delegate), d.DelegateName)
				}
				return accountAddress(d.Delegate, opts.SS58Prefix, "")
			},
		},
		{
			Label:        "Amount",
			SortProperty: "amount",
			Render: func(d explorer.Delegate) template.HTML {
				return currency(d.Amount, opts.Currency)
			},
		},
	}
	if opts.ShowTime {
		columns = append(columns, table.Column[explorer.Delegate]{
			Label:        "Time",
			SortProperty: "time",
			Width:        "200px",
			Render: func(d explorer.Delegate) template.HTML {
				return blockTime(opts.Timestamps[d.BlockNumber], now())
			},
		})
	}

	return table.Table[explorer.Delegate]{
		Resource:          delegates,
		NotFoundMessage:   "No delegate/undelegate events found",
		Columns:           columns,
		State:             opts.State,
		FilterMappings:    DelegatesFilterMappings(opts.MinDelegationAmount),
		SearchPlaceholder: "DELEGATE",
		ExportURL:         opts.ExportURL,
		Path:              opts.Path,
	}
}

var delegatesExportColumns = []table.ExportColumn{
	{Key: "height", DisplayLabel: "Block height"},
	{Key: "createdAt", DisplayLabel: "Time(UTC)"},
	{Key: "account", DisplayLabel: "Account"},
	{Key: "validator", DisplayLabel: "Validator"},
	{Key: "action", DisplayLabel: "Action"},
	{Key: "amount", DisplayLabel: "Amount"},
}

// TimestampFetcher resolves block heights to timestamps.
type TimestampFetcher func(ctx context.Context, heights []int64) (map[int64]string, error)

// DelegatesExport builds the CSV of the loaded delegation events of address.
// On a validator page the account column is dropped; elsewhere the validator column is.
func DelegatesExport(ctx context.Context, delegates explorer.PaginatedResource[explorer.Delegate], address, currencySymbol string, fromValidator bool, timestamps TimestampFetcher) (table.Export, error) {
	export := table.Export{
		Columns:  delegatesExportColumns,
		Data:     []map[string]string{},
		Filename: "delegation-" + address,
	}
	if fromValidator {
		export = export.Omit("account")
	} else {
		export = export.Omit("validator")
	}

	if delegates.Loading || delegates.NotFound || delegates.Error != nil || len(delegates.Data) == 0 {
		return export, nil
	}

	heights := make([]int64, 0, len(delegates.Data))
	for _, d := range delegates.Data {
		heights = append(heights, d.BlockNumber)
	}
	createdAt, err := timestamps(ctx, heights)
	if err != nil {
		return table.Export{}, fmt.Errorf("fetch block timestamps: %w", err)
	}

	for _, d := range delegates.Data {
		validator := d.Delegate
		if d.DelegateName != "" {
			validator = d.DelegateName
		}
		export.Data = append(export.Data, map[string]string{
			"height":    strconv.FormatInt(d.BlockNumber, 10),
			"createdAt": exportTime(createdAt[d.BlockNumber]),
			"account":   d.Account,
			"validator": validator,
			"action":    d.Action,
			"amount":    format.FormatRawAmount(d.Amount, currencySymbol, format.Optimal),
		})
	}
	return export, nil
}

func exportTime(ts string) string {
	t, ok := parseTimestamp(ts)
	if !ok {
		return ts
	}
	return t.Format(utcLayout)
}
