package views

import (
	"fmt"
	"html/template"
	"time"

	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/table"
)

// TransfersTableOptions configures a transfers table.
type TransfersTableOptions struct {
	Network  string
	Currency string
	State    table.State
	Path     string
	// ShowDirection adds the in/out badge of an account page.
	ShowDirection bool
	Now           func() time.Time
}

// TransfersTable lists balance transfers.
func TransfersTable(transfers explorer.PaginatedResource[explorer.Transfer], opts TransfersTableOptions) table.Table[explorer.Transfer] {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	address := func(pubkey string, t explorer.Transfer) template.HTML {
		if pubkey == "" {
			return ""
		}
		return accountAddress(pubkey, t.RuntimeSpec.Metadata.SS58Prefix, accountPath(opts.Network, pubkey))
	}

	columns := []table.Column[explorer.Transfer]{
		{
			Label: "Extrinsic",
			Render: func(t explorer.Transfer) template.HTML {
				if t.Extrinsic == nil {
					return ""
				}
				return link(fmt.Sprintf("/%s/extrinsic/%s", opts.Network, t.Extrinsic.ID), t.Extrinsic.ID)
			},
		},
		{
			Label:  "From",
			Render: func(t explorer.Transfer) template.HTML { return address(t.FromPublicKey, t) },
		},
	}
	if opts.ShowDirection {
		columns = append(columns, table.Column[explorer.Transfer]{
			Render: func(t explorer.Transfer) template.HTML {
				return template.HTML(fmt.Sprintf(`<span class="dir-%s">%s</span>`,
					template.HTMLEscapeString(t.Direction), template.HTMLEscapeString(t.Direction)))
			},
		})
	}
	columns = append(columns,
		table.Column[explorer.Transfer]{
			Label:  "To",
			Render: func(t explorer.Transfer) template.HTML { return address(t.ToPublicKey, t) },
		},
		table.Column[explorer.Transfer]{
			Label:  "Amount",
			Render: func(t explorer.Transfer) template.HTML { return currency(t.Amount, opts.Currency) },
		},
		table.Column[explorer.Transfer]{
			Label: "Time",
			Width: "200px",
			Render: func(t explorer.Transfer) template.HTML {
				return blockTime(t.Timestamp, now())
			},
		},
		table.Column[explorer.Transfer]{
			Label: "Success",
			Render: func(t explorer.Transfer) template.HTML {
				if t.Success {
					return `<span class="success">✓</span>`
				}
				return `<span class="failed">✗</span>`
			},
		},
	)

	return table.Table[explorer.Transfer]{
		Resource:        transfers,
		NotFoundMessage: "No transfers found",
		Columns:         columns,
		State:           opts.State,
		Path:            opts.Path,
	}
}
