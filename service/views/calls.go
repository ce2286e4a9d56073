package views

import (
	"fmt"
	"html/template"
	"net/url"

	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/table"
)

// CallsTable lists runtime calls of a network.
func CallsTable(network string, calls explorer.PaginatedResource[explorer.Call], state table.State, path string) table.Table[explorer.Call] {
	return table.Table[explorer.Call]{
		Resource:        calls,
		NotFoundMessage: "No calls found",
		State:           state,
		Path:            path,
		Columns: []table.Column[explorer.Call]{
			{
				Label: "ID",
				Render: func(c explorer.Call) template.HTML {
					return link(fmt.Sprintf("/%s/call/%s", network, c.ID), c.ID)
				},
			},
			{
				Label: "Name",
				Render: func(c explorer.Call) template.HTML {
					return link(fmt.Sprintf("/%s/search?query=%s", network, url.QueryEscape(c.Name)), c.Name)
				},
			},
			{
				Label: "Sender",
				Render: func(c explorer.Call) template.HTML {
					sender, ok := c.Sender()
					if !ok {
						return ""
					}
					prefix := c.RuntimeSpec.Metadata.SS58Prefix
					return accountAddress(sender, prefix, accountPath(network, sender))
				},
			},
			{
				Label: "Extrinsic",
				Render: func(c explorer.Call) template.HTML {
					return link(fmt.Sprintf("/%s/extrinsic/%s", network, c.Extrinsic.ID), c.Extrinsic.ID)
				},
			},
		},
	}
}
