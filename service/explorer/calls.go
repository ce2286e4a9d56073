package explorer

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

// Call is a runtime call, possibly nested inside a batch.
type Call struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Success     bool         `json:"success"`
	Origin      *CallOrigin  `json:"origin,omitempty"`
	BlockHeight int64        `json:"blockHeight"`
	Timestamp   string       `json:"timestamp"`
	Extrinsic   ExtrinsicRef `json:"extrinsic"`
	ParentID    string       `json:"parentId,omitempty"`
	RuntimeSpec RuntimeSpec  `json:"runtimeSpec"`
}

// CallOrigin is the decoded dispatch origin, e.g. {system: {Signed: 0x..}}.
type CallOrigin struct {
	Kind  string `json:"__kind"`
	Value struct {
		Kind  string `json:"__kind"`
		Value string `json:"value"`
	} `json:"value"`
}

// Sender returns the signing account public key, if the origin has one.
func (c Call) Sender() (string, bool) {
	if c.Origin == nil || c.Origin.Value.Kind == "None" || c.Origin.Value.Value == "" {
		return "", false
	}
	return c.Origin.Value.Value, true
}

// CallsFilter is passed to the archive as the CallWhereInput.
type CallsFilter map[string]any

// CallsByName filters calls by "Pallet.call" name.
func CallsByName(name string) CallsFilter {
	return CallsFilter{"name_eq": name}
}

// CallsByExtrinsic filters calls included by one extrinsic.
func CallsByExtrinsic(extrinsicID string) CallsFilter {
	return CallsFilter{"extrinsic": map[string]any{"id_eq": extrinsicID}}
}

// CallsOrder is a list of CallOrderByInput values.
type CallsOrder []string

var defaultCallsOrder = CallsOrder{"id_DESC"}

type archiveCall struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Success bool            `json:"success"`
	Origin  json.RawMessage `json:"origin"`
	Block   struct {
		Height      int64  `json:"height"`
		Timestamp   string `json:"timestamp"`
		SpecVersion int64  `json:"specVersion"`
	} `json:"block"`
	Extrinsic ExtrinsicRef `json:"extrinsic"`
	Parent    *struct {
		ID string `json:"id"`
	} `json:"parent"`
}

const callsQuery = `query ($first: Int!, $after: String, $filter: CallWhereInput, $order: [CallOrderByInput!]!) {
	callsConnection(first: $first, after: $after, where: $filter, orderBy: $order) {
		edges {
			node {
				id
				name
				success
				origin
				block {
					height
					timestamp
					specVersion
				}
				extrinsic {
					id
					hash
				}
				parent {
					id
				}
			}
		}
		pageInfo {
			endCursor
			hasNextPage
			hasPreviousPage
			startCursor
		}
		totalCount
	}
}`

// GetCalls lists calls from the archive.
func (s *Service) GetCalls(ctx context.Context, network string, filter CallsFilter, order CallsOrder, opts PaginationOptions) (*ItemsResponse[Call], error) {
	if len(order) == 0 {
		order = defaultCallsOrder
	}
	opts = opts.Normalize()

	var resp struct {
		CallsConnection itemsConnection[archiveCall] `json:"callsConnection"`
	}
	err := s.gql.FetchArchive(ctx, network, squid.Query{
		Name: "callsConnection",
		Text: callsQuery,
		Vars: map[string]any{
			"first":  opts.Limit,
			"after":  afterCursor(opts.Offset),
			"filter": filter,
			"order":  []string(order),
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	items, err := extractConnectionItems(resp.CallsConnection, opts, unifyArchiveCall)
	if err != nil {
		return nil, err
	}

	err = addRuntimeSpecs(s, network, items,
		func(c Call) string { return c.RuntimeSpec.SpecVersion },
		func(c *Call, spec RuntimeSpec) { c.RuntimeSpec = spec },
	)
	if err != nil {
		return nil, err
	}
	return items, nil
}

func unifyArchiveCall(c archiveCall) (Call, error) {
	call := Call{
		ID:          c.ID,
		Name:        c.Name,
		Success:     c.Success,
		BlockHeight: c.Block.Height,
		Timestamp:   c.Block.Timestamp,
		Extrinsic:   c.Extrinsic,
		RuntimeSpec: RuntimeSpec{SpecVersion: specVersionString(c.Block.SpecVersion)},
	}
	if c.Parent != nil {
		call.ParentID = c.Parent.ID
	}
	// Origins the archive cannot decode come back in other shapes; they render without a sender.
	if len(c.Origin) > 0 && string(c.Origin) != "null" {
		var origin CallOrigin
		if err := json.Unmarshal(c.Origin, &origin); err == nil {
			call.Origin = &origin
		}
	}
	return call, nil
}

func specVersionString(v int64) string {
	if v == 0 {
		return latestSpecVersion
	}
	return strconv.FormatInt(v, 10)
}
