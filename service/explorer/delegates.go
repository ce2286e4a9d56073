package explorer

import (
	"context"
	"math/big"
	"sort"
	"strings"

	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
	"github.com/gabrielcipriano/bittensor-explorer/service/ss58"
)

// Delegate is one delegate or undelegate event.
type Delegate struct {
	ID           string   `json:"id"`
	Account      string   `json:"account"`
	Delegate     string   `json:"delegate"`
	DelegateName string   `json:"delegateName,omitempty"`
	Action       string   `json:"action"`
	Amount       *big.Int `json:"amount"`
	BlockNumber  int64    `json:"blockNumber"`
	ExtrinsicID  int64    `json:"extrinsicId"`
}

const (
	ActionDelegate   = "DELEGATE"
	ActionUndelegate = "UNDELEGATE"
)

// DelegateFilter maps a property to {operator: value}, e.g. {"amount": {"greaterThan": "100"}}.
type DelegateFilter map[string]map[string]any

// With returns a copy of f with the condition for property replaced.
func (f DelegateFilter) With(property, operator string, value any) DelegateFilter {
	out := make(DelegateFilter, len(f)+1)
	for k, v := range f {
		out[k] = v
	}
	out[property] = map[string]any{operator: value}
	return out
}

// DelegatesForAccount filters events initiated by an account.
func DelegatesForAccount(address string) DelegateFilter {
	return DelegateFilter{"account": {"equalTo": address}}
}

// DelegatesForValidator filters events targeting a validator.
func DelegatesForValidator(address string) DelegateFilter {
	return DelegateFilter{"delegate": {"equalTo": address}}
}

// DelegatesOrder is a DelegatesOrderBy enum value of the indexer.
type DelegatesOrder string

const defaultDelegatesOrder DelegatesOrder = "BLOCK_NUMBER_DESC"

type indexerDelegate struct {
	ID          string     `json:"id"`
	Account     string     `json:"account"`
	Delegate    string     `json:"delegate"`
	Action      string     `json:"action"`
	Amount      flexAmount `json:"amount"`
	BlockNumber flexInt    `json:"blockNumber"`
	ExtrinsicID flexInt    `json:"extrinsicId"`
}

const delegatesQuery = `query ($first: Int!, $offset: Int!, $filter: DelegateFilter, $order: [DelegatesOrderBy!]!) {
	delegates(first: $first, offset: $offset, filter: $filter, orderBy: $order) {
		nodes {
			id
			account
			delegate
			action
			amount
			blockNumber
			extrinsicId
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

// GetDelegates lists delegation events from the indexer with verified delegate names attached.
func (s *Service) GetDelegates(ctx context.Context, network string, filter DelegateFilter, order DelegatesOrder, opts PaginationOptions) (*ItemsResponse[Delegate], error) {
	if !s.gql.HasSupport(network, squid.Indexer) {
		return emptyResponse[Delegate](), nil
	}
	if order == "" {
		order = defaultDelegatesOrder
	}
	opts = opts.Normalize()

	var resp struct {
		Delegates nodesConnection[indexerDelegate] `json:"delegates"`
	}
	err := s.gql.FetchIndexer(ctx, network, squid.Query{
		Name: "delegates",
		Text: delegatesQuery,
		Vars: map[string]any{
			"first":  opts.Limit,
			"offset": opts.Offset,
			"filter": filter,
			"order":  []string{string(order)},
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	items, err := extractNodeItems(resp.Delegates, opts, unifyIndexerDelegate)
	if err != nil {
		return nil, err
	}

	verified := s.VerifiedDelegates(ctx)
	for i := range items.Data {
		if name, ok := DelegateName(verified, items.Data[i].Delegate); ok {
			items.Data[i].DelegateName = name
		}
	}
	return items, nil
}

// DelegateSearch narrows field by a free-text search. Addresses match exactly;
// anything else is matched against verified delegate names. An unmatched name
// still produces a condition so the result is empty rather than unfiltered.
func (s *Service) DelegateSearch(ctx context.Context, filter DelegateFilter, field, search string) DelegateFilter {
	search = strings.TrimSpace(search)
	if search == "" {
		return filter
	}
	if ss58.IsAddress(search) {
		return filter.With(field, "equalTo", search)
	}

	needle := strings.ToLower(search)
	var matches []string
	for address, d := range s.VerifiedDelegates(ctx) {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			matches = append(matches, address)
		}
	}
	if len(matches) == 0 {
		return filter.With(field, "equalTo", search)
	}
	sort.Strings(matches)
	return filter.With(field, "in", matches)
}

func unifyIndexerDelegate(d indexerDelegate) (Delegate, error) {
	return Delegate{
		ID:          d.ID,
		Account:     d.Account,
		Delegate:    d.Delegate,
		Action:      d.Action,
		Amount:      d.Amount.Int(),
		BlockNumber: int64(d.BlockNumber),
		ExtrinsicID: int64(d.ExtrinsicID),
	}, nil
}
