package explorer

import (
	"context"
	"math/big"

	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

// Validator is the latest stake snapshot of a validator.
type Validator struct {
	ID                  string   `json:"id"`
	Timestamp           string   `json:"timestamp"`
	Height              int64    `json:"height"`
	Amount              *big.Int `json:"amount"`
	Nominators          int64    `json:"nominators"`
	Rank                int64    `json:"rank"`
	Address             string   `json:"address"`
	Name                string   `json:"name,omitempty"`
	AmountDayChange     *big.Int `json:"amount_day_change,omitempty"`
	NominatorsDayChange *int64   `json:"nominators_day_change,omitempty"`
}

// ValidatorStakeHistory is one point of a validator's stake over time.
type ValidatorStakeHistory struct {
	Amount     *big.Int `json:"amount"`
	Nominators int64    `json:"nominators"`
	Rank       int64    `json:"rank"`
	Timestamp  string   `json:"timestamp"`
}

// ValidatorStakeHistoryPage is a cursor page of stake history.
type ValidatorStakeHistoryPage struct {
	HasNextPage bool                    `json:"hasNextPage"`
	EndCursor   string                  `json:"endCursor"`
	Data        []ValidatorStakeHistory `json:"data"`
}

type indexerValidator struct {
	ID                  string      `json:"id"`
	Timestamp           string      `json:"timestamp"`
	Height              flexInt     `json:"height"`
	Amount              flexAmount  `json:"amount"`
	Nominators          flexInt     `json:"nominators"`
	Rank                flexInt     `json:"rank"`
	Address             string      `json:"address"`
	AmountDayChange     *flexAmount `json:"amountDayChange"`
	NominatorsDayChange *flexInt    `json:"nominatorsDayChange"`
}

const validatorQuery = `query ($address: String!) {
	validators(filter: {address: {equalTo: $address}}, orderBy: HEIGHT_DESC, first: 1) {
		nodes {
			id
			timestamp
			height
			amount
			nominators
			rank
			address
			amountDayChange
			nominatorsDayChange
		}
	}
}`

const validatorStakeHistoryQuery = `query ($address: String!, $first: Int!, $after: Cursor) {
	validatorHistories(filter: {address: {equalTo: $address}}, orderBy: HEIGHT_ASC, first: $first, after: $after) {
		nodes {
			amount
			nominators
			rank
			timestamp
		}
		pageInfo {
			endCursor
			hasNextPage
		}
	}
}`

// GetValidator returns the latest snapshot of a validator, or nil when the indexer has none.
func (s *Service) GetValidator(ctx context.Context, network, address string) (*Validator, error) {
	if !s.gql.HasSupport(network, squid.Indexer) {
		return nil, nil
	}

	var resp struct {
		Validators nodesConnection[indexerValidator] `json:"validators"`
	}
	err := s.gql.FetchIndexer(ctx, network, squid.Query{
		Name: "validator",
		Text: validatorQuery,
		Vars: map[string]any{"address": address},
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Validators.Nodes) == 0 {
		return nil, nil
	}

	n := resp.Validators.Nodes[0]
	v := &Validator{
		ID:         n.ID,
		Timestamp:  n.Timestamp,
		Height:     int64(n.Height),
		Amount:     n.Amount.Int(),
		Nominators: int64(n.Nominators),
		Rank:       int64(n.Rank),
		Address:    n.Address,
	}
	if n.AmountDayChange != nil {
		v.AmountDayChange = n.AmountDayChange.Int()
	}
	if n.NominatorsDayChange != nil {
		c := int64(*n.NominatorsDayChange)
		v.NominatorsDayChange = &c
	}
	if name, ok := DelegateName(s.VerifiedDelegates(ctx), v.Address); ok {
		v.Name = name
	}
	return v, nil
}

// GetValidatorStakeHistory returns the page of stake history after the given cursor.
// An empty cursor starts from the beginning.
func (s *Service) GetValidatorStakeHistory(ctx context.Context, network, address, after string) (*ValidatorStakeHistoryPage, error) {
	if !s.gql.HasSupport(network, squid.Indexer) {
		return &ValidatorStakeHistoryPage{Data: []ValidatorStakeHistory{}}, nil
	}

	var cursor any
	if after != "" {
		cursor = after
	}
	var resp struct {
		ValidatorHistories nodesConnection[indexerValidator] `json:"validatorHistories"`
	}
	err := s.gql.FetchIndexer(ctx, network, squid.Query{
		Name: "validatorHistories",
		Text: validatorStakeHistoryQuery,
		Vars: map[string]any{
			"address": address,
			"first":   historyPageSize,
			"after":   cursor,
		},
	}, &resp)
	if err != nil {
		return nil, err
	}

	page := &ValidatorStakeHistoryPage{
		HasNextPage: resp.ValidatorHistories.PageInfo.HasNextPage,
		EndCursor:   resp.ValidatorHistories.PageInfo.EndCursor,
		Data:        make([]ValidatorStakeHistory, 0, len(resp.ValidatorHistories.Nodes)),
	}
	for _, n := range resp.ValidatorHistories.Nodes {
		page.Data = append(page.Data, ValidatorStakeHistory{
			Amount:     n.Amount.Int(),
			Nominators: int64(n.Nominators),
			Rank:       int64(n.Rank),
			Timestamp:  n.Timestamp,
		})
	}
	return page, nil
}
