package explorer

import (
	"context"
	"fmt"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

// AccountDelegateHistory is a daily snapshot of what an account had staked to one delegate.
type AccountDelegateHistory struct {
	ID        string   `json:"id"`
	Account   string   `json:"account"`
	Delegate  string   `json:"delegate"`
	Amount    *big.Int `json:"amount"`
	Timestamp string   `json:"timestamp"`
}

// DelegateBalance is what an account currently has staked to one delegate.
type DelegateBalance struct {
	ID        string   `json:"id"`
	Account   string   `json:"account"`
	Delegate  string   `json:"delegate"`
	Amount    *big.Int `json:"amount"`
	UpdatedAt string   `json:"updatedAt"`
}

type indexerDelegateSnapshot struct {
	ID        string     `json:"id"`
	Account   string     `json:"account"`
	Delegate  string     `json:"delegate"`
	Amount    flexAmount `json:"amount"`
	Timestamp string     `json:"timestamp"`
	UpdatedAt string     `json:"updatedAt"`
}

const historyPageSize = 100

// maxHistoryPageFetches bounds concurrent page requests against the indexer.
const maxHistoryPageFetches = 4

const accountDelegateHistoryQuery = `query ($account: String!, $first: Int!, $offset: Int!) {
	accountDelegateHistories(filter: {account: {equalTo: $account}}, orderBy: TIMESTAMP_ASC, first: $first, offset: $offset) {
		nodes {
			id
			account
			delegate
			amount
			timestamp
		}
		pageInfo {
			hasNextPage
		}
		totalCount
	}
}`

const delegateBalancesQuery = `query ($account: String!) {
	delegateBalances(filter: {account: {equalTo: $account}, amount: {greaterThan: "0"}}, orderBy: AMOUNT_DESC) {
		nodes {
			id
			account
			delegate
			amount
			updatedAt
		}
	}
}`

// GetAccountDelegateHistory returns every history snapshot of an account, oldest first.
// The first page reports the total; the remaining pages are fetched concurrently.
func (s *Service) GetAccountDelegateHistory(ctx context.Context, network, account string) ([]AccountDelegateHistory, error) {
	if !s.gql.HasSupport(network, squid.Indexer) {
		return []AccountDelegateHistory{}, nil
	}

	first, err := s.accountDelegateHistoryPage(ctx, network, account, 0)
	if err != nil {
		return nil, err
	}
	if !first.PageInfo.HasNextPage || first.TotalCount <= len(first.Nodes) {
		return toHistory(first.Nodes), nil
	}

	pages := make([][]indexerDelegateSnapshot, (first.TotalCount+historyPageSize-1)/historyPageSize)
	pages[0] = first.Nodes

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxHistoryPageFetches)
	for i := 1; i < len(pages); i++ {
		g.Go(func() error {
			page, err := s.accountDelegateHistoryPage(gCtx, network, account, i*historyPageSize)
			if err != nil {
				return fmt.Errorf("history page %d: %w", i, err)
			}
			pages[i] = page.Nodes
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []indexerDelegateSnapshot
	for _, p := range pages {
		all = append(all, p...)
	}
	return toHistory(all), nil
}

func (s *Service) accountDelegateHistoryPage(ctx context.Context, network, account string, offset int) (nodesConnection[indexerDelegateSnapshot], error) {
	var resp struct {
		AccountDelegateHistories nodesConnection[indexerDelegateSnapshot] `json:"accountDelegateHistories"`
	}
	err := s.gql.FetchIndexer(ctx, network, squid.Query{
		Name: "accountDelegateHistories",
		Text: accountDelegateHistoryQuery,
		Vars: map[string]any{
			"account": account,
			"first":   historyPageSize,
			"offset":  offset,
		},
	}, &resp)
	return resp.AccountDelegateHistories, err
}

// GetDelegateBalances returns the current non-zero stakes of an account, largest first.
func (s *Service) GetDelegateBalances(ctx context.Context, network, account string) ([]DelegateBalance, error) {
	if !s.gql.HasSupport(network, squid.Indexer) {
		return []DelegateBalance{}, nil
	}

	var resp struct {
		DelegateBalances nodesConnection[indexerDelegateSnapshot] `json:"delegateBalances"`
	}
	err := s.gql.FetchIndexer(ctx, network, squid.Query{
		Name: "delegateBalances",
		Text: delegateBalancesQuery,
		Vars: map[string]any{"account": account},
	}, &resp)
	if err != nil {
		return nil, err
	}

	out := make([]DelegateBalance, 0, len(resp.DelegateBalances.Nodes))
	for _, n := range resp.DelegateBalances.Nodes {
		out = append(out, DelegateBalance{
			ID:        n.ID,
			Account:   n.Account,
			Delegate:  n.Delegate,
			Amount:    n.Amount.Int(),
			UpdatedAt: n.UpdatedAt,
		})
	}
	return out, nil
}

func toHistory(nodes []indexerDelegateSnapshot) []AccountDelegateHistory {
	out := make([]AccountDelegateHistory, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, AccountDelegateHistory{
			ID:        n.ID,
			Account:   n.Account,
			Delegate:  n.Delegate,
			Amount:    n.Amount.Int(),
			Timestamp: n.Timestamp,
		})
	}
	return out
}
