package server

import (
	"context"

	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

// Explorer is the data service the handlers read from. *explorer.Service implements it.
type Explorer interface {
	Network(name string) (squid.Network, error)
	VerifiedDelegates(ctx context.Context) map[string]explorer.VerifiedDelegate

	GetAccount(ctx context.Context, network, address string) (*explorer.Account, error)
	GetTransfers(ctx context.Context, network string, filter explorer.TransfersFilter, order explorer.TransfersOrder, opts explorer.PaginationOptions) (*explorer.ItemsResponse[explorer.Transfer], error)
	GetCalls(ctx context.Context, network string, filter explorer.CallsFilter, order explorer.CallsOrder, opts explorer.PaginationOptions) (*explorer.ItemsResponse[explorer.Call], error)
	GetDelegates(ctx context.Context, network string, filter explorer.DelegateFilter, order explorer.DelegatesOrder, opts explorer.PaginationOptions) (*explorer.ItemsResponse[explorer.Delegate], error)
	DelegateSearch(ctx context.Context, filter explorer.DelegateFilter, field, search string) explorer.DelegateFilter
	GetAccountDelegateHistory(ctx context.Context, network, account string) ([]explorer.AccountDelegateHistory, error)
	GetDelegateBalances(ctx context.Context, network, account string) ([]explorer.DelegateBalance, error)
	GetValidator(ctx context.Context, network, address string) (*explorer.Validator, error)
	GetValidatorStakeHistory(ctx context.Context, network, address, after string) (*explorer.ValidatorStakeHistoryPage, error)
	FetchBlockTimestamps(ctx context.Context, network string, heights []int64) (map[int64]string, error)
}

var _ Explorer = (*explorer.Service)(nil)
