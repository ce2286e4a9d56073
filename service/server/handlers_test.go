package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielcipriano/bittensor-explorer/service/config"
	"github.com/gabrielcipriano/bittensor-explorer/service/db"
	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/pricefeed"
	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

const (
	aliceAddress = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	aliceHex     = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

// fakeExplorer serves canned responses and records the queries it receives.
type fakeExplorer struct {
	registry *squid.Registry

	mu             sync.Mutex
	transfers      *explorer.ItemsResponse[explorer.Transfer]
	calls          *explorer.ItemsResponse[explorer.Call]
	delegates      *explorer.ItemsResponse[explorer.Delegate]
	history        []explorer.AccountDelegateHistory
	balances       []explorer.DelegateBalance
	validator      *explorer.Validator
	timestamps     map[int64]string
	err            error
	transferFilter explorer.TransfersFilter
	callsFilter    explorer.CallsFilter
	delegateFilter explorer.DelegateFilter
	delegateOrder  explorer.DelegatesOrder
	searchField    string
	historyAccount string
}

func newFakeExplorer(cfg *config.Config) *fakeExplorer {
	return &fakeExplorer{registry: squid.NewRegistry(cfg.Networks)}
}

func (f *fakeExplorer) Network(name string) (squid.Network, error) {
	return f.registry.Get(name)
}

func (f *fakeExplorer) VerifiedDelegates(ctx context.Context) map[string]explorer.VerifiedDelegate {
	return map[string]explorer.VerifiedDelegate{}
}

func (f *fakeExplorer) GetAccount(ctx context.Context, network, address string) (*explorer.Account, error) {
	if address != aliceAddress && address != aliceHex {
		return nil, nil
	}
	return &explorer.Account{
		ID:          aliceHex,
		Address:     aliceHex,
		RuntimeSpec: explorer.RuntimeSpec{Metadata: explorer.RuntimeMetadata{SS58Prefix: 42, Currency: "TAO"}},
	}, nil
}

func (f *fakeExplorer) GetTransfers(ctx context.Context, network string, filter explorer.TransfersFilter, order explorer.TransfersOrder, opts explorer.PaginationOptions) (*explorer.ItemsResponse[explorer.Transfer], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transferFilter = filter
	return f.transfers, f.err
}

func (f *fakeExplorer) GetCalls(ctx context.Context, network string, filter explorer.CallsFilter, order explorer.CallsOrder, opts explorer.PaginationOptions) (*explorer.ItemsResponse[explorer.Call], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callsFilter = filter
	return f.calls, f.err
}

func (f *fakeExplorer) GetDelegates(ctx context.Context, network string, filter explorer.DelegateFilter, order explorer.DelegatesOrder, opts explorer.PaginationOptions) (*explorer.ItemsResponse[explorer.Delegate], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delegateFilter = filter
	f.delegateOrder = order
	return f.delegates, f.err
}

func (f *fakeExplorer) DelegateSearch(ctx context.Context, filter explorer.DelegateFilter, field, search string) explorer.DelegateFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchField = field
	if search == "" {
		return filter
	}
	return filter.With(field, "equalTo", search)
}

func (f *fakeExplorer) GetAccountDelegateHistory(ctx context.Context, network, account string) ([]explorer.AccountDelegateHistory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyAccount = account
	return f.history, f.err
}

func (f *fakeExplorer) GetDelegateBalances(ctx context.Context, network, account string) ([]explorer.DelegateBalance, error) {
	return f.balances, f.err
}

func (f *fakeExplorer) GetValidator(ctx context.Context, network, address string) (*explorer.Validator, error) {
	return f.validator, f.err
}

func (f *fakeExplorer) GetValidatorStakeHistory(ctx context.Context, network, address, after string) (*explorer.ValidatorStakeHistoryPage, error) {
	return &explorer.ValidatorStakeHistoryPage{Data: []explorer.ValidatorStakeHistory{}}, f.err
}

func (f *fakeExplorer) FetchBlockTimestamps(ctx context.Context, network string, heights []int64) (map[int64]string, error) {
	return f.timestamps, nil
}

type fakeStats struct {
	stats *pricefeed.TokenStats
	err   error
}

func (f fakeStats) LatestTokenStats(ctx context.Context) (*pricefeed.TokenStats, error) {
	return f.stats, f.err
}

type fakeHistory struct {
	rows  []*db.TokenStats
	since time.Time
	limit int32
}

func (f *fakeHistory) ListTokenStats(ctx context.Context, symbol string, since time.Time, limit int32) ([]*db.TokenStats, error) {
	f.since, f.limit = since, limit
	return f.rows, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Networks: []config.NetworkConfig{{
			Name:         "bittensor",
			DisplayName:  "Bittensor",
			Currency:     "TAO",
			SS58Prefix:   42,
			ArchiveURL:   "http://archive.test/graphql",
			MainSquidURL: "http://squid.test/graphql",
			IndexerURL:   "http://indexer.test/graphql",
		}},
		DefaultNetwork:      "bittensor",
		MinDelegationAmount: "100000000",
		TokenSymbol:         "TAO",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, ex Explorer, opts ...Option) http.Handler {
	t.Helper()
	stats := fakeStats{stats: &pricefeed.TokenStats{Symbol: "TAO", Price: 420.5, PriceChange24h: -1.2, Volume24h: 2.5e7, MarketCap: 3.1e9}}
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	s := New(":0", testConfig(), ex, stats, testLogger(), opts...)
	require.NoError(t, s.WithTemplates())
	return s.Handler()
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func delegatesFixture() *explorer.ItemsResponse[explorer.Delegate] {
	return &explorer.ItemsResponse[explorer.Delegate]{
		Data: []explorer.Delegate{{
			ID:           "d1",
			Account:      aliceAddress,
			Delegate:     "5FFApaS75bv5pJHfAp2FVLBj9ZaXuFDjEypsaBNc1wCfe52v",
			DelegateName: "Opentensor Foundation",
			Action:       explorer.ActionDelegate,
			Amount:       big.NewInt(1500000000),
			BlockNumber:  100,
			ExtrinsicID:  3,
		}},
		Pagination: explorer.Pagination{Limit: 10, TotalCount: 1},
	}
}

func TestListNetworks(t *testing.T) {
	h := newTestServer(t, newFakeExplorer(testConfig()))

	rec := get(t, h, "/api/v1/networks")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Networks []networkResponse `json:"networks"`
	}
	decodeJSON(t, rec, &resp)
	require.Len(t, resp.Networks, 1)
	assert.Equal(t, "bittensor", resp.Networks[0].Name)
	assert.Equal(t, uint16(42), resp.Networks[0].SS58Prefix)
	assert.True(t, resp.Networks[0].Default)
}

func TestUnknownNetwork(t *testing.T) {
	h := newTestServer(t, newFakeExplorer(testConfig()))

	for _, target := range []string{
		"/api/v1/kusama/transfers",
		"/api/v1/kusama/delegates",
		"/kusama/account/" + aliceAddress + "/delegates.csv",
	} {
		t.Run(target, func(t *testing.T) {
			rec := get(t, h, target)
			assert.Equal(t, http.StatusNotFound, rec.Code)
			assert.Contains(t, rec.Body.String(), "unknown network")
		})
	}
}

func TestListTransfers(t *testing.T) {
	ex := newFakeExplorer(testConfig())
	ex.transfers = &explorer.ItemsResponse[explorer.Transfer]{
		Data: []explorer.Transfer{{ID: "t1", Amount: big.NewInt(10), Success: true}},
	}
	h := newTestServer(t, ex)

	t.Run("filters by account public key", func(t *testing.T) {
		rec := get(t, h, "/api/v1/bittensor/transfers?account="+aliceAddress)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, explorer.TransfersByAccount(aliceHex), ex.transferFilter)

		var resp explorer.ItemsResponse[explorer.Transfer]
		decodeJSON(t, rec, &resp)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, "t1", resp.Data[0].ID)
	})

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"invalid account", "?account=not-an-address", "invalid address format"},
		{"negative offset", "?offset=-1", "offset cannot be negative"},
		{"limit too large", "?limit=101", "limit cannot exceed 100"},
		{"limit not a number", "?limit=ten", "invalid limit parameter"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, h, "/api/v1/bittensor/transfers"+tt.query)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestListCalls(t *testing.T) {
	ex := newFakeExplorer(testConfig())
	ex.calls = &explorer.ItemsResponse[explorer.Call]{Data: []explorer.Call{}}
	h := newTestServer(t, ex)

	rec := get(t, h, "/api/v1/bittensor/calls?name=Balances.transfer")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, explorer.CallsByName("Balances.transfer"), ex.callsFilter)

	rec = get(t, h, "/api/v1/bittensor/calls?name="+strings.Repeat("a", maxSearchLength+1))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListDelegates(t *testing.T) {
	ex := newFakeExplorer(testConfig())
	ex.delegates = delegatesFixture()
	h := newTestServer(t, ex)

	t.Run("account and validator are exclusive", func(t *testing.T) {
		rec := get(t, h, "/api/v1/bittensor/delegates?account="+aliceAddress+"&validator="+aliceAddress)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("validator searches accounts", func(t *testing.T) {
		rec := get(t, h, "/api/v1/bittensor/delegates?validator="+aliceAddress+"&sort=amount&dir=ASC&filter.amount=100000000")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "account", ex.searchField)
		assert.Equal(t, explorer.DelegatesOrder("AMOUNT_ASC"), ex.delegateOrder)
		assert.Equal(t, map[string]any{"greaterThan": "100000000"}, ex.delegateFilter["amount"])
		assert.Equal(t, map[string]any{"equalTo": aliceAddress}, ex.delegateFilter["delegate"])
	})

	t.Run("account searches delegates", func(t *testing.T) {
		rec := get(t, h, "/api/v1/bittensor/delegates?account="+aliceAddress+"&filter.amount=123")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "delegate", ex.searchField)
		assert.NotContains(t, ex.delegateFilter, "amount", "unmapped filter values are dropped")
	})
}

func TestUpstreamErrorIsBadGateway(t *testing.T) {
	ex := newFakeExplorer(testConfig())
	ex.err = errors.New("connection refused")
	h := newTestServer(t, ex)

	rec := get(t, h, "/api/v1/bittensor/delegates")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unexpected error while fetching data")
}

func TestGetAccountAndValidator(t *testing.T) {
	ex := newFakeExplorer(testConfig())
	h := newTestServer(t, ex)

	rec := get(t, h, "/api/v1/bittensor/accounts/"+aliceAddress)
	require.Equal(t, http.StatusOK, rec.Code)
	var account explorer.Account
	decodeJSON(t, rec, &account)
	assert.Equal(t, aliceHex, account.ID)

	rec = get(t, h, "/api/v1/bittensor/validators/"+aliceAddress)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ex.validator = &explorer.Validator{ID: "v1", Address: aliceAddress, Name: "Alice", Amount: big.NewInt(1)}
	rec = get(t, h, "/api/v1/bittensor/validators/"+aliceAddress)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"Alice"`)
}

func TestGetDelegateHistory(t *testing.T) {
	ex := newFakeExplorer(testConfig())
	ex.history = []explorer.AccountDelegateHistory{
		{Account: aliceAddress, Delegate: "d1", Amount: big.NewInt(1e9), Timestamp: "2024-03-08T00:00:00Z"},
		{Account: aliceAddress, Delegate: "d1", Amount: big.NewInt(2e9), Timestamp: "2024-03-09T00:00:00Z"},
	}
	h := newTestServer(t, ex)

	rec := get(t, h, "/api/v1/bittensor/accounts/"+aliceAddress+"/delegate-history")
	require.Equal(t, http.StatusOK, rec.Code)

	var chart struct {
		Series []struct {
			Delegate string `json:"delegate"`
			Data     []struct {
				Y float64 `json:"y"`
			} `json:"data"`
		} `json:"series"`
	}
	decodeJSON(t, rec, &chart)
	require.Len(t, chart.Series, 1)
	assert.Equal(t, "d1", chart.Series[0].Delegate)
	require.Len(t, chart.Series[0].Data, 2)
	assert.Equal(t, 2.0, chart.Series[0].Data[1].Y)
}

func TestStatsEndpoints(t *testing.T) {
	history := &fakeHistory{rows: []*db.TokenStats{{ID: 1, Symbol: "TAO", Price: 400}}}
	h := newTestServer(t, newFakeExplorer(testConfig()), WithStatsHistory(history))

	rec := get(t, h, "/api/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats pricefeed.TokenStats
	decodeJSON(t, rec, &stats)
	assert.Equal(t, 420.5, stats.Price)

	rec = get(t, h, "/api/v1/stats/history?since=1h&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(5), history.limit)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), history.since, time.Minute)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	for _, q := range []string{"?since=-1h", "?since=yesterday", "?limit=0", "?limit=10001"} {
		rec = get(t, h, "/api/v1/stats/history"+q)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestStatsHistoryDisabled(t *testing.T) {
	h := newTestServer(t, newFakeExplorer(testConfig()))
	rec := get(t, h, "/api/v1/stats/history")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(t, newFakeExplorer(testConfig()))
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/networks", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr string
	}{
		{"ss58", aliceAddress, ""},
		{"hex public key", aliceHex, ""},
		{"empty", "", "address is required"},
		{"too long", strings.Repeat("5", maxAddressLength+1), "address too long"},
		{"control characters", "5Grw\x00vaEF", "invalid characters"},
		{"garbage", "hello", "invalid address format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateAddress(tt.address)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
