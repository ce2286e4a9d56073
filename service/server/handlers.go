package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/errgroup"

	"github.com/gabrielcipriano/bittensor-explorer/service/config"
	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
	"github.com/gabrielcipriano/bittensor-explorer/service/ss58"
	"github.com/gabrielcipriano/bittensor-explorer/service/table"
	"github.com/gabrielcipriano/bittensor-explorer/service/views"
)

const (
	maxAddressLength   = 100 // SS58 addresses are 47-48 chars, hex keys 66
	maxSearchLength    = 128
	defaultStatsWindow = 24 * time.Hour
	defaultStatsLimit  = 1440
	maxStatsLimit      = 10000
)

// handleListNetworks returns the configured networks.
// GET /api/v1/networks
func handleListNetworks(cfg *config.Config) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := make([]networkResponse, 0, len(cfg.Networks))
		for _, n := range cfg.Networks {
			resp = append(resp, networkResponse{
				Name:        n.Name,
				DisplayName: n.DisplayName,
				Currency:    n.Currency,
				SS58Prefix:  n.SS58Prefix,
				Default:     n.Name == cfg.DefaultNetwork,
			})
		}
		writeJSON(w, map[string]interface{}{"networks": resp}, http.StatusOK)
	})
}

type networkResponse struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Currency    string `json:"currency"`
	SS58Prefix  uint16 `json:"ss58_prefix"`
	Default     bool   `json:"default"`
}

// handleListTransfers lists transfers of a network, optionally of one account.
// GET /api/v1/{network}/transfers?account=ADDRESS&offset=N&limit=N
func handleListTransfers(ex Explorer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		network, ok := requireNetwork(w, r, ex)
		if !ok {
			return
		}
		q := r.URL.Query()
		opts, err := parsePagination(q.Get("offset"), q.Get("limit"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		var filter explorer.TransfersFilter
		if account := q.Get("account"); account != "" {
			pubkey, err := publicKey(account)
			if err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			filter = explorer.TransfersByAccount(pubkey)
		}

		resp, err := ex.GetTransfers(r.Context(), network.Name, filter, nil, opts)
		if err != nil {
			writeUpstreamError(w, logger, "failed to list transfers", err)
			return
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

// handleListCalls lists calls of a network, optionally by name.
// GET /api/v1/{network}/calls?name=Pallet.call&offset=N&limit=N
func handleListCalls(ex Explorer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		network, ok := requireNetwork(w, r, ex)
		if !ok {
			return
		}
		q := r.URL.Query()
		opts, err := parsePagination(q.Get("offset"), q.Get("limit"))
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		var filter explorer.CallsFilter
		if name := strings.TrimSpace(q.Get("name")); name != "" {
			if err := validateSearch(name); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			filter = explorer.CallsByName(name)
		}

		resp, err := ex.GetCalls(r.Context(), network.Name, filter, nil, opts)
		if err != nil {
			writeUpstreamError(w, logger, "failed to list calls", err)
			return
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

// handleListDelegates lists delegation events. It reads the same sort, filter
// and search parameters as the delegates table.
// GET /api/v1/{network}/delegates?account=A|validator=V&sort=amount&dir=ASC&filter.amount=RAW&search=S
func handleListDelegates(ex Explorer, cfg *config.Config, logger *slog.Logger) http.Handler {
	mappings := views.DelegatesFilterMappings(cfg.MinDelegationAmount)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		network, ok := requireNetwork(w, r, ex)
		if !ok {
			return
		}
		q := r.URL.Query()

		base := explorer.DelegateFilter{}
		searchField := "delegate"
		switch {
		case q.Get("account") != "" && q.Get("validator") != "":
			writeError(w, "account and validator are mutually exclusive", http.StatusBadRequest)
			return
		case q.Get("account") != "":
			if err := validateAddress(q.Get("account")); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			base = explorer.DelegatesForAccount(q.Get("account"))
		case q.Get("validator") != "":
			if err := validateAddress(q.Get("validator")); err != nil {
				writeError(w, err.Error(), http.StatusBadRequest)
				return
			}
			base = explorer.DelegatesForValidator(q.Get("validator"))
			searchField = "account"
		}

		state := table.ParseState(q, mappings)
		if err := validateSearch(state.Search); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp, err := loadDelegates(r.Context(), ex, network.Name, base, searchField, state, mappings)
		if err != nil {
			writeUpstreamError(w, logger, "failed to list delegates", err)
			return
		}
		writeJSON(w, resp, http.StatusOK)
	})
}

// loadDelegates fetches the delegates page a table state selects.
func loadDelegates(ctx context.Context, ex Explorer, network string, base explorer.DelegateFilter, searchField string, state table.State, mappings []table.FilterMapping) (*explorer.ItemsResponse[explorer.Delegate], error) {
	filter := views.DelegateFilterFromState(base, state, mappings)
	filter = ex.DelegateSearch(ctx, filter, searchField, state.Search)
	return ex.GetDelegates(ctx, network, filter, views.OrderFromSort(state.Sort), explorer.PaginationOptions{
		Offset: state.Offset,
		Limit:  state.Limit,
	})
}

// handleGetAccount returns an account with its decoded public key.
// GET /api/v1/{network}/accounts/{address}
func handleGetAccount(ex Explorer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		network, ok := requireNetwork(w, r, ex)
		if !ok {
			return
		}
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		account, err := ex.GetAccount(r.Context(), network.Name, address)
		if err != nil {
			writeUpstreamError(w, logger, "failed to get account", err)
			return
		}
		if account == nil {
			writeError(w, "account not found", http.StatusNotFound)
			return
		}
		writeJSON(w, account, http.StatusOK)
	})
}

// handleGetDelegateHistory returns the stake-per-delegate chart of an account.
// GET /api/v1/{network}/accounts/{address}/delegate-history
func handleGetDelegateHistory(ex Explorer, now func() time.Time, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		network, ok := requireNetwork(w, r, ex)
		if !ok {
			return
		}
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		chart, err := loadDelegateHistoryChart(r.Context(), ex, network.Name, address, now())
		if err != nil {
			writeUpstreamError(w, logger, "failed to load delegate history", err)
			return
		}
		writeJSON(w, chart, http.StatusOK)
	})
}

// loadDelegateHistoryChart fetches the history and current balances of an account concurrently.
func loadDelegateHistoryChart(ctx context.Context, ex Explorer, network, address string, now time.Time) (views.DelegateHistoryChart, error) {
	var (
		history  []explorer.AccountDelegateHistory
		balances []explorer.DelegateBalance
		verified map[string]explorer.VerifiedDelegate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = ex.GetAccountDelegateHistory(gctx, network, address)
		if err != nil {
			return fmt.Errorf("delegate history: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		balances, err = ex.GetDelegateBalances(gctx, network, address)
		if err != nil {
			return fmt.Errorf("delegate balances: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		verified = ex.VerifiedDelegates(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		return views.DelegateHistoryChart{}, err
	}
	return views.BuildDelegateHistoryChart(address, history, balances, verified, now), nil
}

// handleGetValidator returns a validator with its verified name.
// GET /api/v1/{network}/validators/{address}
func handleGetValidator(ex Explorer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		network, ok := requireNetwork(w, r, ex)
		if !ok {
			return
		}
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		v, err := ex.GetValidator(r.Context(), network.Name, address)
		if err != nil {
			writeUpstreamError(w, logger, "failed to get validator", err)
			return
		}
		if v == nil {
			writeError(w, "validator not found", http.StatusNotFound)
			return
		}
		writeJSON(w, v, http.StatusOK)
	})
}

// handleGetValidatorStakeHistory returns one page of daily stake of a validator.
// GET /api/v1/{network}/validators/{address}/stake-history?after=CURSOR
func handleGetValidatorStakeHistory(ex Explorer, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		network, ok := requireNetwork(w, r, ex)
		if !ok {
			return
		}
		address := r.PathValue("address")
		if err := validateAddress(address); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}

		page, err := ex.GetValidatorStakeHistory(r.Context(), network.Name, address, r.URL.Query().Get("after"))
		if err != nil {
			writeUpstreamError(w, logger, "failed to get validator stake history", err)
			return
		}
		writeJSON(w, page, http.StatusOK)
	})
}

// handleGetStats returns the latest token stats.
// GET /api/v1/stats
func handleGetStats(stats StatsSource, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if stats == nil {
			writeError(w, "token stats not configured", http.StatusNotFound)
			return
		}
		s, err := stats.LatestTokenStats(r.Context())
		if err != nil {
			writeUpstreamError(w, logger, "failed to get token stats", err)
			return
		}
		writeJSON(w, s, http.StatusOK)
	})
}

// handleGetStatsHistory lists stored token stats, oldest first.
// GET /api/v1/stats/history?since=24h&limit=N
func handleGetStatsHistory(history StatsHistory, cfg *config.Config, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if history == nil {
			writeError(w, "token stats history not available", http.StatusNotFound)
			return
		}
		q := r.URL.Query()

		window := defaultStatsWindow
		if v := q.Get("since"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				writeError(w, "invalid since parameter: must be a positive duration", http.StatusBadRequest)
				return
			}
			window = d
		}

		limit := defaultStatsLimit
		if v := q.Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				writeError(w, "invalid limit parameter: must be a positive integer", http.StatusBadRequest)
				return
			}
			if n > maxStatsLimit {
				writeError(w, fmt.Sprintf("limit cannot exceed %d", maxStatsLimit), http.StatusBadRequest)
				return
			}
			limit = n
		}

		rows, err := history.ListTokenStats(r.Context(), cfg.TokenSymbol, time.Now().Add(-window), int32(limit))
		if err != nil {
			logger.Error("failed to list token stats", "error", err)
			writeError(w, "internal server error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]interface{}{
			"symbol": cfg.TokenSymbol,
			"stats":  rows,
			"count":  len(rows),
		}, http.StatusOK)
	})
}

// requireNetwork resolves the {network} path value, answering 404 for unknown networks.
func requireNetwork(w http.ResponseWriter, r *http.Request, ex Explorer) (squid.Network, bool) {
	n, err := ex.Network(r.PathValue("network"))
	if err != nil {
		writeError(w, err.Error(), http.StatusNotFound)
		return squid.Network{}, false
	}
	return n, true
}

// writeUpstreamError reports a failed backend query as a bad gateway.
func writeUpstreamError(w http.ResponseWriter, logger *slog.Logger, msg string, err error) {
	if errors.Is(err, squid.ErrUnknownNetwork) {
		writeError(w, err.Error(), http.StatusNotFound)
		return
	}
	logger.Error(msg, "error", err)
	writeError(w, explorer.NewDataError(err).Error(), http.StatusBadGateway)
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// parsePagination reads offset and limit query values.
func parsePagination(offset, limit string) (explorer.PaginationOptions, error) {
	var opts explorer.PaginationOptions
	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil {
			return opts, errorf("invalid offset parameter: must be an integer")
		}
		if n < 0 {
			return opts, errorf("offset cannot be negative")
		}
		opts.Offset = n
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return opts, errorf("invalid limit parameter: must be an integer")
		}
		if n < 1 {
			return opts, errorf("limit must be at least 1")
		}
		if n > 100 {
			return opts, errorf("limit cannot exceed 100")
		}
		opts.Limit = n
	}
	return opts, nil
}

// validateAddress checks that address is an SS58 address or a hex public key.
func validateAddress(address string) error {
	if address == "" {
		return errorf("address is required")
	}
	if len(address) > maxAddressLength {
		return errorf("address too long: maximum length is %d characters", maxAddressLength)
	}
	for _, r := range address {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in address: control characters not allowed")
		}
	}
	if !ss58.IsAddress(address) {
		return errorf("invalid address format: %s", address)
	}
	return nil
}

// publicKey validates address and returns its hex public key.
func publicKey(address string) (string, error) {
	if err := validateAddress(address); err != nil {
		return "", err
	}
	pubkey, err := ss58.Decode(address)
	if err != nil {
		return "", errorf("invalid address: %v", err)
	}
	return pubkey, nil
}

// validateSearch bounds free-text search input.
func validateSearch(s string) error {
	if len(s) > maxSearchLength {
		return errorf("search too long: maximum length is %d characters", maxSearchLength)
	}
	for _, r := range s {
		if r == 0 || unicode.IsControl(r) {
			return errorf("invalid characters in search: control characters not allowed")
		}
	}
	return nil
}

// errorf is a helper to format error strings.
func errorf(format string, args ...interface{}) error {
	return &validationError{msg: strings.TrimSpace(fmt.Sprintf(format, args...))}
}

type validationError struct {
	msg string
}

func (e *validationError) Error() string {
	return e.msg
}
