package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gabrielcipriano/bittensor-explorer/service/config"
	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/metrics"
	"github.com/gabrielcipriano/bittensor-explorer/service/table"
	"github.com/gabrielcipriano/bittensor-explorer/service/views"
)

// handleDelegatesCSV downloads the delegates page the table shows, with the
// same sort, filter and search state.
// GET /{network}/account/{address}/delegates.csv
// GET /{network}/validators/{address}/delegates.csv
func handleDelegatesCSV(ex Explorer, cfg *config.Config, fromValidator bool, m *metrics.Metrics, logger *slog.Logger) http.Handler {
	mappings := views.DelegatesFilterMappings(cfg.MinDelegationAmount)
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

		base, searchField := explorer.DelegatesForAccount(address), "delegate"
		if fromValidator {
			base, searchField = explorer.DelegatesForValidator(address), "account"
		}
		state := delegatesState(r, mappings, fromValidator)

		resp, err := loadDelegates(r.Context(), ex, network.Name, base, searchField, state, mappings)
		if err != nil {
			writeUpstreamError(w, logger, "failed to load delegates for export", err)
			return
		}
		timestamps := func(ctx context.Context, heights []int64) (map[int64]string, error) {
			return ex.FetchBlockTimestamps(ctx, network.Name, heights)
		}
		export, err := views.DelegatesExport(r.Context(), explorer.NewResource(resp, nil), address, network.Currency, fromValidator, timestamps)
		serveExport(w, "delegates", export, err, m, logger)
	})
}

// handleDelegateHistoryCSV downloads the stake-per-delegate chart of an account.
// GET /{network}/account/{address}/delegate-history.csv
func handleDelegateHistoryCSV(ex Explorer, now func() time.Time, m *metrics.Metrics, logger *slog.Logger) http.Handler {
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

		at := now()
		chart, err := loadDelegateHistoryChart(r.Context(), ex, network.Name, address, at)
		if err != nil {
			writeUpstreamError(w, logger, "failed to load delegate history for export", err)
			return
		}
		serveExport(w, "delegate_history", chart.Export(at), nil, m, logger)
	})
}

func serveExport(w http.ResponseWriter, name string, export table.Export, err error, m *metrics.Metrics, logger *slog.Logger) {
	if err == nil {
		err = table.ServeCSV(w, export)
		if err != nil {
			logger.Warn("failed to write csv", "export", name, "error", err)
		}
	} else {
		writeUpstreamError(w, logger, "failed to build "+name+" export", err)
	}
	if m != nil {
		m.RecordCSVExport(name, len(export.Data), err)
	}
}
