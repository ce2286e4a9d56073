package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/gabrielcipriano/bittensor-explorer/service/config"
	"github.com/gabrielcipriano/bittensor-explorer/service/explorer"
	"github.com/gabrielcipriano/bittensor-explorer/service/pricefeed"
	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
	"github.com/gabrielcipriano/bittensor-explorer/service/ss58"
	"github.com/gabrielcipriano/bittensor-explorer/service/table"
	"github.com/gabrielcipriano/bittensor-explorer/service/views"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateRenderer holds parsed HTML templates. Each page is parsed together
// with the shared layout and partials.
type TemplateRenderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

const layoutPattern = "templates/_*.html"

// NewTemplateRenderer creates a new template renderer from embedded files.
func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	base, err := template.New("").ParseFS(templatesFS, layoutPattern)
	if err != nil {
		return nil, err
	}

	files, err := fs.Glob(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := make(map[string]*template.Template)
	for _, f := range files {
		name := path.Base(f)
		if strings.HasPrefix(name, "_") {
			continue
		}
		t, err := template.Must(base.Clone()).ParseFS(templatesFS, f)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		pages[name] = t
	}

	return &TemplateRenderer{pages: pages, logger: logger}, nil
}

// Render renders a page with the given data and status.
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, status int, data interface{}) error {
	t, ok := tr.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return t.ExecuteTemplate(w, "layout", data)
}

// pages serves the explorer's HTML pages.
type pages struct {
	renderer *TemplateRenderer
	explorer Explorer
	stats    StatsSource
	cfg      *config.Config
	now      func() time.Time
	logger   *slog.Logger
}

// page is the data every template receives.
type page struct {
	Title    string
	Header   views.Header
	Networks []config.NetworkConfig
	Network  squid.Network
}

type indexPage struct {
	page
}

type errorPage struct {
	page
	Status  int
	Message string
}

type tab struct {
	Label  string
	URL    string
	Active bool
}

type accountPage struct {
	page
	Address   string
	PublicKey string
	Tabs      []tab
	Tab       string
	Transfers table.View
	Delegates table.View
	Chart     views.DelegateHistoryChart
	ChartErr  *explorer.DataError
	ChartURL  string
}

type validatorPage struct {
	page
	Address      string
	Validator    *explorer.Validator
	ValidatorErr *explorer.DataError
	Delegates    table.View
}

type listPage struct {
	page
	Table table.View
}

func (p *pages) basePage(ctx context.Context, title string, network squid.Network) page {
	var stats *pricefeed.TokenStats
	if p.stats != nil {
		s, err := p.stats.LatestTokenStats(ctx)
		if err != nil {
			p.logger.WarnContext(ctx, "token stats unavailable", "error", err)
		} else {
			stats = s
		}
	}
	return page{
		Title:    title,
		Header:   views.NewHeader(p.cfg.TokenSymbol, stats),
		Networks: p.cfg.Networks,
		Network:  network,
	}
}

func (p *pages) render(w http.ResponseWriter, r *http.Request, name string, status int, data interface{}) {
	if err := p.renderer.Render(w, name, status, data); err != nil {
		p.logger.ErrorContext(r.Context(), "failed to render template", "page", name, "error", err)
	}
}

func (p *pages) renderError(w http.ResponseWriter, r *http.Request, network squid.Network, status int, message string) {
	p.render(w, r, "error.html", status, errorPage{
		page:    p.basePage(r.Context(), http.StatusText(status), network),
		Status:  status,
		Message: message,
	})
}

// network resolves the {network} path value, rendering 404 for unknown networks.
func (p *pages) network(w http.ResponseWriter, r *http.Request) (squid.Network, bool) {
	n, err := p.explorer.Network(r.PathValue("network"))
	if err != nil {
		p.renderError(w, r, squid.Network{}, http.StatusNotFound, "Unknown network")
		return squid.Network{}, false
	}
	return n, true
}

// index lists the configured networks.
// GET /
func (p *pages) index(w http.ResponseWriter, r *http.Request) {
	p.render(w, r, "index.html", http.StatusOK, indexPage{page: p.basePage(r.Context(), "Explorer", squid.Network{})})
}

// search routes a query to the account page when it is an address, and to the
// calls list otherwise.
// GET /{network}/search?query=Q
func (p *pages) search(w http.ResponseWriter, r *http.Request) {
	network, ok := p.network(w, r)
	if !ok {
		return
	}
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	switch {
	case query == "":
		http.Redirect(w, r, "/", http.StatusSeeOther)
	case ss58.IsAddress(query):
		http.Redirect(w, r, fmt.Sprintf("/%s/account/%s", network.Name, url.PathEscape(query)), http.StatusSeeOther)
	default:
		http.Redirect(w, r, fmt.Sprintf("/%s/calls?search=%s", network.Name, url.QueryEscape(query)), http.StatusSeeOther)
	}
}

const (
	tabTransfers  = "transfers"
	tabDelegation = "delegation"
)

// delegatesState reads the delegates table state. Validator pages sort by time by default.
func delegatesState(r *http.Request, mappings []table.FilterMapping, fromValidator bool) table.State {
	state := table.ParseState(r.URL.Query(), mappings)
	if fromValidator && state.Sort == nil {
		state.Sort = views.SortFromOrder("BLOCK_NUMBER_DESC")
	}
	return state
}

// account shows the transfers or the delegations of an account, one tab at a
// time. The delegation tab loads its table and chart concurrently and each
// keeps its own error state.
// GET /{network}/account/{address}[/{tab}]
func (p *pages) account(w http.ResponseWriter, r *http.Request) {
	network, ok := p.network(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	address := r.PathValue("address")

	activeTab := r.PathValue("tab")
	if activeTab == "" {
		activeTab = tabTransfers
	}
	if activeTab != tabTransfers && activeTab != tabDelegation {
		p.renderError(w, r, network, http.StatusNotFound, "Unknown tab")
		return
	}

	account, err := p.explorer.GetAccount(ctx, network.Name, address)
	if err != nil {
		p.renderError(w, r, network, http.StatusBadGateway, explorer.NewDataError(err).Error())
		return
	}
	if account == nil {
		p.renderError(w, r, network, http.StatusNotFound, "Invalid account address")
		return
	}

	accountPath := fmt.Sprintf("/%s/account/%s", network.Name, address)
	data := accountPage{
		page:      p.basePage(ctx, "Account "+account.EncodedAddress(), network),
		Address:   account.EncodedAddress(),
		PublicKey: account.ID,
		Tab:       activeTab,
		Tabs: []tab{
			{Label: "Transfers", URL: accountPath + "/" + tabTransfers, Active: activeTab == tabTransfers},
			{Label: "Delegation", URL: accountPath + "/" + tabDelegation, Active: activeTab == tabDelegation},
		},
		ChartURL: accountPath + "/delegate-history.csv",
	}

	if activeTab == tabTransfers {
		state := table.ParseState(r.URL.Query(), nil)
		transfers := explorer.NewResource(p.explorer.GetTransfers(ctx, network.Name,
			explorer.TransfersByAccount(account.ID), nil,
			explorer.PaginationOptions{Offset: state.Offset, Limit: state.Limit}))
		data.Transfers = views.TransfersTable(transfers, views.TransfersTableOptions{
			Network:       network.Name,
			Currency:      network.Currency,
			State:         state,
			Path:          accountPath + "/" + tabTransfers,
			ShowDirection: true,
			Now:           p.now,
		}).Build()
		p.render(w, r, "account.html", http.StatusOK, data)
		return
	}

	mappings := views.DelegatesFilterMappings(p.cfg.MinDelegationAmount)
	state := delegatesState(r, mappings, false)
	encoded := account.EncodedAddress()
	var delegates explorer.PaginatedResource[explorer.Delegate]

	// Table and chart keep their own error state; the group only waits.
	var g errgroup.Group
	g.Go(func() error {
		delegates = explorer.NewResource(loadDelegates(ctx, p.explorer, network.Name,
			explorer.DelegatesForAccount(encoded), "delegate", state, mappings))
		return nil
	})
	g.Go(func() error {
		chart, err := loadDelegateHistoryChart(ctx, p.explorer, network.Name, encoded, p.now())
		if err != nil {
			data.ChartErr = explorer.NewDataError(err)
			return nil
		}
		data.Chart = chart
		return nil
	})
	_ = g.Wait()

	data.Delegates = views.DelegatesTable(delegates, views.DelegatesTableOptions{
		Network:             network.Name,
		Currency:            network.Currency,
		SS58Prefix:          network.SS58Prefix,
		MinDelegationAmount: p.cfg.MinDelegationAmount,
		State:               state,
		Path:                accountPath + "/" + tabDelegation,
		ExportURL:           state.URL(accountPath + "/delegates.csv"),
		Now:                 p.now,
	}).Build()
	p.render(w, r, "account.html", http.StatusOK, data)
}

// validator shows a validator and the delegations it received.
// GET /{network}/validators/{address}
func (p *pages) validator(w http.ResponseWriter, r *http.Request) {
	network, ok := p.network(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	address := r.PathValue("address")
	if !ss58.IsAddress(address) {
		p.renderError(w, r, network, http.StatusNotFound, "Invalid validator address")
		return
	}

	basePath := fmt.Sprintf("/%s/validators/%s", network.Name, address)
	mappings := views.DelegatesFilterMappings(p.cfg.MinDelegationAmount)
	state := delegatesState(r, mappings, true)

	var (
		validator    *explorer.Validator
		validatorErr *explorer.DataError
		delegates    = explorer.LoadingResource[explorer.Delegate]()
		timestamps   map[int64]string
	)
	// Each panel keeps its own error state; the group only waits.
	var g errgroup.Group
	g.Go(func() error {
		v, err := p.explorer.GetValidator(ctx, network.Name, address)
		if err != nil {
			validatorErr = explorer.NewDataError(err)
			return nil
		}
		validator = v
		return nil
	})
	g.Go(func() error {
		resp, err := loadDelegates(ctx, p.explorer, network.Name,
			explorer.DelegatesForValidator(address), "account", state, mappings)
		delegates = explorer.NewResource(resp, err)
		if err != nil || len(resp.Data) == 0 {
			return nil
		}
		heights := make([]int64, 0, len(resp.Data))
		for _, d := range resp.Data {
			heights = append(heights, d.BlockNumber)
		}
		ts, err := p.explorer.FetchBlockTimestamps(ctx, network.Name, heights)
		if err != nil {
			p.logger.WarnContext(ctx, "block timestamps unavailable", "error", err)
			return nil
		}
		timestamps = ts
		return nil
	})
	_ = g.Wait()

	title := "Validator " + address
	if validator != nil && validator.Name != "" {
		title = validator.Name
	}
	p.render(w, r, "validator.html", http.StatusOK, validatorPage{
		page:         p.basePage(ctx, title, network),
		Address:      ss58.Reencode(address, network.SS58Prefix),
		Validator:    validator,
		ValidatorErr: validatorErr,
		Delegates: views.DelegatesTable(delegates, views.DelegatesTableOptions{
			Network:             network.Name,
			Currency:            network.Currency,
			SS58Prefix:          network.SS58Prefix,
			ShowTime:            true,
			Timestamps:          timestamps,
			MinDelegationAmount: p.cfg.MinDelegationAmount,
			State:               state,
			Path:                basePath,
			ExportURL:           state.URL(basePath + "/delegates.csv"),
			Now:                 p.now,
		}).Build(),
	})
}

// calls lists the calls of a network; search narrows them by name.
// GET /{network}/calls?search=Pallet.call
func (p *pages) calls(w http.ResponseWriter, r *http.Request) {
	network, ok := p.network(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	state := table.ParseState(r.URL.Query(), nil)

	var filter explorer.CallsFilter
	if state.Search != "" {
		filter = explorer.CallsByName(state.Search)
	}
	calls := explorer.NewResource(p.explorer.GetCalls(ctx, network.Name, filter, nil,
		explorer.PaginationOptions{Offset: state.Offset, Limit: state.Limit}))

	path := fmt.Sprintf("/%s/calls", network.Name)
	t := views.CallsTable(network.Name, calls, state, path)
	t.SearchPlaceholder = "Pallet.call"
	p.render(w, r, "list.html", http.StatusOK, listPage{
		page:  p.basePage(ctx, "Calls", network),
		Table: t.Build(),
	})
}

// transfers lists the latest transfers of a network.
// GET /{network}/transfers
func (p *pages) transfers(w http.ResponseWriter, r *http.Request) {
	network, ok := p.network(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	state := table.ParseState(r.URL.Query(), nil)

	transfers := explorer.NewResource(p.explorer.GetTransfers(ctx, network.Name, nil, nil,
		explorer.PaginationOptions{Offset: state.Offset, Limit: state.Limit}))
	path := fmt.Sprintf("/%s/transfers", network.Name)
	p.render(w, r, "list.html", http.StatusOK, listPage{
		page: p.basePage(ctx, "Transfers", network),
		Table: views.TransfersTable(transfers, views.TransfersTableOptions{
			Network:  network.Name,
			Currency: network.Currency,
			State:    state,
			Path:     path,
			Now:      p.now,
		}).Build(),
	})
}
