package squid

import (
	"fmt"
	"sort"

	"github.com/gabrielcipriano/bittensor-explorer/service/config"
)

// Backend names one of the GraphQL indexing services a network may expose.
type Backend string

const (
	Archive   Backend = "archive"
	MainSquid Backend = "main-squid"
	Indexer   Backend = "indexer"
)

// Network is a chain the explorer can query.
type Network struct {
	Name        string
	DisplayName string
	Currency    string
	SS58Prefix  uint16
	Endpoints   map[Backend]string
}

// Registry holds the configured networks keyed by name.
type Registry struct {
	networks map[string]Network
	order    []string
}

// NewRegistry builds the registry from configuration.
// Backends with an empty URL are left out, which is what HasSupport reports on.
func NewRegistry(cfgs []config.NetworkConfig) *Registry {
	r := &Registry{networks: make(map[string]Network, len(cfgs))}
	for _, c := range cfgs {
		n := Network{
			Name:        c.Name,
			DisplayName: c.DisplayName,
			Currency:    c.Currency,
			SS58Prefix:  c.SS58Prefix,
			Endpoints:   make(map[Backend]string),
		}
		for backend, url := range map[Backend]string{
			Archive:   c.ArchiveURL,
			MainSquid: c.MainSquidURL,
			Indexer:   c.IndexerURL,
		} {
			if url != "" {
				n.Endpoints[backend] = url
			}
		}
		if _, dup := r.networks[c.Name]; !dup {
			r.order = append(r.order, c.Name)
		}
		r.networks[c.Name] = n
	}
	return r
}

// Get returns the named network.
func (r *Registry) Get(name string) (Network, error) {
	n, ok := r.networks[name]
	if !ok {
		return Network{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
	return n, nil
}

// HasSupport reports whether the network has the given backend configured.
func (r *Registry) HasSupport(network string, backend Backend) bool {
	n, ok := r.networks[network]
	if !ok {
		return false
	}
	_, ok = n.Endpoints[backend]
	return ok
}

// Names lists the configured networks in configuration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Backends lists the backends of a network, sorted by name.
func (n Network) Backends() []Backend {
	out := make([]Backend, 0, len(n.Endpoints))
	for b := range n.Endpoints {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
