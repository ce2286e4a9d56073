package explorer

import (
	"context"
	"log/slog"

	"github.com/gabrielcipriano/bittensor-explorer/service/squid"
)

// GraphQL is the subset of the squid client the services use.
type GraphQL interface {
	HasSupport(network string, backend squid.Backend) bool
	FetchArchive(ctx context.Context, network string, q squid.Query, out any) error
	FetchMainSquid(ctx context.Context, network string, q squid.Query, out any) error
	FetchIndexer(ctx context.Context, network string, q squid.Query, out any) error
}

// Service answers the explorer's data queries.
type Service struct {
	gql       GraphQL
	registry  *squid.Registry
	delegates *VerifiedDelegates
	logger    *slog.Logger
}

// NewService creates a Service. delegates may be nil, in which case no names are resolved.
func NewService(gql GraphQL, registry *squid.Registry, delegates *VerifiedDelegates, logger *slog.Logger) *Service {
	return &Service{
		gql:       gql,
		registry:  registry,
		delegates: delegates,
		logger:    logger,
	}
}

// Network returns the registry entry of a network.
func (s *Service) Network(name string) (squid.Network, error) {
	return s.registry.Get(name)
}

// VerifiedDelegates returns the registry keyed by delegate address, or an empty map.
// Lookup failures are logged and degrade to unnamed delegates.
func (s *Service) VerifiedDelegates(ctx context.Context) map[string]VerifiedDelegate {
	if s.delegates == nil {
		return map[string]VerifiedDelegate{}
	}
	m, err := s.delegates.All(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "verified delegates unavailable", "error", err)
		return map[string]VerifiedDelegate{}
	}
	return m
}
