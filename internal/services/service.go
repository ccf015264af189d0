package services

import (
	"context"

	"github.com/commitlabs/commitment-service/internal/auth"
	"github.com/commitlabs/commitment-service/internal/batch"
	"github.com/commitlabs/commitment-service/internal/clock"
	"github.com/commitlabs/commitment-service/internal/compliance"
	"github.com/commitlabs/commitment-service/internal/config"
	"github.com/commitlabs/commitment-service/internal/events"
	"github.com/commitlabs/commitment-service/internal/ledger"
	"github.com/commitlabs/commitment-service/internal/registry"
)

// Store is the union of the per-component stores plus connectivity
// checks; both the MongoDB and the in-memory implementation satisfy it.
type Store interface {
	ledger.Store
	registry.Store
	compliance.Store
	Ping(ctx context.Context) error
}

// Service wires the three domain components over a shared store, clock,
// authorization provider and event sink.
type Service struct {
	cfg        *config.Config
	store      Store
	clock      clock.Clock
	Ledger     *ledger.Ledger
	Registry   *registry.Registry
	Compliance *compliance.Engine
}

func NewService(
	cfg *config.Config,
	store Store,
	authProvider auth.Provider,
	clk clock.Clock,
	sink events.Sink,
) *Service {
	admin := cfg.Service.AdminPrincipal
	limiter := batch.NewLimiter(cfg.Batch.MaxBatchSize)

	reg := registry.New(store, authProvider, clk, sink, limiter, admin)
	led := ledger.New(store, reg, authProvider, clk, sink, admin)
	eng := compliance.New(store, led, nil, authProvider, clk, sink, admin)

	return &Service{
		cfg:        cfg,
		store:      store,
		clock:      clk,
		Ledger:     led,
		Registry:   reg,
		Compliance: eng,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}
