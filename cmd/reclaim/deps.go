package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ajitpratap0/reclaim/internal/config"
	"github.com/ajitpratap0/reclaim/internal/doctype"
	"github.com/ajitpratap0/reclaim/internal/events"
	"github.com/ajitpratap0/reclaim/internal/graph"
	"github.com/ajitpratap0/reclaim/internal/matcher"
	"github.com/ajitpratap0/reclaim/internal/matching"
	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/reports"
	"github.com/ajitpratap0/reclaim/internal/store"
)

// app bundles the collaborators most commands need.
type app struct {
	store    store.Store
	bus      events.Bus
	reports  *reports.Service
	matching *matching.Service
	logger   *slog.Logger
}

// newApp connects the store and bus and builds the services on top.
func newApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	st, err := newStore(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting to store: %w", err)
	}
	bus, err := newBus(logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("connecting to change bus: %w", err)
	}

	a := &app{
		store:    st,
		bus:      bus,
		reports:  reports.NewService(st, newNormalizer(logger), bus, logger),
		matching: matching.NewService(st, cfg.Matcher(matcher.WithLogger(logger)), bus, logger),
		logger:   logger,
	}

	if cfg.Store.Driver == config.DriverMemory && cfg.Store.SeedFile != "" {
		n, seedErr := a.seed(ctx, cfg.Store.SeedFile)
		if seedErr != nil {
			_ = a.Close()
			return nil, seedErr
		}
		logger.Info("memory store seeded", "file", cfg.Store.SeedFile, "entries", n)
	}
	return a, nil
}

func (a *app) seed(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening seed file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []models.Entry
	if err := json.NewDecoder(f).Decode(&entries); err != nil {
		return 0, fmt.Errorf("decoding seed file: %w", err)
	}
	return a.reports.Import(ctx, entries)
}

// Close releases the bus and the store.
func (a *app) Close() error {
	return errors.Join(a.bus.Close(), a.store.Close())
}

// warnEphemeral tells the operator that a mutating command runs against a
// store that will be discarded on exit.
func (a *app) warnEphemeral() {
	if cfg.Store.Driver == config.DriverMemory {
		a.logger.Warn("memory store: changes are discarded when the command exits; set store.driver=postgres to persist")
	}
}

func newStore(ctx context.Context, logger *slog.Logger) (store.Store, error) {
	if cfg.Store.Driver != config.DriverPostgres {
		return store.NewMemoryStore(), nil
	}
	st, err := store.NewPostgresStore(cfg.Store.PostgresDSN, logger)
	if err != nil {
		return nil, err
	}
	if err := st.EnsureSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

func newBus(logger *slog.Logger) (events.Bus, error) {
	if !cfg.Redis.Enabled {
		return events.NewMemoryBus(), nil
	}
	return events.NewRedisBus(cfg.Redis.Addr, cfg.Redis.Channel, logger)
}

func newProjector(logger *slog.Logger) (graph.Projector, error) {
	if !cfg.Neo4j.Enabled {
		return graph.Nop{}, nil
	}
	return graph.NewNeo4jProjector(cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database, logger)
}

func newNormalizer(logger *slog.Logger) doctype.Normalizer {
	if cfg.Claude.APIKey == "" {
		return doctype.NewHeuristic(logger)
	}
	return doctype.NewClaudeNormalizer(cfg.Claude.APIKey, cfg.Claude.Model, logger)
}
