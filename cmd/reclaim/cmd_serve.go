package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/reclaim/internal/api"
	"github.com/ajitpratap0/reclaim/internal/identity"
	"github.com/ajitpratap0/reclaim/internal/watch"
)

func serveCmd() *cobra.Command {
	var withWatch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/JSON API server",
		Long: `Start the HTTP/JSON API server.

Requests carry a bearer token issued with "reclaim token". With
auth.disabled every request runs as an anonymous admin.

With --watch (or neo4j.enabled) the server also recomputes the global match
view on every change and projects it into Neo4j.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			var verifier api.Verifier
			switch {
			case cfg.Auth.Disabled:
				logger.Warn("HTTP API: auth is DISABLED; every request runs as an anonymous admin")
			case cfg.Auth.JWTSecret == "":
				return fmt.Errorf("serve: auth.jwt_secret (RECLAIM_AUTH_JWT_SECRET) must be set, or set auth.disabled for local use")
			default:
				verifier = identity.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
			}

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() { _ = a.Close() }()

			srv := api.NewServer(a.reports, a.matching, verifier, logger)

			httpSrv := &http.Server{
				Addr:              cfg.API.ListenAddr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       30 * time.Second,
				WriteTimeout:      60 * time.Second,
				IdleTimeout:       120 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info("HTTP API server starting", "addr", cfg.API.ListenAddr, "store", cfg.Store.Driver)
				if listenErr := httpSrv.ListenAndServe(); listenErr != nil && !errors.Is(listenErr, http.ErrServerClosed) {
					return fmt.Errorf("serve: HTTP server: %w", listenErr)
				}
				return nil
			})

			g.Go(func() error {
				<-gctx.Done()
				logger.Info("shutting down")
				const shutdownTimeout = 10 * time.Second
				if shutdownErr := api.Shutdown(httpSrv, shutdownTimeout); shutdownErr != nil {
					return fmt.Errorf("serve: graceful shutdown: %w", shutdownErr)
				}
				return nil
			})

			if withWatch || cfg.Neo4j.Enabled {
				projector, projErr := newProjector(logger)
				if projErr != nil {
					return fmt.Errorf("serve: connecting to graph: %w", projErr)
				}
				defer func() { _ = projector.Close(context.Background()) }()

				w := watch.New(a.bus, a.matching, projector, cfg.Watch.Debounce, logger)
				g.Go(func() error {
					return w.Run(gctx)
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().BoolVar(&withWatch, "watch", false, "recompute matches on every change while serving")
	return cmd
}
