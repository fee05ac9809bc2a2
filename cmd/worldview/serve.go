package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"
	"gitlab.com/tozd/go/errors"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/worldview/internal/core"
	"github.com/JonMunkholm/worldview/internal/metrics"
	"github.com/JonMunkholm/worldview/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the directory web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
}

// serve runs the HTTP server and the session sweeper until ctx is cancelled,
// then shuts both down within the configured timeout.
func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"source", sourceName(cfg.Source.URL, cfg.Source.File),
		"page_size", cfg.Directory.PageSize,
		"session_ttl", cfg.Session.TTL,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	service := core.NewService(a.fetcher(), cfg, metrics.New())
	server := web.NewServer(service, cfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		service.StartSessionSweeper(gctx, cfg.Session.SweepInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if st := service.FetchStatus(); st.Active > 0 {
			slog.Info("waiting for fetches to complete", "active", st.Active)
			if err := service.WaitForFetches(shutdownCtx); err != nil {
				slog.Warn("fetches did not complete in time", "error", err)
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return errors.Errorf("shutdown: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil {
		slog.Error("server stopped", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}

func sourceName(url, file string) string {
	if file != "" {
		return file
	}
	return url
}
