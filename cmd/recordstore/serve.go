package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"recordstore/internal/httpapi"
	"recordstore/internal/tracing"
	"recordstore/resource"
)

func serve(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr).
		Str("store", cfg.Store.Type).
		Msg("Starting recordstore")

	if cfg.Server.Tracing || cfg.Store.Tracing {
		tp, err := tracing.Setup(ctx, cfg.Server, version)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Failed to flush traces")
			}
		}()
	}

	svc, sqlSvc, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	if sqlSvc != nil && cfg.Migrations.Auto {
		if err := runMigrations(ctx, cfg, sqlSvc); err != nil {
			return err
		}
	}

	registry, err := resource.Build(svc, cfg.Schemas())
	if err != nil {
		return err
	}
	log.Info().Strs("entities", registry.Entities()).Msg("Entities registered")

	api := httpapi.New(registry, svc,
		httpapi.WithBasePath(cfg.Server.BasePath),
		httpapi.WithRequestTimeout(cfg.Server.RequestTimeout),
		httpapi.WithTracing(cfg.Server.Tracing),
		httpapi.WithVersion(version),
	)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: cfg.Server.RequestTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
