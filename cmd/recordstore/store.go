package main

import (
	"context"
	"io/fs"
	"os"

	"github.com/rs/zerolog/log"

	"recordstore"
	"recordstore/internal/catalog"
	"recordstore/internal/config"
	kvstore "recordstore/kv"
	sqlstore "recordstore/sql"
)

// openStore connects the configured backend. The SQL service is returned
// separately so callers can run migrations against it.
func openStore(ctx context.Context, cfg config.Config) (recordstore.Service, *sqlstore.Service, error) {
	rc := cfg.Store.Recordstore()
	if err := rc.Validate(); err != nil {
		return nil, nil, err
	}

	if rc.IsSQL() {
		svc, err := sqlstore.OpenWithName(ctx, rc.Type, &rc)
		if err != nil {
			return nil, nil, err
		}
		return svc, svc, nil
	}

	svc, err := kvstore.OpenWithName(ctx, rc.Type, &rc)
	if err != nil {
		return nil, nil, err
	}
	return svc, nil, nil
}

// runMigrations applies the configured migration set, or the built-in
// catalog migrations for the service's dialect.
func runMigrations(ctx context.Context, cfg config.Config, svc *sqlstore.Service) error {
	var (
		fsys fs.FS
		dir  string
	)
	if cfg.Migrations.Dir != "" {
		fsys, dir = os.DirFS(cfg.Migrations.Dir), "."
	} else {
		var err error
		fsys, dir, err = catalog.Migrations(svc.Adapter().Dialect())
		if err != nil {
			return err
		}
	}

	version, err := sqlstore.Migrate(ctx, svc, fsys, dir)
	if err != nil {
		return err
	}
	log.Info().Int64("version", version).Str("dialect", svc.Adapter().Dialect()).Msg("Migrations applied")
	return nil
}
