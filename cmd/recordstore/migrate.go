package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"recordstore/internal/httpapi"
)

func migrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Store.IsSQL() {
		return fmt.Errorf("store %q has no schema to migrate", cfg.Store.Type)
	}

	_, svc, err := openStore(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer svc.Close()

	return runMigrations(cmd.Context(), cfg, svc)
}

func printSchema(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	doc := httpapi.OpenAPI(cfg.Schemas(), httpapi.BasePath(cfg.Server.BasePath), version)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
