package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"recordstore"
	"recordstore/internal/config"
	"recordstore/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// CLI flags
var (
	configPath  string
	addr        string
	storeType   string
	database    string
	autoMigrate bool
	verbosity   int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "recordstore",
		Short: "recordstore - schema driven record API",
		Long: `recordstore serves create, read, update and delete operations over a set of
declared entities, backed by PostgreSQL, MySQL, SQLite, Redis or memory.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file (or set RECORDSTORE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&storeType, "store", "", "Store backend: postgres, mysql, sqlite, redis or memory")
	rootCmd.PersistentFlags().StringVar(&database, "db", "", "SQLite file path, or connection URL for other stores")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v debug, -vv trace)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		RunE:  serve,
	}
	serveCmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default :8080)")
	serveCmd.Flags().BoolVar(&autoMigrate, "migrate", false, "Apply SQL migrations before serving")

	rootCmd.AddCommand(
		serveCmd,
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply SQL schema migrations",
			RunE:  migrate,
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the OpenAPI document of the configured entities",
			RunE:  printSchema,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Printf("recordstore %s (commit: %s, built: %s)\n", version, commit, date)
			},
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration, applies command line overrides and
// sets up logging.
func loadConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if autoMigrate {
		cfg.Migrations.Auto = true
	}
	if storeType != "" || database != "" {
		if storeType != "" {
			cfg.Store.Type = storeType
		}
		switch {
		case database == "":
		case cfg.Store.Type == recordstore.TypeSQLite:
			cfg.Store.File = database
		default:
			cfg.Store.URL = database
		}
		if err := cfg.Validate(); err != nil {
			return config.Config{}, err
		}
	}

	cfg.Log.Level = logging.LevelFromVerbosity(verbosity, cfg.Log.Level)
	logging.Apply(cfg.Log)
	log.Debug().Str("config", path).Str("store", cfg.Store.Type).Msg("Configuration loaded")
	return cfg, nil
}
