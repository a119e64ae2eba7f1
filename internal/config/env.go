package config

import (
	"os"
	"strconv"
	"time"
)

// Environment variable names
const (
	EnvConfig     = "RECORDSTORE_CONFIG"
	EnvAddr       = "RECORDSTORE_ADDR"
	EnvBasePath   = "RECORDSTORE_BASE_PATH"
	EnvStore      = "RECORDSTORE_STORE"
	EnvDBHost     = "RECORDSTORE_DB_HOST"
	EnvDBPort     = "RECORDSTORE_DB_PORT"
	EnvDBUser     = "RECORDSTORE_DB_USER"
	EnvDBPassword = "RECORDSTORE_DB_PASSWORD"
	EnvDBName     = "RECORDSTORE_DB_NAME"
	EnvDBFile     = "RECORDSTORE_DB_FILE"
	EnvDBURL      = "RECORDSTORE_DB_URL"
	EnvDBRetries  = "RECORDSTORE_DB_RETRIES"
	EnvMigrate    = "RECORDSTORE_MIGRATE"
	EnvLogLevel   = "RECORDSTORE_LOG_LEVEL"
	EnvLogFile    = "RECORDSTORE_LOG_FILE"
	EnvTracing    = "RECORDSTORE_TRACING"
	EnvOTLP       = "RECORDSTORE_TRACING_ENDPOINT"
	EnvTimeout    = "RECORDSTORE_REQUEST_TIMEOUT"
)

// ApplyEnv overrides cfg with the values present in the environment.
// Malformed numbers and durations are ignored.
func ApplyEnv(cfg *Config) {
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvBasePath); v != "" {
		cfg.Server.BasePath = v
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.RequestTimeout = d
		}
	}
	if v := os.Getenv(EnvStore); v != "" {
		cfg.Store.Type = v
	}
	if v := os.Getenv(EnvDBHost); v != "" {
		cfg.Store.Host = v
	}
	if v := os.Getenv(EnvDBPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Store.Port = port
		}
	}
	if v := os.Getenv(EnvDBUser); v != "" {
		cfg.Store.Username = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		cfg.Store.Password = v
	}
	if v := os.Getenv(EnvDBName); v != "" {
		cfg.Store.Database = v
	}
	if v := os.Getenv(EnvDBFile); v != "" {
		cfg.Store.File = v
	}
	if v := os.Getenv(EnvDBURL); v != "" {
		cfg.Store.URL = v
	}
	if v := os.Getenv(EnvDBRetries); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Store.ConnectRetries = n
		}
	}
	if v := os.Getenv(EnvMigrate); v != "" {
		cfg.Migrations.Auto = isTrue(v)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvLogFile); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv(EnvTracing); v != "" {
		cfg.Server.Tracing = isTrue(v)
		cfg.Store.Tracing = cfg.Server.Tracing
	}
	if v := os.Getenv(EnvOTLP); v != "" {
		cfg.Server.TracingEndpoint = v
	}
}

func isTrue(v string) bool {
	return v == "true" || v == "1" || v == "yes"
}
