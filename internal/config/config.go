// Package config loads the application configuration from a YAML file and
// the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"recordstore"
	"recordstore/internal/catalog"
)

// Config is the application configuration.
type Config struct {
	Server     ServerConfig         `yaml:"server"`
	Store      StoreConfig          `yaml:"store"`
	Log        LogConfig            `yaml:"log"`
	Migrations MigrationsConfig     `yaml:"migrations"`
	Entities   []recordstore.Schema `yaml:"entities"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	BasePath        string        `yaml:"base_path"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Tracing         bool          `yaml:"tracing"`
	// TracingEndpoint is the OTLP/HTTP collector URL. Empty falls back to
	// the OTEL_EXPORTER_OTLP_* environment.
	TracingEndpoint string `yaml:"tracing_endpoint"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Type           string            `yaml:"type"`
	Host           string            `yaml:"host"`
	Port           int               `yaml:"port"`
	Username       string            `yaml:"username"`
	Password       string            `yaml:"password"`
	Database       string            `yaml:"database"`
	File           string            `yaml:"file"`
	SSLMode        string            `yaml:"ssl_mode"`
	URL            string            `yaml:"url"`
	KeyPrefix      string            `yaml:"key_prefix"`
	MaxOpenConns   int               `yaml:"max_open_conns"`
	MaxIdleConns   int               `yaml:"max_idle_conns"`
	ConnectTimeout time.Duration     `yaml:"connect_timeout"`
	QueryTimeout   time.Duration     `yaml:"query_timeout"`
	ConnectRetries int               `yaml:"connect_retries"`
	RetryDelay     time.Duration     `yaml:"retry_delay"`
	Tracing        bool              `yaml:"tracing"`
	Options        map[string]string `yaml:"options"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// MigrationsConfig controls schema migrations for SQL stores. An empty Dir
// selects the migrations embedded for the built-in catalog.
type MigrationsConfig struct {
	Auto bool   `yaml:"auto"`
	Dir  string `yaml:"dir"`
}

// Default returns a configuration serving the built-in catalog from an
// in-memory store.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			BasePath:        "/api",
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Type:         recordstore.TypeMemory,
			Host:         "localhost",
			MaxOpenConns: 25,
			MaxIdleConns: 10,
			RetryDelay:   2 * time.Second,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, then applies the
// environment. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := Decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	ApplyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Decode unmarshals YAML into cfg, rejecting unknown keys.
func Decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks the configuration as a whole.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return recordstore.NewConfigErrorForField("server.addr", c.Server.Addr, "listen address is required")
	}
	if c.Server.TracingEndpoint != "" {
		u, err := url.Parse(c.Server.TracingEndpoint)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return recordstore.NewConfigErrorForField("server.tracing_endpoint", c.Server.TracingEndpoint, "expected an http(s) URL")
		}
	}
	switch c.Log.Level {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return recordstore.NewConfigErrorForField("log.level", c.Log.Level, "unknown log level")
	}
	if err := c.Store.Recordstore().Validate(); err != nil {
		return err
	}
	for _, s := range c.Entities {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	if len(c.Entities) > 0 && c.Migrations.Auto && c.Migrations.Dir == "" && c.Store.IsSQL() {
		return recordstore.NewConfigErrorForField("migrations.dir", "", "custom entities need their own migrations")
	}
	return nil
}

// Schemas returns the configured entities, or the built-in catalog when none
// are configured.
func (c Config) Schemas() []recordstore.Schema {
	if len(c.Entities) == 0 {
		return catalog.Schemas()
	}
	return c.Entities
}

// IsSQL reports whether the store is a SQL database.
func (s StoreConfig) IsSQL() bool {
	return s.Recordstore().IsSQL()
}

// Recordstore converts the store section to the library configuration.
func (s StoreConfig) Recordstore() recordstore.Config {
	opts := []recordstore.Option{
		recordstore.WithType(s.Type),
		recordstore.WithConnection(s.Host, s.Port, s.Username, s.Password, s.Database),
		recordstore.WithFilePath(s.File),
		recordstore.WithTracing(s.Tracing),
		recordstore.WithRetry(s.ConnectRetries, s.RetryDelay),
		recordstore.WithKeyPrefix(s.KeyPrefix),
	}
	if s.SSLMode != "" {
		opts = append(opts, recordstore.WithSSL(s.SSLMode))
	}
	if s.MaxOpenConns > 0 || s.MaxIdleConns > 0 {
		opts = append(opts, func(c *recordstore.Config) {
			c.MaxOpenConns = s.MaxOpenConns
			c.MaxIdleConns = s.MaxIdleConns
		})
	}
	if s.ConnectTimeout > 0 || s.QueryTimeout > 0 {
		def := recordstore.DefaultConfig()
		opts = append(opts, recordstore.WithTimeouts(
			positive(s.ConnectTimeout, def.ConnectTimeout),
			positive(s.QueryTimeout, def.QueryTimeout),
		))
	}
	if s.Type == recordstore.TypeSQLite {
		opts = append(opts, recordstore.WithMaxOpenConns(1))
	}
	if s.Type == recordstore.TypeRedis && s.Options["database"] == "" {
		opts = append(opts, recordstore.WithOption("database", "0"))
	}
	if s.URL != "" {
		opts = append(opts, recordstore.WithOption("url", s.URL))
	}
	for k, v := range s.Options {
		opts = append(opts, recordstore.WithOption(k, v))
	}
	return recordstore.NewConfig(opts...)
}

func positive(v, def time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return def
}
