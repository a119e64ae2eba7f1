package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"recordstore/internal/config"
)

const (
	DefaultMaxSizeMB  = 50
	DefaultMaxBackups = 5
	DefaultMaxAgeDays = 30
	timeFormat        = "2006-01-02 15:04:05"
)

// Apply sets the global log level and output writers: the console, plus a
// rotating file when cfg.File is set.
func Apply(cfg config.LogConfig) {
	applyLevel(cfg.Level)
	log.Logger = zerolog.New(writer(cfg, os.Stdout)).With().Timestamp().Logger()
}

// LevelFromVerbosity maps repeated -v flags to a level name.
func LevelFromVerbosity(v int, fallback string) string {
	switch {
	case v >= 2:
		return "trace"
	case v == 1:
		return "debug"
	default:
		return fallback
	}
}

func applyLevel(level string) {
	switch level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func writer(cfg config.LogConfig, console io.Writer) io.Writer {
	var out io.Writer = zerolog.ConsoleWriter{Out: console, TimeFormat: timeFormat}
	if cfg.JSON {
		out = console
	}
	if cfg.File == "" {
		return out
	}

	if err := ensureLogDir(cfg.File); err != nil {
		logger := zerolog.New(out)
		logger.Error().Err(err).Str("path", cfg.File).Msg("Failed to prepare log directory; logging to console only")
		return out
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: orDefault(cfg.MaxBackups, DefaultMaxBackups),
		MaxAge:     orDefault(cfg.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   cfg.Compress,
	}
	return zerolog.MultiLevelWriter(out, fileWriter)
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
