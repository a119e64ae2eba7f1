package sqlstore

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog/log"

	"recordstore"
)

// goose keeps its base filesystem and dialect in package globals.
var migrateMu sync.Mutex

// gooseLogger routes goose output through zerolog.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...any) {
	log.Info().Str("component", "migrate").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (gooseLogger) Fatalf(format string, v ...any) {
	log.Error().Str("component", "migrate").Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Migrate applies the goose migrations found in dir of fsys, using the SQL
// dialect of the service's adapter. It returns the schema version reached.
func Migrate(ctx context.Context, service *Service, fsys fs.FS, dir string) (int64, error) {
	if service.DB() == nil {
		return 0, recordstore.ErrConnectionClosed
	}

	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{})

	if err := goose.SetDialect(service.Adapter().Dialect()); err != nil {
		return 0, recordstore.WrapDriverError(err, service.Adapter().Name(), "set migration dialect")
	}
	if err := goose.UpContext(ctx, service.DB(), dir); err != nil {
		return 0, fmt.Errorf("migrate %s: %w", dir, err)
	}

	version, err := goose.GetDBVersionContext(ctx, service.DB())
	if err != nil {
		return 0, fmt.Errorf("read migration version: %w", err)
	}
	return version, nil
}
