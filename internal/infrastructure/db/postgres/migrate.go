package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrations embed.FS

var ErrMigrationFailed = errors.New("postgres: failed to apply migrations")

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{log: log.With().Str("component", "migrate").Logger()})
	goose.SetTableName("identity_schema_migrations")

	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	return nil
}

// gooseLogger routes goose's Printf-style output through zerolog.
type gooseLogger struct {
	log zerolog.Logger
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.log.Error().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
