package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/baechuer/real-time-ressys/services/identity-service/internal/logger"
)

const (
	dbMaxOpenConns    = 20
	dbMaxIdleConns    = 10
	dbConnMaxIdleTime = 5 * time.Minute
	dbConnMaxLifetime = time.Hour
	dbPingTimeout     = 3 * time.Second
)

// NewDB opens a database/sql pool over the pgx driver and pings it once.
func NewDB(dsn string, debug bool) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty DB DSN")
	}

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse DB DSN: %w", err)
	}
	if connCfg.RuntimeParams == nil {
		connCfg.RuntimeParams = map[string]string{}
	}
	if connCfg.RuntimeParams["application_name"] == "" {
		connCfg.RuntimeParams["application_name"] = "identity-service"
	}

	db := stdlib.OpenDB(*connCfg)
	db.SetMaxOpenConns(dbMaxOpenConns)
	db.SetMaxIdleConns(dbMaxIdleConns)
	db.SetConnMaxIdleTime(dbConnMaxIdleTime)
	db.SetConnMaxLifetime(dbConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	if debug {
		var who, dbname, ver string
		_ = db.QueryRowContext(ctx, "SELECT current_user, current_database(), current_setting('server_version')").
			Scan(&who, &dbname, &ver)

		logger.Logger.Debug().
			Str("user", who).
			Str("db", dbname).
			Str("version", ver).
			Str("host", connCfg.Host).
			Msg("db connected")
	}

	return db, nil
}
