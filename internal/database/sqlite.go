package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // driver: sqlite
)

// NewSQLiteDB opens a local SQLite database through the pure-Go modernc driver.
func NewSQLiteDB(ctx context.Context, dsn string, log zerolog.Logger) (*sql.DB, error) {
	if dsn == "" {
		dsn = "file:proctor.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := waitReady(ctx, "sqlite", db.PingContext, log); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info().Str("dsn", dsn).Msg("SQLite opened")
	return db, nil
}
