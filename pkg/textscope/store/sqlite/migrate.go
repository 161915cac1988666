package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// migrate applies all pending migrations. The statements use IF NOT EXISTS,
// so a corpus created by an older analyzer is adopted in place.
func migrate(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the current schema version of the corpus.
func (s *SQLiteStore) MigrationVersion(ctx context.Context) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite"); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, s.db)
}

// validateSchema checks that the tables the queries depend on have the
// expected columns.
func validateSchema(ctx context.Context, db *sql.DB) error {
	probes := []string{
		`SELECT id, content FROM texts LIMIT 0`,
		`SELECT id, text_id, token, position FROM tokens LIMIT 0`,
		`SELECT text_id, token_count, avg_len, max_len, min_len FROM stats LIMIT 0`,
	}
	for _, q := range probes {
		rows, err := db.QueryContext(ctx, q)
		if err != nil {
			return fmt.Errorf("malformed schema: %w", err)
		}
		rows.Close()
	}
	return nil
}
