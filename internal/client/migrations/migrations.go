// Package migrations embeds the goose schema migrations of the local SQLite
// state database and of the PostgreSQL checkpoint store.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql postgres/*.sql
var Migrations embed.FS

const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
)

// goose keeps its base FS and dialect in package globals.
var mu sync.Mutex

// Up applies every pending migration for dialect.
func Up(ctx context.Context, db *sql.DB, dialect string) error {
	var dir string
	switch dialect {
	case DialectSQLite:
		dir = "sqlite"
	case DialectPostgres:
		dir = "postgres"
	default:
		return fmt.Errorf("unsupported migration dialect %q", dialect)
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(Migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("failed to run %s migrations: %w", dialect, err)
	}
	return nil
}
