package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gposync/internal/client/migrations"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/actions"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/checkpoints"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/outbox"
	"github.com/dmitrijs2005/gposync/internal/client/repositories/subscriptions"
	"github.com/dmitrijs2005/gposync/internal/filex"
	_ "modernc.org/sqlite"
)

// Repositories bundles the local state stores. DB is nil for the in-memory set.
type Repositories struct {
	DB            *sql.DB
	Checkpoints   checkpoints.Repository
	Subscriptions subscriptions.Repository
	Actions       actions.Repository
	Outbox        outbox.Repository
}

// Close releases the database handle, if any.
func (r *Repositories) Close() error {
	if r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// InitDatabase opens (or creates) the SQLite state database at dsn and
// applies the embedded migrations.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	if _, err := filex.EnsureParentDir(dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if err := migrations.Up(ctx, db, migrations.DialectSQLite); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{
		DB:            db,
		Checkpoints:   checkpoints.NewSQLiteRepository(db),
		Subscriptions: subscriptions.NewSQLiteRepository(db),
		Actions:       actions.NewSQLiteRepository(db),
		Outbox:        outbox.NewSQLiteRepository(db),
	}, nil
}

// NewMemoryRepositories returns process-local stores that vanish on exit.
func NewMemoryRepositories() *Repositories {
	return &Repositories{
		Checkpoints:   checkpoints.NewMemoryRepository(),
		Subscriptions: subscriptions.NewMemoryRepository(),
		Actions:       actions.NewMemoryRepository(),
		Outbox:        outbox.NewMemoryRepository(),
	}
}
