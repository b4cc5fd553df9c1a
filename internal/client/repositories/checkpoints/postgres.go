package checkpoints

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gposync/internal/client/migrations"
	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/common"
	"github.com/dmitrijs2005/gposync/internal/dbx"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresRepository shares checkpoints between several hosts that sync the
// same device, e.g. a fleet of stateless workers.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// OpenPostgres connects through the pgx stdlib driver and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresRepository, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := migrations.Up(ctx, db, migrations.DialectPostgres); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return NewPostgresRepository(db), db, nil
}

func (r *PostgresRepository) Get(ctx context.Context, key models.CheckpointKey) (*models.Checkpoint, error) {
	query := `SELECT cursor, updated_at FROM checkpoints
		WHERE account = $1 AND device = $2 AND resource = $3`

	cp := &models.Checkpoint{}
	err := r.db.QueryRowContext(ctx, query, key.Account, key.Device, string(key.Resource)).Scan(&cp.Cursor, &cp.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	cp.UpdatedAt = cp.UpdatedAt.UTC()
	return cp, nil
}

func (r *PostgresRepository) Set(ctx context.Context, key models.CheckpointKey, cp models.Checkpoint) error {
	query := `INSERT INTO checkpoints (account, device, resource, cursor, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account, device, resource) DO UPDATE SET cursor = EXCLUDED.cursor, updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query, key.Account, key.Device, string(key.Resource), cp.Cursor, cp.UpdatedAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CompareAndSet(ctx context.Context, key models.CheckpointKey, expected *models.Checkpoint, next models.Checkpoint) error {
	if err := checkForward(expected, next); err != nil {
		return err
	}

	var res sql.Result
	var err error
	if expected == nil {
		query := `INSERT INTO checkpoints (account, device, resource, cursor, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (account, device, resource) DO NOTHING`
		res, err = r.db.ExecContext(ctx, query, key.Account, key.Device, string(key.Resource), next.Cursor, next.UpdatedAt)
	} else {
		query := `UPDATE checkpoints SET cursor = $1, updated_at = $2
			WHERE account = $3 AND device = $4 AND resource = $5 AND cursor = $6`
		res, err = r.db.ExecContext(ctx, query, next.Cursor, next.UpdatedAt, key.Account, key.Device, string(key.Resource), expected.Cursor)
	}
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("checkpoint[%s]: %w", key, common.ErrCheckpointConflict)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, key models.CheckpointKey) error {
	query := `DELETE FROM checkpoints WHERE account = $1 AND device = $2 AND resource = $3`
	if _, err := r.db.ExecContext(ctx, query, key.Account, key.Device, string(key.Resource)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, account string) (map[models.CheckpointKey]models.Checkpoint, error) {
	query := `SELECT device, resource, cursor, updated_at FROM checkpoints WHERE account = $1`
	rows, err := r.db.QueryContext(ctx, query, account)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := make(map[models.CheckpointKey]models.Checkpoint)
	for rows.Next() {
		var device, resource string
		var cp models.Checkpoint
		if err := rows.Scan(&device, &resource, &cp.Cursor, &cp.UpdatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		cp.UpdatedAt = cp.UpdatedAt.UTC()
		result[models.CheckpointKey{Account: account, Device: device, Resource: models.ResourceClass(resource)}] = cp
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
