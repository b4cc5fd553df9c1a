package checkpoints

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/common"
	"github.com/dmitrijs2005/gposync/internal/dbx"
)

// SQLiteRepository stores checkpoints in the local state database.
type SQLiteRepository struct {
	db dbx.DBTX
	q  queries
}

type queries struct {
	get, set, insertIfAbsent, swap, del, list string
}

var sqliteQueries = queries{
	get: `SELECT cursor, updated_at FROM checkpoints WHERE account = ? AND device = ? AND resource = ?`,
	set: `INSERT INTO checkpoints (account, device, resource, cursor, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account, device, resource) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at`,
	insertIfAbsent: `INSERT INTO checkpoints (account, device, resource, cursor, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(account, device, resource) DO NOTHING`,
	swap: `UPDATE checkpoints SET cursor = ?, updated_at = ?
		WHERE account = ? AND device = ? AND resource = ? AND cursor = ?`,
	del:  `DELETE FROM checkpoints WHERE account = ? AND device = ? AND resource = ?`,
	list: `SELECT device, resource, cursor, updated_at FROM checkpoints WHERE account = ?`,
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, q: sqliteQueries}
}

func (r *SQLiteRepository) Get(ctx context.Context, key models.CheckpointKey) (*models.Checkpoint, error) {
	var cursor, updated int64
	err := r.db.QueryRowContext(ctx, r.q.get, key.Account, key.Device, string(key.Resource)).Scan(&cursor, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get checkpoint[%s]: %w", key, err)
	}
	return &models.Checkpoint{Cursor: cursor, UpdatedAt: time.Unix(updated, 0).UTC()}, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, key models.CheckpointKey, cp models.Checkpoint) error {
	_, err := r.db.ExecContext(ctx, r.q.set, key.Account, key.Device, string(key.Resource), cp.Cursor, cp.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to set checkpoint[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) CompareAndSet(ctx context.Context, key models.CheckpointKey, expected *models.Checkpoint, next models.Checkpoint) error {
	if err := checkForward(expected, next); err != nil {
		return err
	}

	var res sql.Result
	var err error
	if expected == nil {
		res, err = r.db.ExecContext(ctx, r.q.insertIfAbsent,
			key.Account, key.Device, string(key.Resource), next.Cursor, next.UpdatedAt.Unix())
	} else {
		res, err = r.db.ExecContext(ctx, r.q.swap,
			next.Cursor, next.UpdatedAt.Unix(), key.Account, key.Device, string(key.Resource), expected.Cursor)
	}
	if err != nil {
		return fmt.Errorf("failed to swap checkpoint[%s]: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("checkpoint[%s]: %w", key, common.ErrCheckpointConflict)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key models.CheckpointKey) error {
	if _, err := r.db.ExecContext(ctx, r.q.del, key.Account, key.Device, string(key.Resource)); err != nil {
		return fmt.Errorf("failed to delete checkpoint[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, account string) (map[models.CheckpointKey]models.Checkpoint, error) {
	rows, err := r.db.QueryContext(ctx, r.q.list, account)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	result := make(map[models.CheckpointKey]models.Checkpoint)
	for rows.Next() {
		var device, resource string
		var cursor, updated int64
		if err := rows.Scan(&device, &resource, &cursor, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		key := models.CheckpointKey{Account: account, Device: device, Resource: models.ResourceClass(resource)}
		result[key] = models.Checkpoint{Cursor: cursor, UpdatedAt: time.Unix(updated, 0).UTC()}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate checkpoint rows: %w", err)
	}
	return result, nil
}
