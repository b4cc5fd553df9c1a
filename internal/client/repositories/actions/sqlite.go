package actions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/dbx"
)

// SQLiteRepository persists the log in the episode_actions table. The unique
// index over the dedupe key turns duplicate inserts into no-ops.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return models.IntPtr(int(v.Int64))
}

func (r *SQLiteRepository) Append(ctx context.Context, account string, actions []models.EpisodeAction) ([]models.EpisodeAction, error) {
	query := `INSERT INTO episode_actions (account, device, podcast, episode, action, timestamp, started, position, total)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account, device, podcast, episode, timestamp, action) DO NOTHING`

	var inserted []models.EpisodeAction
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		inserted = inserted[:0]
		for _, a := range actions {
			a = a.Normalize()
			res, err := tx.ExecContext(ctx, query, account, a.Device, a.Podcast, a.Episode, string(a.Action),
				a.Timestamp.Unix(), nullInt(a.Started), nullInt(a.Position), nullInt(a.Total))
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to get rows affected: %w", err)
			}
			if n == 1 {
				inserted = append(inserted, a)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append episode actions[%s]: %w", account, err)
	}
	return inserted, nil
}

func (r *SQLiteRepository) Known(ctx context.Context, account string, keys []models.ActionKey) (map[models.ActionKey]bool, error) {
	query := `SELECT 1 FROM episode_actions
		WHERE account = ? AND device = ? AND podcast = ? AND episode = ? AND timestamp = ? AND action = ?`

	out := make(map[models.ActionKey]bool)
	for _, k := range keys {
		var one int
		err := r.db.QueryRowContext(ctx, query, account, k.Device, k.Podcast, k.Episode, k.Timestamp, string(k.Action)).Scan(&one)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return nil, fmt.Errorf("failed to look up episode action[%s]: %w", k, err)
		default:
			out[k] = true
		}
	}
	return out, nil
}

func (r *SQLiteRepository) Remove(ctx context.Context, account string, keys []models.ActionKey) error {
	query := `DELETE FROM episode_actions
		WHERE account = ? AND device = ? AND podcast = ? AND episode = ? AND timestamp = ? AND action = ?`

	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, query, account, k.Device, k.Podcast, k.Episode, k.Timestamp, string(k.Action)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to remove episode actions[%s]: %w", account, err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context, account string, filter models.ActionFilter) ([]models.EpisodeAction, error) {
	var (
		where = []string{"account = ?"}
		args  = []any{account}
	)
	if filter.Podcast != "" {
		where = append(where, "podcast = ?")
		args = append(args, filter.Podcast)
	}
	if filter.Device != "" {
		where = append(where, "device = ?")
		args = append(args, filter.Device)
	}
	if filter.Episode != "" {
		where = append(where, "episode = ?")
		args = append(args, filter.Episode)
	}
	query := `SELECT device, podcast, episode, action, timestamp, started, position, total
		FROM episode_actions WHERE ` + strings.Join(where, " AND ") + ` ORDER BY timestamp, seq`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select episode actions[%s]: %w", account, err)
	}
	defer rows.Close()

	var result []models.EpisodeAction
	for rows.Next() {
		var a models.EpisodeAction
		var kind string
		var ts int64
		var started, position, total sql.NullInt64
		if err := rows.Scan(&a.Device, &a.Podcast, &a.Episode, &kind, &ts, &started, &position, &total); err != nil {
			return nil, err
		}
		a.Action = models.ActionKind(kind)
		a.Timestamp = time.Unix(ts, 0).UTC()
		a.Started, a.Position, a.Total = intPtr(started), intPtr(position), intPtr(total)
		if filter.Match(a) {
			result = append(result, a)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if filter.Aggregated {
		result = aggregate(result)
	}
	return result, nil
}
