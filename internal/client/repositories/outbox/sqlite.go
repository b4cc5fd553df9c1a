package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/dbx"
)

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

func (r *SQLiteRepository) Enqueue(ctx context.Context, account string, e models.OutboxEntry) (models.OutboxEntry, error) {
	e = prepare(e)
	query := `INSERT INTO outbox (id, account, device, kind, url, a_device, podcast, episode, action, timestamp, started, position, total, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var a models.EpisodeAction
	if e.Action != nil {
		a = *e.Action
	}
	var ts int64
	if !a.Timestamp.IsZero() {
		ts = a.Timestamp.Unix()
	}
	_, err := r.db.ExecContext(ctx, query, e.ID, account, e.Device, string(e.Kind), e.URL,
		a.Device, a.Podcast, a.Episode, string(a.Action), ts, nullInt(a.Started), nullInt(a.Position), nullInt(a.Total),
		e.CreatedAt.Unix())
	if err != nil {
		return models.OutboxEntry{}, fmt.Errorf("failed to enqueue outbox entry[%s]: %w", e.ID, err)
	}
	return e, nil
}

func (r *SQLiteRepository) Pending(ctx context.Context, account, device string) ([]models.OutboxEntry, error) {
	query := `SELECT id, kind, url, a_device, podcast, episode, action, timestamp, started, position, total, created_at
		FROM outbox WHERE account = ? AND device = ? ORDER BY seq`

	rows, err := r.db.QueryContext(ctx, query, account, device)
	if err != nil {
		return nil, fmt.Errorf("failed to select outbox[%s/%s]: %w", account, device, err)
	}
	defer rows.Close()

	var result []models.OutboxEntry
	for rows.Next() {
		var e models.OutboxEntry
		var kind, aDevice, podcast, episode, action string
		var ts, created int64
		var started, position, total sql.NullInt64
		if err := rows.Scan(&e.ID, &kind, &e.URL, &aDevice, &podcast, &episode, &action, &ts, &started, &position, &total, &created); err != nil {
			return nil, err
		}
		e.Device = device
		e.Kind = models.OutboxKind(kind)
		e.CreatedAt = time.Unix(created, 0).UTC()
		if e.Kind == models.OutboxAction {
			e.Action = &models.EpisodeAction{
				Podcast:   podcast,
				Episode:   episode,
				Device:    aDevice,
				Action:    models.ActionKind(action),
				Timestamp: time.Unix(ts, 0).UTC(),
				Started:   intPtr(started),
				Position:  intPtr(position),
				Total:     intPtr(total),
			}
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Retire(ctx context.Context, account string, ids []string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM outbox WHERE account = ? AND id = ?`, account, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to retire outbox entries: %w", err)
	}
	return nil
}
