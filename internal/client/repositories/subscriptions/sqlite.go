package subscriptions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gposync/internal/dbx"
)

// SQLiteRepository keeps the sets in the subscriptions table. Apply and
// Replace run in a transaction so a failed cycle leaves the set untouched.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, account, device string) ([]string, error) {
	query := `SELECT url FROM subscriptions WHERE account = ? AND device = ? ORDER BY url`
	rows, err := r.db.QueryContext(ctx, query, account, device)
	if err != nil {
		return nil, fmt.Errorf("failed to select subscriptions[%s/%s]: %w", account, device, err)
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		result = append(result, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *SQLiteRepository) Apply(ctx context.Context, account, device string, add, remove []string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return apply(ctx, tx, account, device, add, remove)
	})
	if err != nil {
		return fmt.Errorf("failed to apply subscription changes[%s/%s]: %w", account, device, err)
	}
	return nil
}

func (r *SQLiteRepository) Replace(ctx context.Context, account, device string, urls []string) error {
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM subscriptions WHERE account = ? AND device = ?`, account, device); err != nil {
			return err
		}
		return apply(ctx, tx, account, device, urls, nil)
	})
	if err != nil {
		return fmt.Errorf("failed to replace subscriptions[%s/%s]: %w", account, device, err)
	}
	return nil
}

func apply(ctx context.Context, tx dbx.DBTX, account, device string, add, remove []string) error {
	for _, u := range add {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO subscriptions (account, device, url) VALUES (?, ?, ?) ON CONFLICT DO NOTHING`,
			account, device, u)
		if err != nil {
			return err
		}
	}
	for _, u := range remove {
		_, err := tx.ExecContext(ctx,
			`DELETE FROM subscriptions WHERE account = ? AND device = ? AND url = ?`,
			account, device, u)
		if err != nil {
			return err
		}
	}
	return nil
}
