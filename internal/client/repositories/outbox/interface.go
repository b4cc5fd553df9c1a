// Package outbox queues local changes until a sync confirms them.
//
// Subscribe, Unsubscribe and RecordAction only enqueue; Client.Sync reads the
// pending entries of a device, runs the sync engines and retires the entries
// after the engines succeeded. Entries are never removed optimistically.
package outbox

import (
	"context"

	"github.com/dmitrijs2005/gposync/internal/client/models"
)

type Repository interface {
	// Enqueue stores e, assigning an ID and CreatedAt when they are empty.
	Enqueue(ctx context.Context, account string, e models.OutboxEntry) (models.OutboxEntry, error)
	// Pending returns the device's entries in queue order.
	Pending(ctx context.Context, account, device string) ([]models.OutboxEntry, error)
	// Retire removes entries by ID. Unknown IDs are ignored.
	Retire(ctx context.Context, account string, ids []string) error
}
