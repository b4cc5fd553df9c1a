package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gposync/internal/client/models"
)

type queued struct {
	account string
	entry   models.OutboxEntry
}

type MemoryRepository struct {
	mu      sync.Mutex
	entries []queued
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Enqueue(_ context.Context, account string, e models.OutboxEntry) (models.OutboxEntry, error) {
	e = prepare(e)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, queued{account: account, entry: e})
	return e, nil
}

func (r *MemoryRepository) Pending(_ context.Context, account, device string) ([]models.OutboxEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.OutboxEntry
	for _, q := range r.entries {
		if q.account == account && q.entry.Device == device {
			out = append(out, q.entry)
		}
	}
	return out, nil
}

func (r *MemoryRepository) Retire(_ context.Context, account string, ids []string) error {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	for _, q := range r.entries {
		if _, ok := drop[q.entry.ID]; ok && q.account == account {
			continue
		}
		kept = append(kept, q)
	}
	r.entries = kept
	return nil
}

func prepare(e models.OutboxEntry) models.OutboxEntry {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.CreatedAt = e.CreatedAt.UTC().Truncate(time.Second)
	if e.Action != nil {
		a := e.Action.Normalize()
		e.Action = &a
	}
	return e
}
