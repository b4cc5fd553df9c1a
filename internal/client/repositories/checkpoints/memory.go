package checkpoints

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gposync/internal/client/models"
	"github.com/dmitrijs2005/gposync/internal/common"
)

type MemoryRepository struct {
	mu   sync.Mutex
	data map[models.CheckpointKey]models.Checkpoint
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{data: make(map[models.CheckpointKey]models.Checkpoint)}
}

func (r *MemoryRepository) Get(_ context.Context, key models.CheckpointKey) (*models.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp, ok := r.data[key]
	if !ok {
		return nil, nil
	}
	return &cp, nil
}

func (r *MemoryRepository) Set(_ context.Context, key models.CheckpointKey, cp models.Checkpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[key] = cp
	return nil
}

func (r *MemoryRepository) CompareAndSet(_ context.Context, key models.CheckpointKey, expected *models.Checkpoint, next models.Checkpoint) error {
	if err := checkForward(expected, next); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.data[key]
	switch {
	case expected == nil && ok:
		return common.ErrCheckpointConflict
	case expected != nil && (!ok || cur.Cursor != expected.Cursor):
		return common.ErrCheckpointConflict
	}
	r.data[key] = next
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, key models.CheckpointKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, key)
	return nil
}

func (r *MemoryRepository) List(_ context.Context, account string) (map[models.CheckpointKey]models.Checkpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[models.CheckpointKey]models.Checkpoint)
	for k, v := range r.data {
		if k.Account == account {
			out[k] = v
		}
	}
	return out, nil
}
