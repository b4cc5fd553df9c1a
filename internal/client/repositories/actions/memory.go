package actions

import (
	"context"
	"sort"
	"sync"

	"github.com/dmitrijs2005/gposync/internal/client/models"
)

type MemoryRepository struct {
	mu   sync.RWMutex
	logs map[string][]models.EpisodeAction
	keys map[string]map[models.ActionKey]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		logs: make(map[string][]models.EpisodeAction),
		keys: make(map[string]map[models.ActionKey]struct{}),
	}
}

func (r *MemoryRepository) Append(_ context.Context, account string, actions []models.EpisodeAction) ([]models.EpisodeAction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	known, ok := r.keys[account]
	if !ok {
		known = make(map[models.ActionKey]struct{})
		r.keys[account] = known
	}
	var inserted []models.EpisodeAction
	for _, a := range actions {
		a = a.Normalize()
		k := a.Key()
		if _, dup := known[k]; dup {
			continue
		}
		known[k] = struct{}{}
		inserted = append(inserted, a)
	}
	log := append(r.logs[account], inserted...)
	sort.SliceStable(log, func(i, j int) bool { return log[i].Timestamp.Before(log[j].Timestamp) })
	r.logs[account] = log
	return inserted, nil
}

func (r *MemoryRepository) Known(_ context.Context, account string, keys []models.ActionKey) (map[models.ActionKey]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[models.ActionKey]bool)
	for _, k := range keys {
		if _, ok := r.keys[account][k]; ok {
			out[k] = true
		}
	}
	return out, nil
}

func (r *MemoryRepository) Remove(_ context.Context, account string, keys []models.ActionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	drop := make(map[models.ActionKey]struct{}, len(keys))
	for _, k := range keys {
		drop[k] = struct{}{}
		delete(r.keys[account], k)
	}
	kept := r.logs[account][:0]
	for _, a := range r.logs[account] {
		if _, ok := drop[a.Key()]; !ok {
			kept = append(kept, a)
		}
	}
	r.logs[account] = kept
	return nil
}

func (r *MemoryRepository) List(_ context.Context, account string, filter models.ActionFilter) ([]models.EpisodeAction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.EpisodeAction
	for _, a := range r.logs[account] {
		if filter.Match(a) {
			out = append(out, a)
		}
	}
	if filter.Aggregated {
		out = aggregate(out)
	}
	return out, nil
}
