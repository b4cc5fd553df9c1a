package subscriptions

import (
	"context"
	"sort"
	"sync"
)

type deviceKey struct{ account, device string }

type MemoryRepository struct {
	mu   sync.RWMutex
	sets map[deviceKey]map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sets: make(map[deviceKey]map[string]struct{})}
}

func (r *MemoryRepository) Get(_ context.Context, account, device string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.sets[deviceKey{account, device}]
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryRepository) Apply(_ context.Context, account, device string, add, remove []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := deviceKey{account, device}
	set, ok := r.sets[k]
	if !ok {
		set = make(map[string]struct{})
		r.sets[k] = set
	}
	for _, u := range add {
		set[u] = struct{}{}
	}
	for _, u := range remove {
		delete(set, u)
	}
	return nil
}

func (r *MemoryRepository) Replace(_ context.Context, account, device string, urls []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]struct{}, len(urls))
	for _, u := range urls {
		set[u] = struct{}{}
	}
	r.sets[deviceKey{account, device}] = set
	return nil
}
