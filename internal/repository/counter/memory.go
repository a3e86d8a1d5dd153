package counter

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu       sync.Mutex
	counters map[string]int64
}

func NewMemoryRepository() *memoryRepository {
	return &memoryRepository{
		counters: make(map[string]int64),
	}
}

func (r *memoryRepository) Inc(_ context.Context, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[name]++

	return r.counters[name], nil
}

func (r *memoryRepository) Counters(_ context.Context) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64, len(r.counters))
	for name, c := range r.counters {
		out[name] = c
	}

	return out, nil
}

func (r *memoryRepository) Reset(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.counters, name)

	return nil
}

func (r *memoryRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters = make(map[string]int64)

	return nil
}

func (r *memoryRepository) Close() error {
	return nil
}
