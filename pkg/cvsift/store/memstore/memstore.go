// Package memstore is an in-memory store.Store for tests and ephemeral runs.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/cognicore/cvsift/pkg/cvsift/internalerr"
	"github.com/cognicore/cvsift/pkg/cvsift/store"
)

type memStore struct {
	mu      sync.RWMutex
	closed  bool
	runs    map[string]store.Run
	results map[string][]store.BlockResult
}

// New creates an empty in-memory run store.
func New() store.Store {
	return &memStore{
		runs:    make(map[string]store.Run),
		results: make(map[string][]store.BlockResult),
	}
}

func (m *memStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memStore) SaveRun(ctx context.Context, run store.Run, results []store.BlockResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return internalerr.ErrStoreClosed
	}
	if run.ID == "" {
		return internalerr.ErrInvalidInput
	}

	m.runs[run.ID] = run
	copied := make([]store.BlockResult, len(results))
	copy(copied, results)
	m.results[run.ID] = copied
	return nil
}

func (m *memStore) GetRun(ctx context.Context, id string) (store.Run, []store.BlockResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return store.Run{}, nil, internalerr.ErrStoreClosed
	}

	run, ok := m.runs[id]
	if !ok {
		return store.Run{}, nil, internalerr.ErrNotFound
	}
	results := make([]store.BlockResult, len(m.results[id]))
	copy(results, m.results[id])
	return run, results, nil
}

func (m *memStore) ListRuns(ctx context.Context, limit int) ([]store.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, internalerr.ErrStoreClosed
	}
	if limit <= 0 {
		limit = 50
	}

	runs := make([]store.Run, 0, len(m.runs))
	for _, r := range m.runs {
		runs = append(runs, r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
