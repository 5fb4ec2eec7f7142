package catalog

import (
	"context"
	"sync"

	"github.com/edgeworks/nfledge/internal/domain"
)

// Store is the durable backing for the Catalog. Implementations must give
// ACID single-writer semantics for writes: two concurrent
// writers racing on the same edge_id must not corrupt state, and a failed
// write must leave the previous state intact.
type Store interface {
	Get(ctx context.Context, id string) (*domain.Edge, bool, error)
	// All returns every stored version (candidate, active,
	// monitored, retired) so register() can compute similarity against the
	// full history, not just the currently active set.
	All(ctx context.Context) ([]*domain.Edge, error)
	ListActive(ctx context.Context) ([]*domain.Edge, error)
	// Put inserts or overwrites the edge at its ID. Catalog serializes all
	// writes through a single mutex before calling Put, so Store
	// implementations do not need their own optimistic-concurrency check.
	Put(ctx context.Context, e *domain.Edge) error
}

// memoryStore is an in-process Store, useful for the discoverer's own test
// suite and for the backtester when no Postgres DSN is configured. It is not
// the production store — see internal/persistence/postgres for that.
type memoryStore struct {
	mu   sync.RWMutex
	rows map[string]*domain.Edge
}

// NewMemoryStore builds an in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{rows: make(map[string]*domain.Edge)}
}

func (s *memoryStore) Get(_ context.Context, id string) (*domain.Edge, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.rows[id]
	if !ok {
		return nil, false, nil
	}
	cp := *e
	return &cp, true, nil
}

func (s *memoryStore) All(_ context.Context) ([]*domain.Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Edge, 0, len(s.rows))
	for _, e := range s.rows {
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (s *memoryStore) ListActive(ctx context.Context) ([]*domain.Edge, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Edge, 0, len(all))
	for _, e := range all {
		if e.Status == domain.EdgeActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memoryStore) Put(_ context.Context, e *domain.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.rows[e.ID] = &cp
	return nil
}
