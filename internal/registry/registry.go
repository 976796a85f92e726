// Package registry provides persistent storage for normative frameworks.
// Two backends are available: an in-memory store for tests and ephemeral
// deployments, and a SQLite store for durable single-node deployments.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"normlex/pkg/types"
)

// ErrNotFound is returned when a framework ID is not in the store.
var ErrNotFound = errors.New("framework not found")

// ErrAlreadyExists is returned when creating a framework whose ID is taken.
var ErrAlreadyExists = errors.New("framework already exists")

// Store is the persistence contract for normative frameworks.
type Store interface {
	Create(ctx context.Context, framework *types.NormativeFramework) error
	Get(ctx context.Context, id string) (*types.NormativeFramework, error)
	Update(ctx context.Context, framework *types.NormativeFramework) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]types.NormativeFramework, error)
	Close() error
}

// MemoryStore keeps frameworks in a mutex-guarded map.
type MemoryStore struct {
	mu         sync.RWMutex
	frameworks map[string]types.NormativeFramework
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		frameworks: make(map[string]types.NormativeFramework),
	}
}

// Create stores a new framework. Fails if the ID is already taken.
func (s *MemoryStore) Create(_ context.Context, framework *types.NormativeFramework) error {
	if err := framework.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.frameworks[framework.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, framework.ID)
	}
	s.frameworks[framework.ID] = framework.Clone()
	return nil
}

// Get returns a copy of the framework with the given ID.
func (s *MemoryStore) Get(_ context.Context, id string) (*types.NormativeFramework, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	framework, exists := s.frameworks[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	clone := framework.Clone()
	return &clone, nil
}

// Update replaces a stored framework. Fails if the ID is unknown.
func (s *MemoryStore) Update(_ context.Context, framework *types.NormativeFramework) error {
	if err := framework.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.frameworks[framework.ID]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, framework.ID)
	}
	s.frameworks[framework.ID] = framework.Clone()
	return nil
}

// Delete removes a framework by ID.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.frameworks[id]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.frameworks, id)
	return nil
}

// List returns all frameworks ordered by ID.
func (s *MemoryStore) List(_ context.Context) ([]types.NormativeFramework, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	frameworks := make([]types.NormativeFramework, 0, len(s.frameworks))
	for _, framework := range s.frameworks {
		frameworks = append(frameworks, framework.Clone())
	}
	sort.Slice(frameworks, func(i, j int) bool {
		return frameworks[i].ID < frameworks[j].ID
	})
	return frameworks, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
