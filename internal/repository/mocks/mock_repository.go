// Package mocks provides in-memory store implementations for unit tests.
package mocks

import (
	"context"
	"sort"
	"sync"

	"promptvault-backend/internal/domain"
	"promptvault-backend/internal/repository"
)

// MockStore is an in-memory implementation of the fragment, relationship,
// usage-event, and embedding stores. Safe for concurrent use.
type MockStore struct {
	mu            sync.RWMutex
	fragments     map[string]map[string]domain.Fragment // ownerID -> fragmentID -> fragment
	relationships map[string][]domain.Relationship      // sourceID -> edges
	events        map[string][]domain.UsageEvent        // ownerID -> events
	vectors       map[string]map[string][]float32       // ownerID -> fragmentID -> vector
	errors        map[string]error                      // method name -> forced error
}

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		fragments:     make(map[string]map[string]domain.Fragment),
		relationships: make(map[string][]domain.Relationship),
		events:        make(map[string][]domain.UsageEvent),
		vectors:       make(map[string]map[string][]float32),
		errors:        make(map[string]error),
	}
}

// SetError forces the named method to return err on its next calls.
func (m *MockStore) SetError(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[method] = err
}

// AddFragment seeds a fragment.
func (m *MockStore) AddFragment(f domain.Fragment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fragments[f.OwnerID] == nil {
		m.fragments[f.OwnerID] = make(map[string]domain.Fragment)
	}
	m.fragments[f.OwnerID][f.ID] = f
}

// AddRelationship seeds a relationship edge.
func (m *MockStore) AddRelationship(r domain.Relationship) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.relationships[r.SourceID] = append(m.relationships[r.SourceID], r)
}

// AddVector seeds an embedding vector for a fragment.
func (m *MockStore) AddVector(ownerID, fragmentID string, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.vectors[ownerID] == nil {
		m.vectors[ownerID] = make(map[string][]float32)
	}
	m.vectors[ownerID][fragmentID] = vector
}

func (m *MockStore) forcedError(method string) error {
	if err, ok := m.errors[method]; ok {
		return err
	}
	return nil
}

// FindFragmentByID implements repository.FragmentReader.
func (m *MockStore) FindFragmentByID(ctx context.Context, ownerID, fragmentID string) (*domain.Fragment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.forcedError("FindFragmentByID"); err != nil {
		return nil, err
	}

	f, ok := m.fragments[ownerID][fragmentID]
	if !ok {
		return nil, repository.ErrFragmentNotFound
	}
	return &f, nil
}

// FindFragments implements repository.FragmentReader.
func (m *MockStore) FindFragments(ctx context.Context, query repository.FragmentQuery) ([]domain.Fragment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.forcedError("FindFragments"); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(query.IDs))
	for _, id := range query.IDs {
		wanted[id] = true
	}

	result := make([]domain.Fragment, 0)
	for _, f := range m.fragments[query.OwnerID] {
		if len(wanted) > 0 && !wanted[f.ID] {
			continue
		}
		if query.Type != "" && f.Type != query.Type {
			continue
		}
		result = append(result, f)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if query.Limit > 0 && len(result) > query.Limit {
		result = result[:query.Limit]
	}
	return result, nil
}

// FindRelationships implements repository.RelationshipReader.
func (m *MockStore) FindRelationships(ctx context.Context, ownerID, fragmentID string) ([]domain.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.forcedError("FindRelationships"); err != nil {
		return nil, err
	}
	return append([]domain.Relationship{}, m.relationships[fragmentID]...), nil
}

// FindRelationshipsForSet implements repository.RelationshipReader.
func (m *MockStore) FindRelationshipsForSet(ctx context.Context, ownerID string, fragmentIDs []string) (map[string][]domain.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.forcedError("FindRelationshipsForSet"); err != nil {
		return nil, err
	}

	result := make(map[string][]domain.Relationship, len(fragmentIDs))
	for _, id := range fragmentIDs {
		result[id] = append([]domain.Relationship{}, m.relationships[id]...)
	}
	return result, nil
}

// AppendEvent implements repository.UsageEventStore.
func (m *MockStore) AppendEvent(ctx context.Context, event domain.UsageEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.forcedError("AppendEvent"); err != nil {
		return err
	}
	m.events[event.UserID] = append(m.events[event.UserID], event)
	return nil
}

// FindEvents implements repository.UsageEventStore.
func (m *MockStore) FindEvents(ctx context.Context, query repository.EventQuery) ([]domain.UsageEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.forcedError("FindEvents"); err != nil {
		return nil, err
	}

	result := make([]domain.UsageEvent, 0)
	for _, e := range m.events[query.OwnerID] {
		if e.Timestamp.Before(query.Since) {
			continue
		}
		if !query.Until.IsZero() && e.Timestamp.After(query.Until) {
			continue
		}
		result = append(result, e)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Timestamp.Before(result[j].Timestamp) })
	return result, nil
}

// FindVectors implements repository.EmbeddingReader.
func (m *MockStore) FindVectors(ctx context.Context, ownerID string, fragmentIDs []string) ([]domain.EmbeddingVector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.forcedError("FindVectors"); err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(fragmentIDs))
	for _, id := range fragmentIDs {
		wanted[id] = true
	}

	result := make([]domain.EmbeddingVector, 0)
	for id, vec := range m.vectors[ownerID] {
		if len(wanted) > 0 && !wanted[id] {
			continue
		}
		result = append(result, domain.EmbeddingVector{
			FragmentID: id,
			OwnerID:    ownerID,
			Vector:     vec,
		})
	}

	sort.Slice(result, func(i, j int) bool { return result[i].FragmentID < result[j].FragmentID })
	return result, nil
}

// PublishUsage implements repository.UsageEventPublisher as a no-op.
func (m *MockStore) PublishUsage(ctx context.Context, event domain.UsageEvent) error {
	return m.forcedError("PublishUsage")
}
