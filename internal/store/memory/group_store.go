package memory

import (
	"sync"
	"time"

	"vigil/internal/domain"
)

// GroupStore is an in-memory implementation of store.GroupStore.
type GroupStore struct {
	mu     sync.RWMutex
	groups map[domain.CorrelationKey]*domain.CorrelationGroup
}

// NewGroupStore creates a new in-memory group store.
func NewGroupStore() *GroupStore {
	return &GroupStore{
		groups: make(map[domain.CorrelationKey]*domain.CorrelationGroup),
	}
}

// Attach joins the alert to its key's open group or starts a new one.
// A group that has aged out of the window is replaced.
func (s *GroupStore) Attach(alert *domain.Alert, window time.Duration, at time.Time) (*domain.CorrelationGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups[alert.CorrelationKey]; ok && g.OpenAt(at, window) {
		g.Add(alert)
		g.LastUpdated = at
		return g.Clone(), true
	}

	g := domain.NewCorrelationGroup(alert)
	g.CreatedAt = at
	g.LastUpdated = at
	s.groups[alert.CorrelationKey] = g
	return g.Clone(), false
}

// Get returns a copy of the group for key.
func (s *GroupStore) Get(key domain.CorrelationKey) (*domain.CorrelationGroup, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[key]
	if !ok {
		return nil, false
	}
	return g.Clone(), true
}

// RemoveStale deletes groups last updated before cutoff.
func (s *GroupStore) RemoveStale(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, g := range s.groups {
		if g.LastUpdated.Before(cutoff) {
			delete(s.groups, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of groups.
func (s *GroupStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.groups)
}
