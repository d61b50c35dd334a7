// Package memory provides in-memory implementations of store interfaces.
// The alert and group stores are the engine's live state in every mode;
// the rule store and archive stand in for Redis and PostgreSQL in
// development and tests.
package memory

import (
	"sort"
	"sync"
	"time"

	"vigil/internal/domain"
)

// AlertStore is an in-memory implementation of store.AlertStore.
// Alerts are indexed by id and by correlation key.
type AlertStore struct {
	mu sync.RWMutex

	// alerts stores all alerts by id
	alerts map[string]*domain.Alert

	// byKey lists alert ids per correlation key in insertion order
	byKey map[domain.CorrelationKey][]string
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		alerts: make(map[string]*domain.Alert),
		byKey:  make(map[domain.CorrelationKey][]string),
	}
}

// InsertOrDeduplicate folds the candidate into an earlier alert with the
// same key, or inserts it. A live candidate folds into the newest open alert
// created within window. A suppressed candidate folds into the newest
// suppressed alert that last fired within window, so a key that keeps
// firing under a suppression rule holds a single alert.
func (s *AlertStore) InsertOrDeduplicate(candidate *domain.Alert, window time.Duration) (*domain.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.absorberLocked(candidate, window); existing != nil {
		existing.IncrementFireCount(candidate.CreatedAt)
		return existing.Clone(), true
	}

	s.insertLocked(candidate.Clone())
	return candidate.Clone(), false
}

// absorberLocked returns the most recent alert for the candidate's key that
// a repeat should fold into, or nil.
func (s *AlertStore) absorberLocked(candidate *domain.Alert, window time.Duration) *domain.Alert {
	at := candidate.CreatedAt
	suppressed := candidate.State == domain.StateSuppressed

	ids := s.byKey[candidate.CorrelationKey]
	for i := len(ids) - 1; i >= 0; i-- {
		a := s.alerts[ids[i]]
		if a == nil {
			continue
		}
		switch {
		case suppressed && a.State == domain.StateSuppressed:
			if at.Sub(a.UpdatedAt) < window {
				return a
			}
		case !suppressed && a.IsOpen():
			if at.Sub(a.CreatedAt) < window {
				return a
			}
		}
	}
	return nil
}

// Insert stores a copy of the alert.
func (s *AlertStore) Insert(alert *domain.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(alert.Clone())
}

func (s *AlertStore) insertLocked(a *domain.Alert) {
	if _, exists := s.alerts[a.ID]; !exists {
		s.byKey[a.CorrelationKey] = append(s.byKey[a.CorrelationKey], a.ID)
	}
	s.alerts[a.ID] = a
}

// Get retrieves an alert by id.
func (s *AlertStore) Get(id string) (*domain.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, false
	}
	return a.Clone(), true
}

// Update applies fn to a copy and commits it when fn succeeds, so a
// failed mutation leaves the stored alert untouched.
func (s *AlertStore) Update(id string, fn func(*domain.Alert) error) (*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.alerts[id]
	if !ok {
		return nil, domain.ErrAlertNotFound
	}

	working := existing.Clone()
	if err := fn(working); err != nil {
		return existing.Clone(), err
	}
	working.ID = existing.ID
	working.CorrelationKey = existing.CorrelationKey
	s.alerts[id] = working
	return working.Clone(), nil
}

// List returns alerts matching the filter, oldest first.
func (s *AlertStore) List(filter domain.AlertFilter) []*domain.Alert {
	s.mu.RLock()
	results := make([]*domain.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		if filter.Matches(a) {
			results = append(results, a.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].ID < results[j].ID
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})

	// Apply offset and limit
	start := filter.Offset
	if start > len(results) {
		start = len(results)
	}
	end := len(results)
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return results[start:end]
}

// RemoveWhere deletes matching alerts and returns them.
func (s *AlertStore) RemoveWhere(pred func(*domain.Alert) bool) []*domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []*domain.Alert
	for id, a := range s.alerts {
		if !pred(a) {
			continue
		}
		delete(s.alerts, id)
		s.unindexLocked(a)
		removed = append(removed, a)
	}
	return removed
}

func (s *AlertStore) unindexLocked(a *domain.Alert) {
	ids := s.byKey[a.CorrelationKey]
	for i, id := range ids {
		if id == a.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(s.byKey, a.CorrelationKey)
		return
	}
	s.byKey[a.CorrelationKey] = ids
}

// Len returns the number of stored alerts.
func (s *AlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// Clear removes all data from the store. Useful for test cleanup.
func (s *AlertStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.alerts = make(map[string]*domain.Alert)
	s.byKey = make(map[domain.CorrelationKey][]string)
}
