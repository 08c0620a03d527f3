// Package memory implements storage.Storage as an in-process map. It is the
// backend behind the "memory" storage setting and the fake injected by tests;
// nothing survives a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"paperboy/pkg/domain"
	"paperboy/pkg/storage"
)

// Store is an in-memory policy store. It preserves insertion order for
// listing, matching the durable backend's contract.
type Store struct {
	mu       sync.Mutex
	policies map[string]domain.DomainPolicy
	order    []string
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{policies: make(map[string]domain.DomainPolicy)}
}

// Policy returns the stored record for the given domain name, or nil when
// absent.
func (s *Store) Policy(_ context.Context, name string) (*domain.DomainPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.policies[name]
	if !ok {
		return nil, nil //nolint: nilnil // absence is not an error at this layer
	}

	return &p, nil
}

// StorePolicy inserts or overwrites the record for p.Domain.
func (s *Store) StorePolicy(_ context.Context, p domain.DomainPolicy) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.policies[p.Domain]; ok {
		p.CreatedAt = existing.CreatedAt
	} else {
		p.CreatedAt = now
		s.order = append(s.order, p.Domain)
	}
	p.UpdatedAt = now
	s.policies[p.Domain] = p

	return nil
}

// RemovePolicy deletes the record for the given domain name and reports
// whether it existed.
func (s *Store) RemovePolicy(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.policies[name]; !ok {
		return false, nil
	}

	delete(s.policies, name)
	for i, d := range s.order {
		if d == name {
			s.order = append(s.order[:i], s.order[i+1:]...)

			break
		}
	}

	return true, nil
}

// Policies lists all records in insertion order.
func (s *Store) Policies(_ context.Context) ([]domain.DomainPolicy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	policies := make([]domain.DomainPolicy, 0, len(s.order))
	for _, d := range s.order {
		policies = append(policies, s.policies[d])
	}

	return policies, nil
}

// Close is a no-op for the in-memory backend.
func (s *Store) Close() error { return nil }

// Ensure Store conforms to the storage interface at compile time.
var _ storage.Storage = (*Store)(nil)
