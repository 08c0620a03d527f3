// Package storage defines the persistence interfaces the application relies
// on. It abstracts the domain-policy store so different backends (sqlite on
// disk, in-memory) can provide concrete implementations, and so tests can
// inject a fake.
package storage

import (
	"context"

	"paperboy/pkg/domain"
)

// PolicyStorage defines the operations on the domain-policy store. The store
// is a flat mapping from domain name to policy record; no cross-domain
// transactions are required, and concurrent writers to the same domain follow
// last-writer-wins.
//
// Implementations must make every successful StorePolicy/RemovePolicy durable
// before returning, and must not retry on I/O failure. Retry policy, if any,
// belongs to the caller. I/O failures are reported as serrors.ErrStorage.
type PolicyStorage interface {
	// Policy returns the record for the domain name, or nil when no record
	// exists.
	Policy(ctx context.Context, name string) (*domain.DomainPolicy, error)
	// StorePolicy inserts or unconditionally overwrites the record for
	// p.Domain (last-writer-wins).
	StorePolicy(ctx context.Context, p domain.DomainPolicy) error
	// RemovePolicy deletes the record for the given domain. It reports whether
	// a record existed.
	RemovePolicy(ctx context.Context, name string) (bool, error)
	// Policies lists all records in insertion order of the underlying storage.
	// No ordering guarantee is made beyond stability for paging.
	Policies(ctx context.Context) ([]domain.DomainPolicy, error)
}

// Storage is a policy store with lifecycle management.
type Storage interface {
	PolicyStorage

	// Close releases resources held by the implementation. After Close, the
	// instance should not be used.
	Close() error
}
