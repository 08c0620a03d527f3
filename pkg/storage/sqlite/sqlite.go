// Package sqlite implements storage.Storage on top of a single sqlite
// database file using database/sql and goqu. The driver is pure Go, so the
// store needs no cgo and no external server; every write is committed to disk
// before the call returns.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3" // goqu sqlite3 dialect
	_ "github.com/ncruces/go-sqlite3/driver"           // sqlite driver (pure Go)
	_ "github.com/ncruces/go-sqlite3/embed"            // embedded sqlite wasm binary

	"paperboy/pkg/serrors"
	"paperboy/pkg/storage"
)

const policiesTable = "domain_policies"

// schema is applied on every open. The id column preserves insertion order
// for listing; domain carries the uniqueness constraint.
const schema = `
CREATE TABLE IF NOT EXISTS domain_policies (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	domain TEXT NOT NULL UNIQUE,
	whitelisted INTEGER NOT NULL DEFAULT 0,
	paywall_bypass INTEGER NOT NULL DEFAULT 0,
	usage_count INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

// pragmas tune sqlite for a small, single-process store. WAL keeps readers
// unblocked; NORMAL synchronous is durable in WAL mode.
var pragmas = []string{ //nolint: gochecknoglobals
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA foreign_keys = ON",
}

// Options configures the sqlite policy store.
type Options struct {
	// Path is the database file location. The file is created when missing.
	Path string
}

// Store implements storage.Storage backed by a sqlite file.
type Store struct {
	db      *sql.DB
	builder *goqu.Database
}

// New opens (and if needed creates) the database file, applies pragmas and
// the schema, and returns a ready Store.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		return nil, serrors.With(serrors.ErrBadRequest, "database path cannot be empty")
	}

	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, serrors.Wrap(serrors.ErrStorage, err, "could not open database")
	}

	// sqlite is single-writer; one connection avoids lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, serrors.Wrap(serrors.ErrStorage, err, "could not connect to database")
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()

			return nil, serrors.Wrap(serrors.ErrStorage, err, "could not set pragma %q", pragma)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()

		return nil, serrors.Wrap(serrors.ErrStorage, err, "could not apply schema")
	}

	return &Store{
		db:      db,
		builder: goqu.New("sqlite3", db),
	}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("could not close database: %w", err)
	}

	return nil
}

// Ensure Store conforms to the storage interface at compile time.
var _ storage.Storage = (*Store)(nil)
