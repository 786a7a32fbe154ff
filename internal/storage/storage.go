// Package storage persists province tables, exports the corpus and keeps the
// history of load runs.
package storage

import (
	"context"

	"github.com/IshaanNene/pressgoat/internal/types"
)

// TableStore reads and overwrites one cached table per province.
type TableStore interface {
	// Read returns the cached table for a province. A missing or unreadable
	// cache is an error.
	Read(province string) (types.Table, error)

	// Write replaces the cached table for a province.
	Write(province string, t types.Table) error
}

// Sink is the interface for corpus export backends.
type Sink interface {
	// Store persists a table.
	Store(ctx context.Context, t types.Table) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the backend identifier.
	Name() string
}
