package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Config selects and connects an export backend.
//
// Kind must match a registered backend ("sqlite", "postgres", "mssql"). DSN
// is passed through to the backend; its validation is backend-specific.
type Config struct {
	Kind string
	DSN  string
}

// Repository is the SQL sink the pipeline exports its final table into.
//
// Each backend implements DDL and bulk insert in its own idiom (SQLite
// multi-row INSERT, Postgres COPY, SQL Server batched INSERT).
type Repository interface {
	// EnsureTable creates the table when it does not exist yet. An existing
	// table is left as is.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows appends rows aligned with columns and returns how many were
	// written.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Close releases connections. Call it once.
	Close()
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register makes a backend available under kind. Backends call it from
// init().
//
// Panics if kind is empty, f is nil or kind is already registered.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds lists the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// New connects the backend registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage kind=%s (registered: %v)", cfg.Kind, Kinds())
	}
	return f(ctx, cfg)
}
