package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tabetl/internal/persist"
	"tabetl/internal/storage"
)

func init() {
	storage.Register("postgres", New)
}

/*
Repo implements storage.Repository for Postgres.

Tables may be schema-qualified ("staging.items"); the schema is created on
demand. Rows are loaded with the COPY protocol.
*/
type Repo struct {
	pool *pgxpool.Pool
}

// New creates a pool for cfg.DSN and checks connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	schemaSQL, baseSQL, err := buildCreateSQL(spec)
	if err != nil {
		return err
	}
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", spec.Name, err)
		}
	}
	if _, err := r.pool.Exec(ctx, baseSQL); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows streams rows through CopyFrom.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := r.pool.CopyFrom(ctx, identifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, fmt.Errorf("copy into %s: %w", table, err)
	}
	return n, nil
}

func identifier(name string) pgx.Identifier {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{table}
	}
	return pgx.Identifier{schema, table}
}

func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func pgType(k persist.ColumnKind) string {
	switch k {
	case persist.ColumnBool:
		return "BOOLEAN"
	case persist.ColumnInt:
		return "BIGINT"
	case persist.ColumnFloat:
		return "DOUBLE PRECISION"
	default:
		return "TEXT"
	}
}

// buildCreateSQL returns the optional CREATE SCHEMA and the CREATE TABLE
// statement for t.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, baseSQL string, err error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", "", fmt.Errorf("table name is empty")
	}
	if len(t.Columns) == 0 {
		return "", "", fmt.Errorf("%s has no columns", t.Name)
	}

	schema, _ := splitQualifiedName(t.Name)
	if schema != "" {
		schemaSQL = fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", pgx.Identifier{schema}.Sanitize())
	}

	defs := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), pgType(c.Kind)))
	}
	baseSQL = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", identifier(t.Name).Sanitize(), strings.Join(defs, ",\n  "))
	return schemaSQL, baseSQL, nil
}
