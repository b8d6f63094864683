package postgres

import (
	"testing"

	"tabetl/internal/persist"
	"tabetl/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCreateSQL_SchemaQualified(t *testing.T) {
	t.Parallel()

	spec := storage.TableSpec{
		Name: "staging.items",
		Columns: []storage.ColumnSpec{
			{Name: "id", Kind: persist.ColumnInt},
			{Name: "ok", Kind: persist.ColumnBool},
			{Name: "score", Kind: persist.ColumnFloat},
			{Name: "user name", Kind: persist.ColumnString},
		},
	}

	schemaSQL, baseSQL, err := buildCreateSQL(spec)
	require.NoError(t, err)
	assert.Equal(t, `CREATE SCHEMA IF NOT EXISTS "staging";`, schemaSQL)
	assert.Equal(t,
		"CREATE TABLE IF NOT EXISTS \"staging\".\"items\" (\n  \"id\" BIGINT,\n  \"ok\" BOOLEAN,\n  \"score\" DOUBLE PRECISION,\n  \"user name\" TEXT\n);",
		baseSQL)
}

func TestBuildCreateSQL_Unqualified(t *testing.T) {
	t.Parallel()

	schemaSQL, baseSQL, err := buildCreateSQL(storage.TableSpec{
		Name:    "items",
		Columns: []storage.ColumnSpec{{Name: "a", Kind: persist.ColumnString}},
	})
	require.NoError(t, err)
	assert.Empty(t, schemaSQL)
	assert.Contains(t, baseSQL, `CREATE TABLE IF NOT EXISTS "items"`)
}

func TestBuildCreateSQL_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := buildCreateSQL(storage.TableSpec{Name: " "})
	assert.Error(t, err)
	_, _, err = buildCreateSQL(storage.TableSpec{Name: "t"})
	assert.Error(t, err)
}

func TestIdentifier(t *testing.T) {
	t.Parallel()

	assert.Equal(t, pgx.Identifier{"public", "items"}, identifier("public.items"))
	assert.Equal(t, pgx.Identifier{"items"}, identifier(" items "))
	assert.Equal(t, pgx.Identifier{"a.b.c"}, identifier("a.b.c"))
}
