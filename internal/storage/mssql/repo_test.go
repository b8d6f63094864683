package mssql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"tabetl/internal/persist"
	"tabetl/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResult int64

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

type fakeTx struct {
	stmts      []string
	argCounts  []int
	failOn     int
	committed  bool
	rolledBack bool
}

func (f *fakeTx) ExecContext(_ context.Context, q string, args ...any) (sql.Result, error) {
	f.stmts = append(f.stmts, q)
	f.argCounts = append(f.argCounts, len(args))
	if f.failOn > 0 && len(f.stmts) == f.failOn {
		return nil, errors.New("boom")
	}
	return fakeResult(strings.Count(q, "(@")), nil
}

func (f *fakeTx) Commit() error   { f.committed = true; return nil }
func (f *fakeTx) Rollback() error { f.rolledBack = true; return nil }

type fakeDB struct {
	tx    *fakeTx
	execs []string
}

func (f *fakeDB) ExecContext(_ context.Context, q string, _ ...any) (sql.Result, error) {
	f.execs = append(f.execs, q)
	return fakeResult(0), nil
}

func (f *fakeDB) BeginTx(context.Context, *sql.TxOptions) (txConn, error) { return f.tx, nil }
func (f *fakeDB) Close() error                                            { return nil }

func TestBuildCreateSQL(t *testing.T) {
	t.Parallel()

	got, err := buildCreateSQL(storage.TableSpec{
		Name: "dbo.items",
		Columns: []storage.ColumnSpec{
			{Name: "id", Kind: persist.ColumnInt},
			{Name: "ok", Kind: persist.ColumnBool},
			{Name: "score", Kind: persist.ColumnFloat},
			{Name: "a]b", Kind: persist.ColumnString},
		},
	})
	require.NoError(t, err)
	assert.Equal(t,
		"IF OBJECT_ID(N'dbo.items', N'U') IS NULL BEGIN CREATE TABLE [dbo].[items] ([id] BIGINT NULL, [ok] BIT NULL, [score] FLOAT NULL, [a]]b] NVARCHAR(MAX) NULL); END;",
		got)

	_, err = buildCreateSQL(storage.TableSpec{Name: ""})
	assert.Error(t, err)
	_, err = buildCreateSQL(storage.TableSpec{Name: "t"})
	assert.Error(t, err)
}

func TestBuildBulkInsertSQL(t *testing.T) {
	t.Parallel()

	q, args := insertSQL("dbo.t", []string{"a", "b"}, [][]any{{1, "x"}, {2, nil}})
	assert.Equal(t, "INSERT INTO [dbo].[t] ([a], [b]) VALUES (@p1, @p2), (@p3, @p4)", q)
	assert.Equal(t, []any{1, "x", 2, nil}, args)
}

func TestInsertRows_ChunksUnderParamLimit(t *testing.T) {
	t.Parallel()

	columns := []string{"a", "b", "c"}
	rows := make([][]any, 1500)
	for i := range rows {
		rows[i] = []any{i, i, i}
	}
	tx := &fakeTx{}
	repo := &Repo{db: &fakeDB{tx: tx}}

	n, err := repo.InsertRows(context.Background(), "t", columns, rows)
	require.NoError(t, err)

	// 2000/3 = 666 rows per statement.
	require.Len(t, tx.stmts, 3)
	assert.Equal(t, []int{1998, 1998, 504}, tx.argCounts)
	for _, c := range tx.argCounts {
		assert.LessOrEqual(t, c, 2100)
	}
	assert.Equal(t, int64(1500), n)
	assert.True(t, tx.committed)
}

func TestInsertRows_RollsBackOnError(t *testing.T) {
	t.Parallel()

	tx := &fakeTx{failOn: 1}
	repo := &Repo{db: &fakeDB{tx: tx}}

	_, err := repo.InsertRows(context.Background(), "t", []string{"a"}, [][]any{{1}})
	require.Error(t, err)
	assert.True(t, tx.rolledBack)
	assert.False(t, tx.committed)
}

func TestEnsureTable_ExecutesGuardedDDL(t *testing.T) {
	t.Parallel()

	db := &fakeDB{}
	repo := &Repo{db: db}
	err := repo.EnsureTable(context.Background(), storage.TableSpec{
		Name:    "items",
		Columns: []storage.ColumnSpec{{Name: "a", Kind: persist.ColumnString}},
	})
	require.NoError(t, err)
	require.Len(t, db.execs, 1)
	assert.True(t, strings.HasPrefix(db.execs[0], "IF OBJECT_ID(N'items', N'U') IS NULL"))
}
