package persist

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tabetl/internal/table"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() *table.Table {
	nested := table.NewMap()
	nested.Set("k", table.Int(1))
	return table.MustNew(
		table.Column{Name: "id", Values: []table.Value{table.Int(1), table.Int(2), table.Int(3)}},
		table.Column{Name: "score", Values: []table.Value{table.Float(1.5), table.Null(), table.Int(2)}},
		table.Column{Name: "ok", Values: []table.Value{table.Bool(true), table.Bool(false), table.Null()}},
		table.Column{Name: "name", Values: []table.Value{table.String("a"), table.String("b b"), table.String("")}},
		table.Column{Name: "tags", Values: []table.Value{table.ListOf(table.Int(1), table.Int(2)), table.MapOf(nested), table.String("x")}},
	)
}

func TestWriteRead_ParquetRoundTrip(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "out")

	path, err := Write(context.Background(), sampleTable(), dir, "run", FormatParquet)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.Equal(t, "run.parquet", filepath.Base(path))

	got, err := Read(context.Background(), path, []string{"tags", "id", "score", "ok"})
	require.NoError(t, err)
	assert.Equal(t, []string{"tags", "id", "score", "ok"}, got.Columns())
	require.Equal(t, 3, got.Len())

	tags, _ := got.Column("tags")
	assert.Equal(t, []table.Value{table.String("[1, 2]"), table.String("{'k': 1}"), table.String("x")}, tags)
	ids, _ := got.Column("id")
	assert.Equal(t, []table.Value{table.Int(1), table.Int(2), table.Int(3)}, ids)
	scores, _ := got.Column("score")
	assert.Equal(t, []table.Value{table.Float(1.5), table.Null(), table.Float(2)}, scores)
	oks, _ := got.Column("ok")
	assert.Equal(t, []table.Value{table.Bool(true), table.Bool(false), table.Null()}, oks)
}

func TestWrite_ParquetFileIsComplete(t *testing.T) {
	t.Parallel()
	small := table.MustNew(table.Column{Name: "a", Values: []table.Value{table.Int(1)}})

	path, err := Write(context.Background(), small, t.TempDir(), "one", FormatParquet)
	require.NoError(t, err)
	require.NotEmpty(t, path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(raw), 8)
	assert.Equal(t, "PAR1", string(raw[:4]))
	assert.Equal(t, "PAR1", string(raw[len(raw)-4:]))
}

func TestWriteRead_CSVRoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path, err := Write(context.Background(), sampleTable(), dir, "run", FormatCSV)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "id,score,ok,name,tags\n")

	got, err := Read(context.Background(), path, []string{"name", "score"})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "score"}, got.Columns())
	names, _ := got.Column("name")
	assert.Equal(t, []table.Value{table.String("a"), table.String("b b"), table.Null()}, names)
	scores, _ := got.Column("score")
	assert.Equal(t, []table.Value{table.Float(1.5), table.Null(), table.Float(2)}, scores)
}

func TestWrite_Overwrites(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	small := table.MustNew(table.Column{Name: "a", Values: []table.Value{table.Int(9)}})

	_, err := Write(context.Background(), sampleTable(), dir, "same", FormatParquet)
	require.NoError(t, err)
	path, err := Write(context.Background(), small, dir, "same", FormatParquet)
	require.NoError(t, err)

	got, err := Read(context.Background(), path, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Len())
}

func TestRead_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	for _, f := range []Format{FormatParquet, FormatCSV} {
		path, err := Write(context.Background(), sampleTable(), dir, "e", f)
		require.NoError(t, err)
		_, err = Read(context.Background(), path, []string{"id", "nope"})
		assert.ErrorIs(t, err, ErrColumnNotFound, f)
	}

	_, err := Read(context.Background(), filepath.Join(dir, "x.json"), []string{"id"})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Write(context.Background(), sampleTable(), dir, "x", Format("xlsx"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestWrite_Cancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Write(ctx, sampleTable(), t.TempDir(), "c", FormatParquet)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSchema(t *testing.T) {
	t.Parallel()
	s := Schema(sampleTable())
	want := []arrow.DataType{
		arrow.PrimitiveTypes.Int64,
		arrow.PrimitiveTypes.Float64,
		arrow.FixedWidthTypes.Boolean,
		arrow.BinaryTypes.String,
		arrow.BinaryTypes.String,
	}
	require.Equal(t, len(want), s.NumFields())
	for i, dt := range want {
		assert.True(t, arrow.TypeEqual(dt, s.Field(i).Type), s.Field(i).Name)
	}
}

func TestKindOf(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		vals []table.Value
		want ColumnKind
	}{
		{"empty", nil, ColumnString},
		{"all null", []table.Value{table.Null(), table.Null()}, ColumnString},
		{"ints", []table.Value{table.Int(1), table.Null()}, ColumnInt},
		{"mixed numbers", []table.Value{table.Int(1), table.Float(2.5)}, ColumnFloat},
		{"bools", []table.Value{table.Bool(true), table.Null()}, ColumnBool},
		{"bool and int", []table.Value{table.Bool(true), table.Int(1)}, ColumnString},
		{"nested", []table.Value{table.Int(1), table.ListOf()}, ColumnString},
		{"strings", []table.Value{table.String("a")}, ColumnString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := KindOf(tt.vals)
			assert.Equal(t, tt.want, got, got.String())
		})
	}
}

func TestDeriveName(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	tests := []struct {
		source string
		want   string
	}{
		{"https://api.x.com/v1?x", "api.x.com_2024-03-05-14:07:09"},
		{"http://host:8080", "host:8080_2024-03-05-14:07:09"},
		{"data/in.csv", "in_2024-03-05-14:07:09"},
		{"/tmp/archive.tar.parquet", "archive.tar_2024-03-05-14:07:09"},
		{"report", "report_2024-03-05-14:07:09"},
		{"", "output_2024-03-05-14:07:09"},
		{"https://", "output_2024-03-05-14:07:09"},
		{"https://h.io?page=1", "h.io_2024-03-05-14:07:09"},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, DeriveName(tt.source, now))
		})
	}
}
