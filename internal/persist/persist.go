// Package persist writes the final table to disk and reads a column subset
// back for the round-trip check.
//
// Parquet is written through arrow-go's pqarrow writer with one arrow type
// per column (see KindOf). The CSV variant writes a header row and plain
// cell text, nulls as empty fields.
package persist

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"tabetl/internal/config"
	csvparser "tabetl/internal/parser/csv"
	"tabetl/internal/table"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
)

type Format string

const (
	FormatParquet Format = "parquet"
	FormatCSV     Format = "csv"
)

var (
	ErrColumnNotFound    = errors.New("column not found in output file")
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// Ext is the file extension of f, including the dot.
func (f Format) Ext() string { return "." + string(f) }

// Write stores t as dir/name.<ext>, creating dir if needed, and returns the
// absolute path. An existing file of the same name is replaced.
func Write(ctx context.Context, t *table.Table, dir, name string, format Format) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if format != FormatParquet && format != FormatCSV {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path, err := filepath.Abs(filepath.Join(dir, name+format.Ext()))
	if err != nil {
		return "", fmt.Errorf("resolve output path: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	if format == FormatCSV {
		err = writeCSV(f, t)
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close output file: %w", cerr)
		}
	} else {
		// The parquet writer closes f.
		err = writeParquet(f, t)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// Read loads the named columns from a file written by Write, in the given
// order. The format follows the extension.
func Read(ctx context.Context, path string, columns []string) (*table.Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case FormatCSV.Ext():
		return readCSV(ctx, path, columns)
	case FormatParquet.Ext():
		return readParquet(ctx, path, columns)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Schema returns the arrow schema Write uses for t.
func Schema(t *table.Table) *arrow.Schema {
	fields := make([]arrow.Field, t.Width())
	for i := 0; i < t.Width(); i++ {
		c := t.ColumnAt(i)
		fields[i] = arrow.Field{Name: c.Name, Type: arrowType(KindOf(c.Values)), Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// writeParquet writes t to f and closes it on every path.
func writeParquet(f *os.File, t *table.Table) error {
	mem := memory.NewGoAllocator()
	schema := Schema(t)

	arrays := make([]arrow.Array, t.Width())
	defer func() {
		for _, a := range arrays {
			if a != nil {
				a.Release()
			}
		}
	}()
	for i := 0; i < t.Width(); i++ {
		arrays[i] = buildArray(mem, schema.Field(i).Type, t.ColumnAt(i).Values)
	}

	rec := array.NewRecord(schema, arrays, int64(t.Len()))
	defer rec.Release()

	fw, err := pqarrow.NewFileWriter(schema, f, nil, pqarrow.DefaultWriterProps())
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("create parquet writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		_ = fw.Close()
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func buildArray(mem memory.Allocator, dt arrow.DataType, vals []table.Value) arrow.Array {
	b := array.NewBuilder(mem, dt)
	defer b.Release()
	b.Reserve(len(vals))

	for _, v := range vals {
		if v.IsNull() {
			b.AppendNull()
			continue
		}
		switch bb := b.(type) {
		case *array.BooleanBuilder:
			bb.Append(v.AsBool())
		case *array.Int64Builder:
			bb.Append(v.AsInt())
		case *array.Float64Builder:
			bb.Append(v.AsFloat())
		case *array.StringBuilder:
			bb.Append(StringCell(v))
		}
	}
	return b.NewArray()
}

func readParquet(ctx context.Context, path string, columns []string) (*table.Table, error) {
	rdr, err := file.OpenParquetFile(path, false)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	defer rdr.Close()

	leaves := make([]int, len(columns))
	for i, c := range columns {
		idx := rdr.MetaData().Schema.ColumnIndexByName(c)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, c)
		}
		leaves[i] = idx
	}

	fr, err := pqarrow.NewFileReader(rdr, pqarrow.ArrowReadProperties{BatchSize: 4096}, memory.DefaultAllocator)
	if err != nil {
		return nil, fmt.Errorf("parquet reader: %w", err)
	}
	rr, err := fr.GetRecordReader(ctx, leaves, nil)
	if err != nil {
		return nil, fmt.Errorf("parquet record reader: %w", err)
	}
	defer rr.Release()

	cols := make([][]table.Value, len(columns))
	for rr.Next() {
		rec := rr.Record()
		for i, name := range columns {
			fi := rec.Schema().FieldIndices(name)
			if len(fi) == 0 {
				return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
			}
			cols[i] = appendArray(cols[i], rec.Column(fi[0]))
		}
	}
	if err := rr.Err(); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read parquet: %w", err)
	}

	out := make([]table.Column, len(columns))
	for i, name := range columns {
		vals := cols[i]
		if vals == nil {
			vals = []table.Value{}
		}
		out[i] = table.Column{Name: name, Values: vals}
	}
	return table.New(out...)
}

func appendArray(dst []table.Value, a arrow.Array) []table.Value {
	for j := 0; j < a.Len(); j++ {
		if a.IsNull(j) {
			dst = append(dst, table.Null())
			continue
		}
		switch arr := a.(type) {
		case *array.Boolean:
			dst = append(dst, table.Bool(arr.Value(j)))
		case *array.Int64:
			dst = append(dst, table.Int(arr.Value(j)))
		case *array.Int32:
			dst = append(dst, table.Int(int64(arr.Value(j))))
		case *array.Float64:
			dst = append(dst, table.Float(arr.Value(j)))
		case *array.Float32:
			dst = append(dst, table.Float(float64(arr.Value(j))))
		case *array.String:
			dst = append(dst, table.String(arr.Value(j)))
		case *array.LargeString:
			dst = append(dst, table.String(arr.Value(j)))
		default:
			dst = append(dst, table.String(a.ValueStr(j)))
		}
	}
	return dst
}

func writeCSV(w io.Writer, t *table.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	rec := make([]string, t.Width())
	for r := 0; r < t.Len(); r++ {
		for c, v := range t.Row(r) {
			rec[c] = v.String()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write csv row %d: %w", r, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func readCSV(ctx context.Context, path string, columns []string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	full, err := csvparser.ReadTable(ctx, f, config.Options{"trim_space": false})
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	for _, c := range columns {
		if !full.Has(c) {
			return nil, fmt.Errorf("%w: %q", ErrColumnNotFound, c)
		}
	}
	return full.Select(columns)
}
