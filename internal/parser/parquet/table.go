// Package parquet reads Parquet files into tables with parquet-go.
package parquet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"tabetl/internal/table"

	"github.com/parquet-go/parquet-go"
)

// ReadTable reads every row of the file behind r. Columns follow the
// top-level schema field order; optional groups become map cells and
// repeated fields become list cells.
func ReadTable(ctx context.Context, r io.ReaderAt, size int64) (*table.Table, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	fields := pf.Schema().Fields()
	names := make([]string, len(fields))
	cols := make([][]table.Value, len(fields))
	for i, f := range fields {
		names[i] = f.Name()
	}

	rd := parquet.NewReader(pf)
	defer func() { _ = rd.Close() }()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := make(map[string]any)
		if err := rd.Read(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read parquet row: %w", err)
		}
		for i, n := range names {
			cols[i] = append(cols[i], table.FromAny(normalize(row[n])))
		}
	}

	out := make([]table.Column, len(names))
	for i, n := range names {
		vals := cols[i]
		if vals == nil {
			vals = []table.Value{}
		}
		out[i] = table.Column{Name: n, Values: vals}
	}
	return table.New(out...)
}

// normalize rewrites values FromAny has no case for.
func normalize(x any) any {
	switch t := x.(type) {
	case time.Time:
		return t.UTC().Format("2006-01-02 15:04:05")
	case []byte:
		return string(t)
	case []any:
		for i := range t {
			t[i] = normalize(t[i])
		}
		return t
	case map[string]any:
		for k, v := range t {
			t[k] = normalize(v)
		}
		return t
	default:
		return x
	}
}
