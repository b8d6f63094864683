package json

import (
	"errors"
	"fmt"

	"tabetl/internal/table"
)

var (
	// ErrUnsupportedShape means a JSON value cannot be read as rows.
	ErrUnsupportedShape = errors.New("unsupported JSON shape")
)

// BuildTable converts a decoded JSON value into a table.
//
//   - array of objects: one row per element, columns in first-seen key order;
//     null elements become all-null rows
//   - array of non-objects: a single column named "0"
//   - object whose values are arrays of equal length: one column per key;
//     scalar values are repeated down the column
//
// Anything else (scalars, an object of scalars, mixed arrays, ragged
// columns) fails with ErrUnsupportedShape.
func BuildTable(v table.Value) (*table.Table, error) {
	switch v.Kind() {
	case table.KindList:
		return fromList(v.AsList())
	case table.KindMap:
		return fromColumns(v.AsMap())
	default:
		return nil, fmt.Errorf("%w: top-level %s", ErrUnsupportedShape, v.Kind())
	}
}

func fromList(items []table.Value) (*table.Table, error) {
	var maps, others int
	for _, it := range items {
		switch {
		case it.Kind() == table.KindMap:
			maps++
		case it.IsNull():
		default:
			others++
		}
	}
	if maps > 0 && others > 0 {
		return nil, fmt.Errorf("%w: array mixes objects and %d other values", ErrUnsupportedShape, others)
	}
	if maps == 0 && len(items) > 0 {
		return table.New(table.Column{Name: "0", Values: items})
	}
	recs := make([]*table.Map, len(items))
	for i, it := range items {
		if it.Kind() == table.KindMap {
			recs[i] = it.AsMap()
		} else {
			recs[i] = table.NewMap()
		}
	}
	t := table.FromRecords(recs)
	if t.Width() == 0 && len(items) > 0 {
		return nil, fmt.Errorf("%w: array of empty objects", ErrUnsupportedShape)
	}
	return t, nil
}

func fromColumns(m *table.Map) (*table.Table, error) {
	rows := -1
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		if v.Kind() != table.KindList {
			continue
		}
		n := len(v.AsList())
		if rows >= 0 && n != rows {
			return nil, fmt.Errorf("%w: column %q has %d values, want %d", ErrUnsupportedShape, k, n, rows)
		}
		rows = n
	}
	if rows < 0 {
		return nil, fmt.Errorf("%w: object has no array values", ErrUnsupportedShape)
	}

	cols := make([]table.Column, 0, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		var vals []table.Value
		if v.Kind() == table.KindList {
			vals = v.AsList()
		} else {
			vals = make([]table.Value, rows)
			for i := range vals {
				vals[i] = v
			}
		}
		cols = append(cols, table.Column{Name: k, Values: vals})
	}
	return table.New(cols...)
}
