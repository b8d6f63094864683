package storage

import (
	"tabetl/internal/persist"
	"tabetl/internal/table"
)

// SQLValue converts a cell into a driver argument for a column of kind k.
// Nulls become nil; string columns receive the cell text (Repr for
// non-strings), matching what the Parquet file holds.
func SQLValue(v table.Value, k persist.ColumnKind) any {
	if v.IsNull() {
		return nil
	}
	switch k {
	case persist.ColumnBool:
		return v.AsBool()
	case persist.ColumnInt:
		return v.AsInt()
	case persist.ColumnFloat:
		return v.AsFloat()
	default:
		return persist.StringCell(v)
	}
}

// Rows converts every row of t into driver arguments, typed per spec.
func Rows(t *table.Table, spec TableSpec) [][]any {
	out := make([][]any, t.Len())
	for r := 0; r < t.Len(); r++ {
		cells := t.Row(r)
		row := make([]any, len(cells))
		for i, v := range cells {
			row[i] = SQLValue(v, spec.Columns[i].Kind)
		}
		out[r] = row
	}
	return out
}
