package storage

import (
	"fmt"
	"strings"

	"tabetl/internal/persist"
	"tabetl/internal/table"
)

// TableSpec is the DDL input for EnsureTable. Column types are logical;
// each backend maps them to its own SQL type.
type TableSpec struct {
	Name    string       `json:"name"`
	Columns []ColumnSpec `json:"columns"`
}

type ColumnSpec struct {
	Name string             `json:"name"`
	Kind persist.ColumnKind `json:"kind"`
}

// SpecFor derives a TableSpec from t using the same per-column kind choice
// as the Parquet writer.
func SpecFor(name string, t *table.Table) (TableSpec, error) {
	if strings.TrimSpace(name) == "" {
		return TableSpec{}, fmt.Errorf("table name is empty")
	}
	spec := TableSpec{Name: name, Columns: make([]ColumnSpec, t.Width())}
	for i := 0; i < t.Width(); i++ {
		c := t.ColumnAt(i)
		spec.Columns[i] = ColumnSpec{Name: c.Name, Kind: persist.KindOf(c.Values)}
	}
	return spec, nil
}

// ColumnNames lists the spec's columns in order.
func (s TableSpec) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}
