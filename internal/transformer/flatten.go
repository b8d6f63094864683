package transformer

import (
	"tabetl/internal/table"
)

// Expansion records one column Flatten replaced.
type Expansion struct {
	Column string
	Into   []string
}

// Flatten expands every column whose first cell is a mapping into one
// column per key path, named "{column}_{path}" with nested paths joined by
// ".". Only the columns present on entry are examined, so expanded columns
// are never expanded again. The new columns are appended at the end of the
// table; cells that are not mappings contribute nulls. Columns whose first
// cell is null or a scalar stay as they are, even if later cells are
// mappings.
func Flatten(t *table.Table) []Expansion {
	var out []Expansion
	for _, name := range t.Columns() {
		vals, _ := t.Column(name)
		if len(vals) == 0 || vals[0].Kind() != table.KindMap {
			continue
		}

		recs := make([]*table.Map, len(vals))
		for r, v := range vals {
			m := table.NewMap()
			if v.Kind() == table.KindMap {
				flattenInto(m, "", v.AsMap())
			}
			recs[r] = m
		}
		sub := table.FromRecords(recs)

		t.DropColumn(name)
		exp := Expansion{Column: name}
		for i := 0; i < sub.Width(); i++ {
			c := sub.ColumnAt(i)
			newName := table.UniqueName(t.Has, name+"_"+c.Name)
			if err := t.AddColumn(newName, c.Values); err != nil {
				continue
			}
			exp.Into = append(exp.Into, newName)
		}
		out = append(out, exp)
	}
	return out
}

// flattenInto copies m into dst, descending into nested mappings. Empty
// nested mappings contribute no keys.
func flattenInto(dst *table.Map, prefix string, m *table.Map) {
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if v.Kind() == table.KindMap {
			flattenInto(dst, key, v.AsMap())
			continue
		}
		dst.Set(key, v)
	}
}
