package table

// FromRecords builds a table from row mappings. Columns appear in the order
// their keys are first seen; a record without a key contributes null.
func FromRecords(records []*Map) *Table {
	var names []string
	pos := make(map[string]int)
	for _, r := range records {
		for _, k := range r.Keys() {
			if _, ok := pos[k]; !ok {
				pos[k] = len(names)
				names = append(names, k)
			}
		}
	}

	cols := make([][]Value, len(names))
	for i := range cols {
		cols[i] = make([]Value, len(records))
	}
	for r, rec := range records {
		for _, k := range rec.Keys() {
			v, _ := rec.Get(k)
			cols[pos[k]][r] = v
		}
	}

	t := &Table{index: make(map[string]int, len(names)), rows: len(records)}
	for i, n := range names {
		t.index[n] = i
		t.cols = append(t.cols, Column{Name: n, Values: cols[i]})
	}
	if len(names) == 0 {
		t.rows = 0
	}
	return t
}
