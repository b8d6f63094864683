package transformer

import (
	"crypto/sha256"

	"tabetl/internal/table"
)

// DedupeReport describes one Dedupe pass.
type DedupeReport struct {
	// Stringified lists the columns whose nested cells were replaced by text.
	Stringified []string
	// Dropped is the number of duplicate rows removed.
	Dropped int
}

// Dedupe replaces every nested cell with its Repr string, in columns that
// hold any, then drops rows identical to an earlier row, keeping the first.
// Surviving rows are renumbered from zero.
func Dedupe(t *table.Table) DedupeReport {
	var rep DedupeReport

	for i := 0; i < t.Width(); i++ {
		col := t.ColumnAt(i)
		nested := false
		for _, v := range col.Values {
			if v.IsNested() {
				nested = true
				break
			}
		}
		if !nested {
			continue
		}
		for r, v := range col.Values {
			if v.IsNested() {
				col.Values[r] = table.String(v.Repr())
			}
		}
		rep.Stringified = append(rep.Stringified, col.Name)
	}

	n := t.Len()
	seen := make(map[[sha256.Size]byte][]int, n)
	keep := make([]int, 0, n)
	for r := 0; r < n; r++ {
		row := t.Row(r)
		k := RowKey(row)
		dup := false
		for _, prev := range seen[k] {
			if rowsEqual(row, t.Row(prev)) {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		seen[k] = append(seen[k], r)
		keep = append(keep, r)
	}

	rep.Dropped = n - len(keep)
	if rep.Dropped > 0 {
		t.KeepRows(keep)
	}
	return rep
}

func rowsEqual(a, b []table.Value) bool {
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
