// Package preview samples rows of the round-tripped table and prints them
// as a grid.
package preview

import (
	"io"
	"math/rand"
	"sort"

	"tabetl/internal/table"

	"github.com/olekukonko/tablewriter"
)

// Sample returns min(n, t.Len()) distinct rows of t chosen at random, kept
// in their original order. A nil rng uses a time-seeded source.
func Sample(t *table.Table, n int, rng *rand.Rand) *table.Table {
	if n < 0 {
		n = 0
	}
	if n > t.Len() {
		n = t.Len()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	rows := rng.Perm(t.Len())[:n]
	sort.Ints(rows)

	out := t.Clone()
	out.KeepRows(rows)
	return out
}

// Render writes t as a bordered grid with the column names as header. Nulls
// print empty.
func Render(w io.Writer, t *table.Table) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader(t.Columns())
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	for r := 0; r < t.Len(); r++ {
		row := t.Row(r)
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = v.String()
		}
		tw.Append(cells)
	}
	tw.Render()
}
