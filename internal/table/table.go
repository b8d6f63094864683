package table

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrRaggedColumns   = errors.New("table: columns have different lengths")
	ErrDuplicateColumn = errors.New("table: duplicate column name")
	ErrUnknownColumn   = errors.New("table: unknown column")
)

// Column is a named, ordered cell sequence.
type Column struct {
	Name   string
	Values []Value
}

// Table is an ordered set of equally long, uniquely named columns. Stages
// mutate it in place; it is not safe for concurrent use.
type Table struct {
	cols  []Column
	index map[string]int
	rows  int
}

// New builds a table from columns, validating lengths and names.
func New(cols ...Column) (*Table, error) {
	t := &Table{index: make(map[string]int, len(cols))}
	for _, c := range cols {
		if err := t.AddColumn(c.Name, c.Values); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew is New for fixtures; it panics on invalid input.
func MustNew(cols ...Column) *Table {
	t, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return t
}

// Len is the number of rows.
func (t *Table) Len() int { return t.rows }

// Width is the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Has reports whether a column named name exists.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Index returns the position of name or -1.
func (t *Table) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Column returns the live cell slice of name.
func (t *Table) Column(name string) ([]Value, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i].Values, true
}

// ColumnAt returns the column at position i.
func (t *Table) ColumnAt(i int) Column { return t.cols[i] }

// AddColumn appends a column. The first column fixes the row count.
func (t *Table) AddColumn(name string, vals []Value) error {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if _, exists := t.index[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateColumn, name)
	}
	if len(t.cols) > 0 && len(vals) != t.rows {
		return fmt.Errorf("%w: %q has %d rows, want %d", ErrRaggedColumns, name, len(vals), t.rows)
	}
	if len(t.cols) == 0 {
		t.rows = len(vals)
	}
	t.index[name] = len(t.cols)
	t.cols = append(t.cols, Column{Name: name, Values: vals})
	return nil
}

// SetColumn replaces the cells of an existing column.
func (t *Table) SetColumn(name string, vals []Value) error {
	i, ok := t.index[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	if len(vals) != t.rows {
		return fmt.Errorf("%w: %q has %d rows, want %d", ErrRaggedColumns, name, len(vals), t.rows)
	}
	t.cols[i].Values = vals
	return nil
}

// DropColumn removes name and reports whether it existed.
func (t *Table) DropColumn(name string) bool {
	i, ok := t.index[name]
	if !ok {
		return false
	}
	t.cols = append(t.cols[:i], t.cols[i+1:]...)
	t.reindex()
	if len(t.cols) == 0 {
		t.rows = 0
	}
	return true
}

// Rename assigns names positionally. It fails if the result is not unique.
func (t *Table) Rename(names []string) error {
	if len(names) != len(t.cols) {
		return fmt.Errorf("table: rename got %d names for %d columns", len(names), len(t.cols))
	}
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, n)
		}
		seen[n] = struct{}{}
	}
	for i := range t.cols {
		t.cols[i].Name = names[i]
	}
	t.reindex()
	return nil
}

// Row copies out row i.
func (t *Table) Row(i int) []Value {
	out := make([]Value, len(t.cols))
	for c := range t.cols {
		out[c] = t.cols[c].Values[i]
	}
	return out
}

// Set replaces one cell.
func (t *Table) Set(col string, row int, v Value) error {
	i, ok := t.index[col]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
	}
	if row < 0 || row >= t.rows {
		return fmt.Errorf("table: row %d out of range [0,%d)", row, t.rows)
	}
	t.cols[i].Values[row] = v
	return nil
}

// KeepRows retains the given row positions in the given order; rows are
// renumbered from zero.
func (t *Table) KeepRows(rows []int) {
	for c := range t.cols {
		old := t.cols[c].Values
		kept := make([]Value, len(rows))
		for j, r := range rows {
			kept[j] = old[r]
		}
		t.cols[c].Values = kept
	}
	t.rows = len(rows)
}

// Select returns a new table with the named columns in the given order.
// Cell slices are shared with t.
func (t *Table) Select(names []string) (*Table, error) {
	out := &Table{index: make(map[string]int, len(names))}
	for _, n := range names {
		i, ok := t.index[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, n)
		}
		if err := out.AddColumn(n, t.cols[i].Values); err != nil {
			return nil, err
		}
	}
	if len(names) == 0 {
		out.rows = 0
	}
	return out, nil
}

// Clone deep-copies the column structure; cells are values and copy freely.
func (t *Table) Clone() *Table {
	out := &Table{index: make(map[string]int, len(t.cols)), rows: t.rows}
	for _, c := range t.cols {
		vals := make([]Value, len(c.Values))
		copy(vals, c.Values)
		out.index[c.Name] = len(out.cols)
		out.cols = append(out.cols, Column{Name: c.Name, Values: vals})
	}
	return out
}

// Equal reports identical names, order and cells.
func (t *Table) Equal(o *Table) bool {
	if t.Width() != o.Width() || t.Len() != o.Len() {
		return false
	}
	for i := range t.cols {
		a, b := t.cols[i], o.cols[i]
		if a.Name != b.Name {
			return false
		}
		for r := range a.Values {
			if !a.Values[r].Equal(b.Values[r]) {
				return false
			}
		}
	}
	return true
}

// UniqueName returns name, or name_1, name_2, ... whichever is not taken.
func UniqueName(taken func(string) bool, name string) string {
	if !taken(name) {
		return name
	}
	for n := 1; ; n++ {
		c := name + "_" + strconv.Itoa(n)
		if !taken(c) {
			return c
		}
	}
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.cols))
	for i, c := range t.cols {
		t.index[c.Name] = i
	}
}
