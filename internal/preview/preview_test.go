package preview

import (
	"bytes"
	"math/rand"
	"testing"

	"tabetl/internal/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numbered(n int) *table.Table {
	ids := make([]table.Value, n)
	for i := range ids {
		ids[i] = table.Int(int64(i))
	}
	return table.MustNew(table.Column{Name: "id", Values: ids})
}

func TestSample(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		rows int
		n    int
		want int
	}{
		{"fewer than rows", 10, 3, 3},
		{"more than rows", 2, 5, 2},
		{"empty table", 0, 5, 0},
		{"zero", 4, 0, 0},
		{"negative", 4, -1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			src := numbered(tt.rows)
			got := Sample(src, tt.n, rand.New(rand.NewSource(7)))
			require.Equal(t, tt.want, got.Len())

			ids, _ := got.Column("id")
			seen := map[int64]bool{}
			prev := int64(-1)
			for _, v := range ids {
				assert.False(t, seen[v.AsInt()], "row sampled twice")
				assert.Greater(t, v.AsInt(), prev)
				seen[v.AsInt()] = true
				prev = v.AsInt()
			}
			assert.Equal(t, tt.rows, src.Len(), "source untouched")
		})
	}
}

func TestSample_Deterministic(t *testing.T) {
	t.Parallel()
	a := Sample(numbered(50), 5, rand.New(rand.NewSource(42)))
	b := Sample(numbered(50), 5, rand.New(rand.NewSource(42)))
	assert.True(t, a.Equal(b))
}

func TestRender(t *testing.T) {
	t.Parallel()
	tbl := table.MustNew(
		table.Column{Name: "user_id", Values: []table.Value{table.Int(1), table.Int(2)}},
		table.Column{Name: "tags", Values: []table.Value{table.ListOf(table.String("a")), table.Null()}},
	)
	var buf bytes.Buffer
	Render(&buf, tbl)

	out := buf.String()
	assert.Contains(t, out, "user_id")
	assert.Contains(t, out, "['a']")
	assert.Contains(t, out, "2 |")
	assert.Contains(t, out, "+-")
}
