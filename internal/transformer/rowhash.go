package transformer

import (
	"crypto/sha256"
	"math"
	"strconv"
	"strings"

	"tabetl/internal/table"
)

const rowSep = '\x1f'

// RowKey hashes the canonical form of a row. Cells are joined with 0x1f;
// each cell carries a kind tag so 1 and "1" differ, while 1 and 1.0 and
// two nulls compare equal. Nested cells encode as their Repr text, so a
// list and its stringified form share a key.
func RowKey(row []table.Value) [sha256.Size]byte {
	var b strings.Builder
	b.Grow(len(row) * 12)
	for i, v := range row {
		if i > 0 {
			b.WriteByte(rowSep)
		}
		appendCanonicalValue(&b, v)
	}
	return sha256.Sum256([]byte(b.String()))
}

func appendCanonicalValue(b *strings.Builder, v table.Value) {
	switch v.Kind() {
	case table.KindNull:
		b.WriteByte('\x00')

	case table.KindBool:
		if v.AsBool() {
			b.WriteString("b:true")
		} else {
			b.WriteString("b:false")
		}

	case table.KindInt:
		b.WriteString("n:")
		b.WriteString(strconv.FormatInt(v.AsInt(), 10))

	case table.KindFloat:
		f := v.AsFloat()
		b.WriteString("n:")
		switch {
		case math.IsNaN(f):
			b.WriteString("NaN")
		case f == math.Trunc(f) && math.Abs(f) < 1<<63:
			b.WriteString(strconv.FormatInt(int64(f), 10))
		default:
			b.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
		}

	case table.KindString:
		appendString(b, v.AsString())

	default:
		appendString(b, v.Repr())
	}
}

// appendString length-prefixes s so an embedded separator cannot shift
// cell boundaries.
func appendString(b *strings.Builder, s string) {
	b.WriteString("s")
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteByte(':')
	b.WriteString(s)
}
