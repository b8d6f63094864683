// Package table holds the in-memory tabular model passed between pipeline
// stages: an ordered set of equally long, uniquely named columns whose cells
// are tagged Values.
package table

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind tags the variant stored in a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Value is a single cell. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
	m    *Map
	l    []Value
}

func Null() Value              { return Value{} }
func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func Int(i int64) Value        { return Value{kind: KindInt, i: i} }
func Float(f float64) Value    { return Value{kind: KindFloat, f: f} }
func String(s string) Value    { return Value{kind: KindString, s: s} }
func ListOf(vs ...Value) Value { return Value{kind: KindList, l: vs} }

// MapOf wraps an ordered mapping. A nil map yields an empty mapping.
func MapOf(m *Map) Value {
	if m == nil {
		m = NewMap()
	}
	return Value{kind: KindMap, m: m}
}

func (v Value) Kind() Kind      { return v.kind }
func (v Value) IsNull() bool    { return v.kind == KindNull }
func (v Value) IsNested() bool  { return v.kind == KindMap || v.kind == KindList }
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// AsBool, AsInt, AsFloat, AsString, AsMap and AsList return the payload for
// the matching kind and the zero value otherwise. AsFloat also converts Int.
func (v Value) AsBool() bool     { return v.kind == KindBool && v.b }
func (v Value) AsInt() int64     { return v.i }
func (v Value) AsString() string { return v.s }
func (v Value) AsMap() *Map      { return v.m }
func (v Value) AsList() []Value  { return v.l }

func (v Value) AsFloat() float64 {
	if v.kind == KindInt {
		return float64(v.i)
	}
	return v.f
}

// Equal reports deep equality. Int and Float compare by numeric value so a
// column mixing 1 and 1.0 behaves like a single float column.
func (v Value) Equal(o Value) bool {
	if v.IsNumeric() && o.IsNumeric() {
		if v.kind == KindInt && o.kind == KindInt {
			return v.i == o.i
		}
		a, b := v.AsFloat(), o.AsFloat()
		if math.IsNaN(a) && math.IsNaN(b) {
			return true
		}
		return a == b
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindMap:
		return v.m.Equal(o.m)
	case KindList:
		if len(v.l) != len(o.l) {
			return false
		}
		for i := range v.l {
			if !v.l[i].Equal(o.l[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the cell as plain text: strings unquoted, nulls empty and
// nested values in their Repr form.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.s
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.Repr()
	}
}

// Repr renders v in literal form ("[1, 2]", "{'a': None}"). It is the
// stable text form nested cells are reduced to before duplicate detection.
func (v Value) Repr() string {
	var b strings.Builder
	v.writeRepr(&b)
	return b.String()
}

func (v Value) writeRepr(b *strings.Builder) {
	switch v.kind {
	case KindNull:
		b.WriteString("None")
	case KindBool:
		if v.b {
			b.WriteString("True")
		} else {
			b.WriteString("False")
		}
	case KindInt:
		b.WriteString(strconv.FormatInt(v.i, 10))
	case KindFloat:
		b.WriteString(reprFloat(v.f))
	case KindString:
		writeQuoted(b, v.s)
	case KindList:
		b.WriteByte('[')
		for i, e := range v.l {
			if i > 0 {
				b.WriteString(", ")
			}
			e.writeRepr(b)
		}
		b.WriteByte(']')
	case KindMap:
		b.WriteByte('{')
		for i, k := range v.m.keys {
			if i > 0 {
				b.WriteString(", ")
			}
			writeQuoted(b, k)
			b.WriteString(": ")
			v.m.vals[k].writeRepr(b)
		}
		b.WriteByte('}')
	}
}

func reprFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e16 || abs < 1e-4) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}

func writeQuoted(b *strings.Builder, s string) {
	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}
	b.WriteByte(q)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r == rune(q) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
}

// Interface converts v to plain Go values: nil, bool, int64, float64,
// string, map[string]any or []any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindMap:
		out := make(map[string]any, v.m.Len())
		for _, k := range v.m.keys {
			out[k] = v.m.vals[k].Interface()
		}
		return out
	case KindList:
		out := make([]any, len(v.l))
		for i, e := range v.l {
			out[i] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromAny converts decoded Go values into a Value. Plain Go maps have no key
// order, so their keys are sorted.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case *Map:
		return MapOf(t)
	case bool:
		return Bool(t)
	case int:
		return Int(int64(t))
	case int8:
		return Int(int64(t))
	case int16:
		return Int(int64(t))
	case int32:
		return Int(int64(t))
	case int64:
		return Int(t)
	case uint8:
		return Int(int64(t))
	case uint16:
		return Int(int64(t))
	case uint32:
		return Int(int64(t))
	case uint64:
		if t > math.MaxInt64 {
			return Float(float64(t))
		}
		return Int(int64(t))
	case float32:
		return Float(float64(t))
	case float64:
		return Float(t)
	case json.Number:
		return FromNumber(string(t))
	case string:
		return String(t)
	case []byte:
		return String(string(t))
	case []any:
		out := make([]Value, len(t))
		for i, e := range t {
			out[i] = FromAny(e)
		}
		return ListOf(out...)
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, FromAny(t[k]))
		}
		return MapOf(m)
	default:
		return String(strings.TrimSpace(toString(t)))
	}
}

// FromNumber parses a JSON number literal, preferring int64.
func FromNumber(s string) Value {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return String(s)
}

func toString(x any) string {
	if s, ok := x.(interface{ String() string }); ok {
		return s.String()
	}
	b, err := json.Marshal(x)
	if err != nil {
		return ""
	}
	return string(b)
}
