package persist

import (
	"tabetl/internal/table"

	"github.com/apache/arrow-go/v18/arrow"
)

// ColumnKind is the storage type chosen for a column.
type ColumnKind int

const (
	ColumnString ColumnKind = iota
	ColumnBool
	ColumnInt
	ColumnFloat
)

func (k ColumnKind) String() string {
	switch k {
	case ColumnBool:
		return "bool"
	case ColumnInt:
		return "int"
	case ColumnFloat:
		return "float"
	default:
		return "string"
	}
}

// KindOf picks the storage type of a column from its non-null cells: all
// bool, all int, int and float mixed, else string. An all-null column is
// string.
func KindOf(vals []table.Value) ColumnKind {
	var bools, ints, floats, others int
	for _, v := range vals {
		switch v.Kind() {
		case table.KindNull:
		case table.KindBool:
			bools++
		case table.KindInt:
			ints++
		case table.KindFloat:
			floats++
		default:
			others++
		}
	}
	switch {
	case others > 0:
		return ColumnString
	case bools > 0 && ints+floats == 0:
		return ColumnBool
	case bools > 0:
		return ColumnString
	case floats > 0:
		return ColumnFloat
	case ints > 0:
		return ColumnInt
	default:
		return ColumnString
	}
}

// StringCell renders a cell stored in a string column: strings as is,
// anything else in its Repr form.
func StringCell(v table.Value) string {
	if v.Kind() == table.KindString {
		return v.AsString()
	}
	return v.Repr()
}

func arrowType(k ColumnKind) arrow.DataType {
	switch k {
	case ColumnBool:
		return arrow.FixedWidthTypes.Boolean
	case ColumnInt:
		return arrow.PrimitiveTypes.Int64
	case ColumnFloat:
		return arrow.PrimitiveTypes.Float64
	default:
		return arrow.BinaryTypes.String
	}
}
