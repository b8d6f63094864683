package selector

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySelection        = errors.New("no columns selected")
	ErrInvalidIndex          = errors.New("invalid column index")
	ErrDuplicateIndex        = errors.New("duplicate column index")
	ErrColumnIndexOutOfRange = errors.New("column index out of range")
)

// ColumnIndexOutOfRangeError is returned for an index outside [0, Count).
type ColumnIndexOutOfRangeError struct {
	Index int
	Count int
}

func (e *ColumnIndexOutOfRangeError) Error() string {
	return fmt.Sprintf("%s: %d (table has %d columns, valid 0..%d)", ErrColumnIndexOutOfRange, e.Index, e.Count, e.Count-1)
}

func (e *ColumnIndexOutOfRangeError) Unwrap() error { return ErrColumnIndexOutOfRange }
