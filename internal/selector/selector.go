// Package selector parses operator column choices. Retention and date
// choices go through the same validated parser, so a bad index fails the
// same way for both.
package selector

import (
	"fmt"
	"strconv"
	"strings"
)

// Selection is the operator's answer for one run.
type Selection struct {
	// Retain is the ordered list of columns to keep. Never empty.
	Retain []string
	// Dates are the columns to run date inference on. May be empty.
	Dates []string
}

// ParseIndices parses comma separated 0-based indices against a table of
// count columns. Blank input yields nil. Tokens are trimmed; an empty or
// non-integer token, a repeated index, or an index outside [0, count) is an
// error.
func ParseIndices(input string, count int) ([]int, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, nil
	}
	parts := strings.Split(input, ",")
	out := make([]int, 0, len(parts))
	seen := make(map[int]bool, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIndex, p)
		}
		if n < 0 || n >= count {
			return nil, &ColumnIndexOutOfRangeError{Index: n, Count: count}
		}
		if seen[n] {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateIndex, n)
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

// Retain resolves the retention answer into column names. At least one
// column is required.
func Retain(input string, columns []string) ([]string, error) {
	idx, err := ParseIndices(input, len(columns))
	if err != nil {
		return nil, err
	}
	if len(idx) == 0 {
		return nil, ErrEmptySelection
	}
	return names(idx, columns), nil
}

// Dates resolves the date-column answer. Blank input means no date columns.
func Dates(input string, columns []string) ([]string, error) {
	idx, err := ParseIndices(input, len(columns))
	if err != nil {
		return nil, err
	}
	return names(idx, columns), nil
}

func names(idx []int, columns []string) []string {
	if len(idx) == 0 {
		return nil
	}
	out := make([]string, len(idx))
	for i, n := range idx {
		out[i] = columns[n]
	}
	return out
}
