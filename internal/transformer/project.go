package transformer

import (
	"fmt"

	"tabetl/internal/table"
)

// Project keeps the named columns in the given order.
func Project(t *table.Table, names []string) (*table.Table, error) {
	out, err := t.Select(names)
	if err != nil {
		return nil, fmt.Errorf("project: %w", err)
	}
	return out, nil
}
