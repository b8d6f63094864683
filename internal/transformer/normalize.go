package transformer

import (
	"fmt"
	"strings"

	"tabetl/internal/table"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// NormalizeName lower-cases name and replaces spaces with underscores.
func NormalizeName(name string) string {
	return strings.ReplaceAll(cases.Lower(language.Und).String(name), " ", "_")
}

// NormalizeNames renames every column with NormalizeName. Names that would
// collide get a numeric suffix, first come first served.
func NormalizeNames(t *table.Table) error {
	names := t.Columns()
	taken := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, n := range names {
		nn := table.UniqueName(func(s string) bool { return taken[s] }, NormalizeName(n))
		taken[nn] = true
		out[i] = nn
	}
	if err := t.Rename(out); err != nil {
		return fmt.Errorf("normalize column names: %w", err)
	}
	return nil
}
