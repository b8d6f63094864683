package persist

import (
	"path/filepath"
	"strings"
	"time"
)

// TimestampLayout is the timestamp part of derived output names.
const TimestampLayout = "2006-01-02-15:04:05"

// DeriveName builds the output base name (no extension) for a source. For
// a URL it is the host, the text between "//" and the next "/"; for a file
// path it is the base name without extension. The timestamp is rendered in
// now's location.
func DeriveName(source string, now time.Time) string {
	stem := ""
	if i := strings.Index(source, "//"); i >= 0 {
		rest := source[i+2:]
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			rest = rest[:j]
		}
		stem = rest
	} else if source != "" {
		base := filepath.Base(source)
		stem = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if i := strings.IndexAny(stem, "?#"); i >= 0 {
		stem = stem[:i]
	}
	if stem == "" || stem == "." || stem == string(filepath.Separator) {
		stem = "output"
	}
	return stem + "_" + now.Format(TimestampLayout)
}
