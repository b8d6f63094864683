// Package csv reads delimited text into a table.Table.
//
// The reader honours the same parser options as pipeline config
// (has_header, comma, trim_space, lazy_quotes, fields_per_record,
// header_map) and infers one scalar kind per column once all rows are read.
package csv

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tabetl/internal/config"
	"tabetl/internal/table"
)

// ReadTable parses src into a table. The header row (or positional names
// "0", "1", ... when has_header is false) names the columns. Short records
// are padded with nulls; records wider than the header grow extra columns
// named by their position.
func ReadTable(ctx context.Context, src io.Reader, opt config.Options) (*table.Table, error) {
	hasHeader := opt.Bool("has_header", true)
	comma := opt.Rune("comma", ',')
	trim := opt.Bool("trim_space", true)
	hm := opt.StringMap("header_map")
	lazy := opt.Bool("lazy_quotes", false)
	fieldsPer := opt.Int("fields_per_record", 0)

	cr := csv.NewReader(src)
	cr.Comma = comma
	cr.LazyQuotes = lazy
	if fieldsPer != 0 {
		cr.FieldsPerRecord = fieldsPer
	} else {
		cr.FieldsPerRecord = -1
	}

	var header []string
	if hasHeader {
		hdr, err := cr.Read()
		if err == io.EOF {
			return table.New()
		}
		if err != nil {
			return nil, fmt.Errorf("read header: %w", err)
		}
		header = make([]string, len(hdr))
		for i, h := range hdr {
			if i == 0 {
				h = strings.TrimPrefix(h, "\uFEFF")
			}
			if trim {
				h = strings.TrimSpace(h)
			}
			if mapped, ok := hm[h]; ok {
				h = mapped
			}
			header[i] = h
		}
	}

	var raw [][]string
	line := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("csv read line %d: %w", line, err)
		}
		for len(header) < len(rec) {
			header = append(header, strconv.Itoa(len(header)))
		}
		row := make([]string, len(rec))
		for i, v := range rec {
			if trim {
				v = strings.TrimSpace(v)
			}
			row[i] = v
		}
		raw = append(raw, row)
	}

	cols := make([]table.Column, len(header))
	taken := make(map[string]bool, len(header))
	for i, name := range header {
		name = table.UniqueName(func(s string) bool { return taken[s] }, name)
		taken[name] = true
		cols[i] = table.Column{Name: name, Values: typedColumn(raw, i)}
	}
	return table.New(cols...)
}

// Kind labels produced by InferKind.
const (
	KindInteger = "integer"
	KindFloat   = "float"
	KindBoolean = "boolean"
	KindText    = "text"
)

// InferKind picks the most specific kind that every non-empty cell parses
// as. A column with no non-empty cells is text.
func InferKind(cells []string) string {
	var seen bool
	allInt, allFloat, allBool := true, true, true
	for _, v := range cells {
		if v == "" {
			continue
		}
		seen = true
		if allInt {
			if _, err := strconv.ParseInt(v, 10, 64); err != nil {
				allInt = false
			}
		}
		if allFloat {
			if _, err := strconv.ParseFloat(v, 64); err != nil {
				allFloat = false
			}
		}
		if allBool {
			if _, ok := parseBool(v); !ok {
				allBool = false
			}
		}
		if !allInt && !allFloat && !allBool {
			break
		}
	}
	switch {
	case !seen:
		return KindText
	case allInt:
		return KindInteger
	case allFloat:
		return KindFloat
	case allBool:
		return KindBoolean
	default:
		return KindText
	}
}

func typedColumn(raw [][]string, col int) []table.Value {
	cells := make([]string, len(raw))
	for r, rec := range raw {
		if col < len(rec) {
			cells[r] = rec[col]
		}
	}
	kind := InferKind(cells)

	out := make([]table.Value, len(cells))
	for r, v := range cells {
		if v == "" {
			out[r] = table.Null()
			continue
		}
		switch kind {
		case KindInteger:
			n, _ := strconv.ParseInt(v, 10, 64)
			out[r] = table.Int(n)
		case KindFloat:
			f, _ := strconv.ParseFloat(v, 64)
			out[r] = table.Float(f)
		case KindBoolean:
			b, _ := parseBool(v)
			out[r] = table.Bool(b)
		default:
			out[r] = table.String(v)
		}
	}
	return out
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}
