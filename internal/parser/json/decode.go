// Package json turns JSON response bodies into tables.
//
// Decoding walks tokens so that object keys keep their document order, which
// becomes column order. Key discovery and key lookup use gjson over the raw
// body, so nothing is materialised before the operator picks a key.
package json

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"tabetl/internal/table"
)

// Decode reads exactly one JSON value from r. Trailing non-space input is an
// error.
func Decode(r io.Reader) (table.Value, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return table.Null(), fmt.Errorf("json: read first token: %w", err)
	}
	v, err := valueFromFirstToken(dec, tok)
	if err != nil {
		return table.Null(), err
	}
	if _, err := dec.Token(); err != io.EOF {
		return table.Null(), fmt.Errorf("json: trailing data after top-level value")
	}
	return v, nil
}

// DecodeBytes is Decode over a byte slice.
func DecodeBytes(b []byte) (table.Value, error) {
	return Decode(bytes.NewReader(b))
}

func valueFromFirstToken(dec *json.Decoder, tok json.Token) (table.Value, error) {
	d, ok := tok.(json.Delim)
	if !ok {
		return table.FromAny(tok), nil
	}
	switch d {
	case '{':
		m := table.NewMap()
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return table.Null(), fmt.Errorf("json: read object key: %w", err)
			}
			k, ok := kt.(string)
			if !ok {
				return table.Null(), fmt.Errorf("json: object key not string (got %T)", kt)
			}
			vt, err := dec.Token()
			if err != nil {
				return table.Null(), fmt.Errorf("json: read value of %q: %w", k, err)
			}
			v, err := valueFromFirstToken(dec, vt)
			if err != nil {
				return table.Null(), err
			}
			m.Set(k, v)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return table.Null(), err
		}
		return table.MapOf(m), nil

	case '[':
		var items []table.Value
		for dec.More() {
			vt, err := dec.Token()
			if err != nil {
				return table.Null(), fmt.Errorf("json: read array element: %w", err)
			}
			v, err := valueFromFirstToken(dec, vt)
			if err != nil {
				return table.Null(), err
			}
			items = append(items, v)
		}
		if err := expectDelim(dec, ']'); err != nil {
			return table.Null(), err
		}
		return table.ListOf(items...), nil

	default:
		return table.Null(), fmt.Errorf("json: unexpected delimiter %q", d)
	}
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	end, err := dec.Token()
	if err != nil {
		return fmt.Errorf("json: read %q: %w", want, err)
	}
	if end != want {
		return fmt.Errorf("json: expected %q, got %v", want, end)
	}
	return nil
}
