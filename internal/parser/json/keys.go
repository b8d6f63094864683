package json

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	ErrInvalidJSON = errors.New("invalid JSON")
	ErrKeyNotFound = errors.New("key not found")
)

// Shape is the kind of a body's root value.
type Shape int

const (
	ShapeOther Shape = iota
	ShapeObject
	ShapeArray
)

// Body is a validated JSON document.
type Body struct {
	raw  []byte
	root gjson.Result
}

// ParseBody validates b and returns it for shape inspection.
func ParseBody(b []byte) (*Body, error) {
	if !gjson.ValidBytes(b) {
		return nil, ErrInvalidJSON
	}
	return &Body{raw: b, root: gjson.ParseBytes(b)}, nil
}

// Shape reports the root kind.
func (b *Body) Shape() Shape {
	switch {
	case b.root.IsObject():
		return ShapeObject
	case b.root.IsArray():
		return ShapeArray
	default:
		return ShapeOther
	}
}

// Keys lists the root object's keys in document order. Duplicate keys are
// listed once.
func (b *Body) Keys() []string {
	var out []string
	seen := make(map[string]bool)
	b.root.ForEach(func(k, _ gjson.Result) bool {
		if !seen[k.String()] {
			seen[k.String()] = true
			out = append(out, k.String())
		}
		return true
	})
	return out
}

// Lookup returns the raw JSON at key. An exact top-level key wins; otherwise
// key is tried as a gjson path such as "data.items".
func (b *Body) Lookup(key string) ([]byte, error) {
	var found gjson.Result
	b.root.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found = v
			return false
		}
		return true
	})
	if !found.Exists() {
		found = b.root.Get(key)
	}
	if !found.Exists() {
		return nil, fmt.Errorf("%w: %q", ErrKeyNotFound, key)
	}
	return []byte(found.Raw), nil
}

// Raw returns the document bytes.
func (b *Body) Raw() []byte { return b.raw }
