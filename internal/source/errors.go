package source

import (
	"errors"
	"fmt"

	"tabetl/internal/datasource/httpds"
	jsonparser "tabetl/internal/parser/json"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported file format")
	ErrMissingSource       = errors.New("missing source: need a file path or both api url and api key")
	ErrInvalidResponseBody = errors.New("invalid response body")
	ErrNoKeyChooser        = errors.New("response is an object and no data key was given")

	ErrKeyNotFound      = jsonparser.ErrKeyNotFound
	ErrUnsupportedShape = jsonparser.ErrUnsupportedShape
	ErrFetch            = httpds.ErrFetch
)

// APIError is a non-200 response. Body is the raw response text.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status %d: %s", e.StatusCode, e.Body)
}

// InvalidResponseBodyError carries the raw text of a body that is not JSON.
type InvalidResponseBodyError struct {
	Body string
}

func (e *InvalidResponseBodyError) Error() string {
	const max = 512
	b := e.Body
	if len(b) > max {
		b = b[:max] + "..."
	}
	return fmt.Sprintf("%s: %q", ErrInvalidResponseBody, b)
}

func (e *InvalidResponseBodyError) Unwrap() error { return ErrInvalidResponseBody }
