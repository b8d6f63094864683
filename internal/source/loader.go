// Package source loads the raw input table from a local file or a JSON API.
//
// Files dispatch on extension (.csv, .parquet). An API source is fetched
// once with the key appended as the "key" query parameter; a JSON object
// body needs a data key, taken from the request or asked of a KeyChooser,
// while an array body becomes the table directly.
package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"tabetl/internal/config"
	"tabetl/internal/datasource/file"
	"tabetl/internal/datasource/httpds"
	csvparser "tabetl/internal/parser/csv"
	jsonparser "tabetl/internal/parser/json"
	pqparser "tabetl/internal/parser/parquet"
	"tabetl/internal/table"

	"github.com/rs/zerolog"
)

// KeyChooser picks one of the top-level keys of an object response.
type KeyChooser interface {
	ChooseKey(ctx context.Context, keys []string) (string, error)
}

// Request names the source of one run. FilePath wins over the API fields.
type Request struct {
	FilePath string
	APIURL   string
	APIKey   string
	// DataKey selects the array inside an object response. Empty means ask
	// the KeyChooser.
	DataKey string
}

// Label is the string output names are derived from: the file path or the
// API URL.
func (r Request) Label() string {
	if r.FilePath != "" {
		return r.FilePath
	}
	return r.APIURL
}

type Options struct {
	HTTP    *httpds.Client
	Chooser KeyChooser
	Parser  config.Options
	Logger  zerolog.Logger
}

type Loader struct {
	http    *httpds.Client
	chooser KeyChooser
	parser  config.Options
	log     zerolog.Logger
}

func NewLoader(opts Options) *Loader {
	hc := opts.HTTP
	if hc == nil {
		hc = httpds.NewClient(httpds.Config{})
	}
	return &Loader{
		http:    hc,
		chooser: opts.Chooser,
		parser:  opts.Parser,
		log:     opts.Logger.With().Str("component", "source").Logger(),
	}
}

// Load returns the table for req. All errors are fatal to the run.
func (l *Loader) Load(ctx context.Context, req Request) (*table.Table, error) {
	switch {
	case req.FilePath != "":
		return l.loadFile(ctx, req.FilePath)
	case req.APIURL != "" && req.APIKey != "":
		return l.loadAPI(ctx, req)
	default:
		return nil, ErrMissingSource
	}
}

func (l *Loader) loadFile(ctx context.Context, path string) (*table.Table, error) {
	src := file.NewLocal(path)
	ext := strings.ToLower(filepath.Ext(path))
	l.log.Info().Str("path", path).Str("format", strings.TrimPrefix(ext, ".")).Msg("loading file")

	switch ext {
	case ".csv":
		rc, err := src.Open(ctx)
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		t, err := csvparser.ReadTable(ctx, rc, l.parser)
		if err != nil {
			return nil, fmt.Errorf("parse csv %s: %w", path, err)
		}
		return t, nil

	case ".parquet":
		r, err := src.OpenRandom(ctx)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		t, err := pqparser.ReadTable(ctx, r, r.Size)
		if err != nil {
			return nil, fmt.Errorf("parse parquet %s: %w", path, err)
		}
		return t, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// WithKey appends key as the "key" query parameter, keeping any existing
// query.
func WithKey(rawURL, key string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	q := u.Query()
	q.Set("key", key)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (l *Loader) loadAPI(ctx context.Context, req Request) (*table.Table, error) {
	target, err := WithKey(req.APIURL, req.APIKey)
	if err != nil {
		return nil, err
	}
	l.log.Info().Str("url", req.APIURL).Msg("fetching api")

	resp, err := l.http.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		l.log.Error().Int("status", resp.StatusCode).Str("body", string(resp.Body)).Msg("api request failed")
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	body, err := jsonparser.ParseBody(resp.Body)
	if err != nil {
		return nil, &InvalidResponseBodyError{Body: string(resp.Body)}
	}

	var raw []byte
	switch body.Shape() {
	case jsonparser.ShapeArray:
		raw = body.Raw()
	case jsonparser.ShapeObject:
		key, err := l.resolveKey(ctx, req.DataKey, body.Keys())
		if err != nil {
			return nil, err
		}
		if raw, err = body.Lookup(key); err != nil {
			return nil, err
		}
		l.log.Info().Str("key", key).Msg("using data key")
	default:
		return nil, fmt.Errorf("%w: root is neither object nor array", ErrUnsupportedShape)
	}

	v, err := jsonparser.DecodeBytes(raw)
	if err != nil {
		return nil, &InvalidResponseBodyError{Body: string(resp.Body)}
	}
	t, err := jsonparser.BuildTable(v)
	if err != nil {
		return nil, err
	}
	l.log.Info().Int("rows", t.Len()).Int("columns", t.Width()).Msg("api table built")
	return t, nil
}

func (l *Loader) resolveKey(ctx context.Context, given string, keys []string) (string, error) {
	if given != "" {
		return given, nil
	}
	if l.chooser == nil {
		return "", fmt.Errorf("%w (keys: %s)", ErrNoKeyChooser, strings.Join(keys, ", "))
	}
	return l.chooser.ChooseKey(ctx, keys)
}
