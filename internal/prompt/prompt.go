// Package prompt is the interactive adapter: it asks the operator for what
// the run was not given up front. It only talks to an io.Reader and an
// io.Writer; the CLI decides whether stdin is a terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"tabetl/internal/selector"
	"tabetl/internal/source"

	"golang.org/x/term"
)

// ErrNoInput means the input ended before an answer was read.
var ErrNoInput = errors.New("prompt: no input")

// maxAttempts bounds re-asking after an invalid column answer.
const maxAttempts = 3

type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

func New(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(in), out: out}
}

// IsTerminal reports whether f is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// Ask prints question and returns the trimmed answer line.
func (p *Prompter) Ask(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	fmt.Fprint(p.out, question)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("prompt: read: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Source asks for a file path, or for an API URL and key when the path is
// left blank. Fields already set in given are not asked again.
func (p *Prompter) Source(ctx context.Context, given source.Request) (source.Request, error) {
	req := given
	if req.FilePath == "" && req.APIURL == "" {
		path, err := p.Ask(ctx, "Path to a .csv or .parquet file (Enter to use the API): ")
		if err != nil {
			return req, err
		}
		req.FilePath = path
	}
	if req.FilePath != "" {
		return req, nil
	}
	if req.APIURL == "" {
		u, err := p.Ask(ctx, "API URL: ")
		if err != nil {
			return req, err
		}
		req.APIURL = u
	}
	if req.APIKey == "" {
		k, err := p.Ask(ctx, "API key: ")
		if err != nil {
			return req, err
		}
		req.APIKey = k
	}
	return req, nil
}

// ChooseKey lists keys and asks for one. Blank answers are asked again.
func (p *Prompter) ChooseKey(ctx context.Context, keys []string) (string, error) {
	fmt.Fprintln(p.out, "\nAvailable keys:")
	for _, k := range keys {
		fmt.Fprintf(p.out, "  %s\n", k)
	}
	for i := 0; i < maxAttempts; i++ {
		k, err := p.Ask(ctx, "Key holding the data: ")
		if err != nil {
			return "", err
		}
		if k != "" {
			return k, nil
		}
	}
	return "", fmt.Errorf("prompt: no key chosen after %d attempts", maxAttempts)
}

func (p *Prompter) listColumns(title string, columns []string) {
	fmt.Fprintf(p.out, "\n%s\n", title)
	for i, c := range columns {
		fmt.Fprintf(p.out, "%d: %s\n", i, c)
	}
}

// Retain asks which columns to keep, re-asking on invalid answers.
func (p *Prompter) Retain(ctx context.Context, columns []string) ([]string, error) {
	p.listColumns("Available columns:", columns)
	return p.askColumns(ctx, "Column numbers to keep, comma separated: ", columns, selector.Retain)
}

// Dates asks which columns hold dates. A blank answer means none.
func (p *Prompter) Dates(ctx context.Context, columns []string) ([]string, error) {
	p.listColumns("Available columns (date selection):", columns)
	return p.askColumns(ctx, "Column numbers holding dates, comma separated (Enter for none): ", columns, selector.Dates)
}

func (p *Prompter) askColumns(ctx context.Context, q string, columns []string, parse func(string, []string) ([]string, error)) ([]string, error) {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		ans, err := p.Ask(ctx, q)
		if err != nil {
			return nil, err
		}
		names, err := parse(ans, columns)
		if err == nil {
			return names, nil
		}
		lastErr = err
		fmt.Fprintf(p.out, "  %v\n", err)
	}
	return nil, lastErr
}

var _ source.KeyChooser = (*Prompter)(nil)
