package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"tabetl/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBackend counts events; safe for concurrent use.
type recordingBackend struct {
	mu       sync.Mutex
	counters map[string]float64
	closed   bool
}

func (b *recordingBackend) IncCounter(name string, delta float64, _ metrics.Labels) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.counters == nil {
		b.counters = map[string]float64{}
	}
	b.counters[name] += delta
}

func (b *recordingBackend) ObserveHistogram(string, float64, metrics.Labels) {}
func (b *recordingBackend) Flush() error                                     { return nil }
func (b *recordingBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

const inputCSV = "User ID,Created At,Name\n1,2024-03-05,a\n1,2024-03-05,a\n2,2024-03-07,b\n"

func writeInput(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.csv")
	require.NoError(t, os.WriteFile(path, []byte(inputCSV), 0o644))
	return path
}

type harness struct {
	stdout, stderr bytes.Buffer
	deps           deps
}

func newHarness(stdin string, terminal bool) *harness {
	h := &harness{}
	h.deps = deps{
		Stdin:      strings.NewReader(stdin),
		Stdout:     &h.stdout,
		Stderr:     &h.stderr,
		IsTerminal: func() bool { return terminal },
		Now:        func() time.Time { return time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC) },
	}
	return h
}

func TestRun_FileWithFlags(t *testing.T) {
	t.Parallel()
	in := writeInput(t)
	out := t.TempDir()
	h := newHarness("", false)

	code := run(context.Background(), []string{
		"run", "--file", in, "--columns", "0,1", "--dates", "1",
		"--out-dir", out, "--log-level", "warn",
	}, h.deps)
	require.Equal(t, 0, code, h.stderr.String())

	want := filepath.Join(out, "users_2024-03-05-14:07:09.parquet")
	assert.Contains(t, h.stdout.String(), "saved to "+want)
	assert.Contains(t, h.stdout.String(), "2024-03-07 00:00:00")
	_, err := os.Stat(want)
	assert.NoError(t, err)
}

func TestRun_InteractivePrompts(t *testing.T) {
	t.Parallel()
	in := writeInput(t)
	out := t.TempDir()
	h := newHarness(in+"\n0,2\n\n", true)

	code := run(context.Background(), []string{"run", "--out-dir", out, "--format", "csv", "--log-level", "error"}, h.deps)
	require.Equal(t, 0, code, h.stderr.String())

	stdout := h.stdout.String()
	assert.Contains(t, stdout, "0: user_id")
	assert.Contains(t, stdout, "2: name")
	assert.Contains(t, stdout, "saved to "+filepath.Join(out, "users_2024-03-05-14:07:09.csv"))
}

func TestRun_ConfigFile(t *testing.T) {
	t.Parallel()
	in := writeInput(t)
	dir := t.TempDir()
	cfg := filepath.Join(dir, "pipeline.yaml")
	yaml := "job: users\n" +
		"log: { level: error }\n" +
		"source:\n  file: " + in + "\n" +
		"select:\n  columns: \"2\"\n  dates: \"\"\n" +
		"output:\n  dir: " + filepath.Join(dir, "out") + "\n  sample: 1\n" +
		"export:\n  kind: sqlite\n  dsn: \"file::memory:\"\n  table: users\n"
	require.NoError(t, os.WriteFile(cfg, []byte(yaml), 0o644))

	h := newHarness("", false)
	code := run(context.Background(), []string{"run", "--config", cfg}, h.deps)
	require.Equal(t, 0, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "saved to ")
}

func TestRun_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"valid", []string{"run", "--validate", "--file", "x.csv"}, 0, "config ok", ""},
		{"bad format", []string{"run", "--validate", "--format", "xlsx"}, 2, "", "output.format"},
		{"bad epoch policy", []string{"run", "--validate", "--epoch-policy", "never"}, 2, "", "dates.epoch_policy"},
		{"export without dsn", []string{"run", "--validate", "--export-kind", "sqlite", "--export-table", "t"}, 2, "", "export.dsn"},
		{"missing config file", []string{"run", "--config", "/nonexistent/p.yaml"}, 2, "", "read config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness("", false)
			code := run(context.Background(), tt.args, h.deps)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, h.stdout.String(), tt.wantOut)
			assert.Contains(t, h.stderr.String(), tt.wantErr)
		})
	}
}

func TestRun_ExitCodes(t *testing.T) {
	t.Parallel()
	in := writeInput(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
		want int
	}{
		{"unknown flag", []string{"run", "--nope"}, 2},
		{"no source without terminal", []string{"run", "--out-dir", dir}, 2},
		{"api url without key", []string{"run", "--api-url", "http://127.0.0.1:1/x", "--out-dir", dir}, 2},
		{"no columns without terminal", []string{"run", "--file", in, "--out-dir", dir}, 2},
		{"index out of range", []string{"run", "--file", in, "--columns", "7", "--dates", "", "--out-dir", dir}, 2},
		{"missing input file", []string{"run", "--file", filepath.Join(dir, "none.csv"), "--columns", "0", "--dates", "", "--out-dir", dir}, 1},
		{"unsupported input", []string{"run", "--file", filepath.Join(dir, "in.xlsx"), "--columns", "0", "--dates", "", "--out-dir", dir}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness("", false)
			code := run(context.Background(), append(tt.args, "--log-level", "error"), h.deps)
			assert.Equal(t, tt.want, code, h.stderr.String())
		})
	}
}

// Not parallel: installs a process-wide metrics backend.
func TestRun_DatadogBackend(t *testing.T) {
	in := writeInput(t)
	rec := &recordingBackend{}
	var gotJob string
	var gotTags []string

	h := newHarness("", false)
	h.deps.BackendFactory = func(_ context.Context, job string, tags []string) (backendCloser, error) {
		gotJob, gotTags = job, tags
		return rec, nil
	}

	code := run(context.Background(), []string{
		"run", "--file", in, "--columns", "0", "--dates", "",
		"--out-dir", t.TempDir(), "--metrics-backend", "datadog", "--metrics-tags", "team:data, env:dev",
		"--log-level", "error",
	}, h.deps)
	require.Equal(t, 0, code, h.stderr.String())

	assert.Equal(t, "tabetl", gotJob)
	assert.Equal(t, []string{"team:data", "env:dev"}, gotTags)
	assert.True(t, rec.closed)
	assert.Equal(t, float64(3+1+2), rec.counters[metrics.RecordsTotal], "loaded + duplicate + written")
	assert.Greater(t, rec.counters[metrics.StepTotal], float64(0))
}

// Not parallel: the failure path still resets the backend.
func TestRun_DatadogInitFailure(t *testing.T) {
	h := newHarness("", false)
	h.deps.BackendFactory = func(context.Context, string, []string) (backendCloser, error) {
		return nil, errors.New("no api key")
	}
	code := run(context.Background(), []string{"run", "--file", "x.csv", "--columns", "0", "--dates", "", "--metrics-backend", "datadog"}, h.deps)
	assert.Equal(t, 2, code)
	assert.Contains(t, h.stderr.String(), "datadog backend init failed")
}
