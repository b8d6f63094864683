package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_YAML(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "p.yaml", `
job: nightly
source:
  api:
    url: https://api.example.com/v1/items
    key: ${API_KEY}
    data_key: results
    timeout: 5s
  parser:
    comma: ";"
select:
  columns: "0,2"
dates:
  epoch_policy: auto
  location: UTC
output:
  format: csv
export:
  kind: sqlite
  dsn: out.db
  table: items
`)
	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "nightly", p.Job)
	require.NotNil(t, p.Source.API)
	assert.Equal(t, "results", p.Source.API.DataKey)
	assert.Equal(t, 5*time.Second, p.Source.API.Timeout)
	assert.Equal(t, ';', p.Source.Parser.Rune("comma", ','))
	require.NotNil(t, p.Select.Columns)
	assert.Equal(t, "0,2", *p.Select.Columns)
	assert.Nil(t, p.Select.Dates)
	assert.Equal(t, "csv", p.Output.Format)
	assert.Equal(t, DefaultOutputDir, p.Output.Dir)
	assert.Equal(t, DefaultSample, p.Output.Sample)
	assert.Equal(t, "items", p.Export.Table)
	assert.Empty(t, Validate(p))
}

func TestLoad_JSON(t *testing.T) {
	t.Parallel()
	path := writeFile(t, "p.json", `{"source":{"file":"in.csv"},"select":{"dates":""}}`)
	p, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "in.csv", p.Source.File)
	require.NotNil(t, p.Select.Dates)
	assert.Equal(t, "", *p.Select.Dates)
	assert.Equal(t, DefaultJob, p.Job)
	assert.Equal(t, "legacy", p.Dates.EpochPolicy)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = Load(writeFile(t, "bad.yaml", "job: [unterminated"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode config")
}

func TestApplyDefaults_Idempotent(t *testing.T) {
	t.Parallel()
	var p Pipeline
	p.ApplyDefaults()
	once := p
	p.ApplyDefaults()
	assert.Equal(t, once, p)
	assert.Equal(t, "info", p.Log.Level)
	assert.Equal(t, "console", p.Log.Format)
	assert.Equal(t, "none", p.Metrics.Backend)
}

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		mutate   func(p *Pipeline)
		wantPath string
		wantSev  Severity
	}{
		{"log level", func(p *Pipeline) { p.Log.Level = "loud" }, "log.level", SeverityError},
		{"log format", func(p *Pipeline) { p.Log.Format = "xml" }, "log.format", SeverityError},
		{"both sources", func(p *Pipeline) {
			p.Source.File = "in.csv"
			p.Source.API = &APIConfig{URL: "https://h", Key: "k"}
		}, "source", SeverityWarning},
		{"relative url", func(p *Pipeline) { p.Source.API = &APIConfig{URL: "/v1", Key: "k"} }, "source.api.url", SeverityError},
		{"ftp url", func(p *Pipeline) { p.Source.API = &APIConfig{URL: "ftp://h/x", Key: "k"} }, "source.api.url", SeverityError},
		{"empty key", func(p *Pipeline) { p.Source.API = &APIConfig{URL: "https://h"} }, "source.api.key", SeverityWarning},
		{"negative timeout", func(p *Pipeline) {
			p.Source.API = &APIConfig{URL: "https://h", Key: "k", Timeout: -time.Second}
		}, "source.api.timeout", SeverityError},
		{"parser comma", func(p *Pipeline) { p.Source.Parser = Options{"comma": ";;"} }, "source.parser.comma", SeverityError},
		{"epoch policy", func(p *Pipeline) { p.Dates.EpochPolicy = "guess" }, "dates.epoch_policy", SeverityError},
		{"location", func(p *Pipeline) { p.Dates.Location = "Mars/Olympus" }, "dates.location", SeverityError},
		{"output format", func(p *Pipeline) { p.Output.Format = "xlsx" }, "output.format", SeverityError},
		{"sample", func(p *Pipeline) { p.Output.Sample = -1 }, "output.sample", SeverityError},
		{"export kind", func(p *Pipeline) { p.Export = ExportConfig{Kind: "oracle", DSN: "x", Table: "t"} }, "export.kind", SeverityError},
		{"export dsn", func(p *Pipeline) { p.Export = ExportConfig{Kind: "sqlite", Table: "t"} }, "export.dsn", SeverityError},
		{"export table", func(p *Pipeline) { p.Export = ExportConfig{Kind: "sqlite", DSN: "x"} }, "export.table", SeverityError},
		{"metrics backend", func(p *Pipeline) { p.Metrics.Backend = "statsd" }, "metrics.backend", SeverityWarning},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var p Pipeline
			p.ApplyDefaults()
			tt.mutate(&p)

			issues := Validate(p)
			require.Len(t, issues, 1, "%+v", issues)
			assert.Equal(t, tt.wantPath, issues[0].Path)
			assert.Equal(t, tt.wantSev, issues[0].Severity)
			assert.Equal(t, tt.wantSev == SeverityError, HasErrors(issues))
		})
	}
}

func TestValidate_TabComma(t *testing.T) {
	t.Parallel()
	var p Pipeline
	p.ApplyDefaults()
	p.Source.Parser = Options{"comma": `\t`}
	assert.Empty(t, Validate(p))
}

func TestResolveLocation(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"", "Local", "local"} {
		loc, err := DatesConfig{Location: name}.ResolveLocation()
		require.NoError(t, err)
		assert.Equal(t, time.Local, loc)
	}
	loc, err := DatesConfig{Location: "UTC"}.ResolveLocation()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	_, err = DatesConfig{Location: "Nowhere/City"}.ResolveLocation()
	assert.Error(t, err)
}

func TestSetupLogger_JSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log, closer, err := SetupLogger(LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer()

	log.Info().Msg("hidden")
	log.Warn().Str("stage", "load").Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"stage":"load"`)
}

func TestSetupLogger_File(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	log, closer, err := SetupLogger(LogConfig{Level: "bogus", Format: "console", File: path}, &buf)
	require.NoError(t, err)
	log.Debug().Msg("below default")
	log.Info().Msg("to both")
	require.NoError(t, closer())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"message":"to both"`)
	assert.Contains(t, buf.String(), "to both")
}

func TestOptions(t *testing.T) {
	t.Parallel()
	o := Options{
		"s":     "x",
		"n":     3,
		"f":     4.0,
		"ns":    " 7 ",
		"bad":   "seven",
		"b":     true,
		"bs":    "false",
		"tab":   `\t`,
		"semi":  ";",
		"nil":   nil,
		"anymp": map[string]any{"a": "1", "b": 2},
		"strmp": map[string]string{"c": "3"},
	}

	assert.Equal(t, "x", o.String("s", "d"))
	assert.Equal(t, "3", o.String("n", "d"))
	assert.Equal(t, "d", o.String("nil", "d"))
	assert.Equal(t, "d", o.String("missing", "d"))

	assert.Equal(t, 3, o.Int("n", 0))
	assert.Equal(t, 4, o.Int("f", 0))
	assert.Equal(t, 7, o.Int("ns", 0))
	assert.Equal(t, 9, o.Int("bad", 9))
	assert.Equal(t, 9, o.Int("b", 9))

	assert.True(t, o.Bool("b", false))
	assert.False(t, o.Bool("bs", true))
	assert.True(t, o.Bool("s", true))
	assert.True(t, o.Bool("missing", true))

	assert.Equal(t, '\t', o.Rune("tab", ','))
	assert.Equal(t, ';', o.Rune("semi", ','))
	assert.Equal(t, ',', o.Rune("missing", ','))

	assert.Equal(t, map[string]string{"a": "1"}, o.StringMap("anymp"))
	assert.Equal(t, map[string]string{"c": "3"}, o.StringMap("strmp"))
	assert.Empty(t, o.StringMap("missing"))
}
