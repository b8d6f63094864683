package config

import (
	"net/url"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding, addressed by a dotted config path.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate checks a pipeline after defaults have been applied. A missing
// source is not an issue here: it is prompted for, or reported by the loader.
func Validate(p Pipeline) []Issue {
	var out []Issue
	add := func(sev Severity, path, msg string) {
		out = append(out, Issue{Severity: sev, Path: path, Message: msg})
	}

	switch strings.ToLower(p.Log.Level) {
	case "debug", "info", "warn", "error", "trace":
	default:
		add(SeverityError, "log.level", "must be one of trace, debug, info, warn, error")
	}
	switch p.Log.Format {
	case "console", "json":
	default:
		add(SeverityError, "log.format", "must be console or json")
	}

	if p.Source.File != "" && p.Source.API != nil && p.Source.API.URL != "" {
		add(SeverityWarning, "source", "both file and api given; file wins")
	}
	if api := p.Source.API; api != nil && api.URL != "" {
		u, err := url.Parse(api.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			add(SeverityError, "source.api.url", "must be an absolute http(s) URL")
		} else if u.Scheme != "http" && u.Scheme != "https" {
			add(SeverityError, "source.api.url", "scheme must be http or https")
		}
		if api.Key == "" {
			add(SeverityWarning, "source.api.key", "empty key; the loader requires one")
		}
		if api.Timeout < 0 {
			add(SeverityError, "source.api.timeout", "must not be negative")
		}
	}
	if p.Source.Parser != nil {
		if c := p.Source.Parser.String("comma", ","); len([]rune(c)) != 1 && c != `\t` {
			add(SeverityError, "source.parser.comma", "must be a single character")
		}
	}

	switch p.Dates.EpochPolicy {
	case "legacy", "auto":
	default:
		add(SeverityError, "dates.epoch_policy", "must be legacy or auto")
	}
	if _, err := p.Dates.ResolveLocation(); err != nil {
		add(SeverityError, "dates.location", "unknown time zone: "+p.Dates.Location)
	}

	switch p.Output.Format {
	case "parquet", "csv":
	default:
		add(SeverityError, "output.format", "must be parquet or csv")
	}
	if p.Output.Sample < 0 {
		add(SeverityError, "output.sample", "must not be negative")
	}

	if p.Export.Kind != "" {
		switch p.Export.Kind {
		case "sqlite", "postgres", "mssql":
		default:
			add(SeverityError, "export.kind", "must be sqlite, postgres or mssql")
		}
		if p.Export.DSN == "" {
			add(SeverityError, "export.dsn", "required when export.kind is set")
		}
		if p.Export.Table == "" {
			add(SeverityError, "export.table", "required when export.kind is set")
		}
	}

	switch p.Metrics.Backend {
	case "none", "datadog":
	default:
		add(SeverityWarning, "metrics.backend", "unknown backend; metrics disabled")
	}
	return out
}
