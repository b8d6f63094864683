// Package pipeline runs one pass of the ETL: load, flatten, normalize
// names, select columns, infer dates, dedupe, project, persist, read back
// and preview, then optionally export to SQL.
//
// Operator answers either come pre-supplied (config or flags) or from a
// Selector, so the whole run is callable without a terminal.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"time"

	"tabetl/internal/config"
	"tabetl/internal/metrics"
	"tabetl/internal/persist"
	"tabetl/internal/preview"
	"tabetl/internal/selector"
	"tabetl/internal/source"
	"tabetl/internal/storage"
	"tabetl/internal/table"
	"tabetl/internal/transformer"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// ErrNoSelector is returned when a column answer is needed and neither a
// pre-supplied answer nor a Selector exists.
var ErrNoSelector = errors.New("column selection required but no selector available")

// Loader produces the raw table. *source.Loader satisfies it.
type Loader interface {
	Load(ctx context.Context, req source.Request) (*table.Table, error)
}

// Selector asks the operator for column choices. *prompt.Prompter
// satisfies it.
type Selector interface {
	Retain(ctx context.Context, columns []string) ([]string, error)
	Dates(ctx context.Context, columns []string) ([]string, error)
}

// Export names the optional SQL sink.
type Export struct {
	Storage storage.Config
	Table   string
}

type Options struct {
	Loader   Loader
	Selector Selector

	Dates     transformer.DateOptions
	OutputDir string
	Format    persist.Format
	// Sample is the number of round-tripped rows previewed. Zero means
	// config.DefaultSample; a negative value previews no rows.
	Sample int
	Export *Export

	// Out receives the saved path and the preview.
	Out    io.Writer
	Logger zerolog.Logger

	// Seams for tests.
	Now           func() time.Time
	Rand          *rand.Rand
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
}

type Runner struct {
	opts Options
}

// Result summarizes a finished run.
type Result struct {
	RunID       string
	Path        string
	Loaded      int
	Written     int
	Retained    []string
	Expansions  []transformer.Expansion
	DateReports []transformer.DateReport
	Dedupe      transformer.DedupeReport
	Sample      *table.Table
	Exported    int64
}

func New(opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Format == "" {
		opts.Format = persist.FormatParquet
	}
	if opts.OutputDir == "" {
		opts.OutputDir = config.DefaultOutputDir
	}
	if opts.Sample == 0 {
		opts.Sample = config.DefaultSample
	}
	if opts.NewRepository == nil {
		opts.NewRepository = storage.New
	}
	return &Runner{opts: opts}
}

// Run executes the pipeline for req. sel carries pre-supplied answers; a
// nil field is asked of the Selector.
func (r *Runner) Run(ctx context.Context, req source.Request, sel config.SelectConfig) (Result, error) {
	res := Result{RunID: ulid.Make().String()}
	log := r.opts.Logger.With().Str("component", "pipeline").Str("run_id", res.RunID).Logger()
	runStart := time.Now()

	var t *table.Table
	err := r.step(log, "load", func() (err error) {
		if r.opts.Loader == nil {
			return errors.New("pipeline: Loader is required")
		}
		t, err = r.opts.Loader.Load(ctx, req)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("load: %w", err)
	}
	res.Loaded = t.Len()
	metrics.AddRecords("loaded", t.Len())
	log.Info().Int("rows", t.Len()).Int("columns", t.Width()).Msg("source loaded")

	_ = r.step(log, "flatten", func() error {
		res.Expansions = transformer.Flatten(t)
		for _, e := range res.Expansions {
			log.Info().Str("column", e.Column).Strs("into", e.Into).Msg("expanded nested column")
		}
		return nil
	})

	err = r.step(log, "normalize", func() error {
		return transformer.NormalizeNames(t)
	})
	if err != nil {
		return res, fmt.Errorf("normalize: %w", err)
	}

	var choice selector.Selection
	err = r.step(log, "select", func() (err error) {
		choice, err = r.selection(ctx, t.Columns(), sel)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("select: %w", err)
	}
	res.Retained = choice.Retain

	_ = r.step(log, "dates", func() error {
		res.DateReports = transformer.InferDates(t, choice.Dates, r.opts.Dates)
		nulled := 0
		for _, rep := range res.DateReports {
			var ev *zerolog.Event
			if rep.Skipped != "" {
				ev = log.Warn().Str("reason", rep.Skipped)
			} else {
				ev = log.Info()
			}
			ev.Str("column", rep.Column).Str("kind", string(rep.Kind)).Str("unit", rep.Unit).
				Int("converted", rep.Converted).Int("nulled", rep.Nulled).Msg("date column")
			nulled += rep.Nulled
		}
		metrics.AddRecords("date_nulled", nulled)
		return nil
	})

	_ = r.step(log, "dedupe", func() error {
		res.Dedupe = transformer.Dedupe(t)
		for _, c := range res.Dedupe.Stringified {
			log.Info().Str("column", c).Msg("stringified nested cells")
		}
		log.Info().Int("dropped", res.Dedupe.Dropped).Int("rows", t.Len()).Msg("duplicates removed")
		metrics.AddRecords("duplicate", res.Dedupe.Dropped)
		return nil
	})

	var out *table.Table
	err = r.step(log, "project", func() (err error) {
		out, err = transformer.Project(t, choice.Retain)
		return err
	})
	if err != nil {
		return res, err
	}

	err = r.step(log, "write", func() (err error) {
		name := persist.DeriveName(req.Label(), r.opts.Now())
		res.Path, err = persist.Write(ctx, out, r.opts.OutputDir, name, r.opts.Format)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("write: %w", err)
	}
	res.Written = out.Len()
	metrics.AddRecords("written", out.Len())
	fmt.Fprintf(r.opts.Out, "saved to %s\n", res.Path)

	var back *table.Table
	err = r.step(log, "read_back", func() (err error) {
		back, err = persist.Read(ctx, res.Path, choice.Retain)
		return err
	})
	if err != nil {
		return res, fmt.Errorf("read back: %w", err)
	}
	if back.Len() != out.Len() {
		log.Warn().Int("written", out.Len()).Int("read", back.Len()).Msg("round trip row count differs")
	}

	res.Sample = preview.Sample(back, r.opts.Sample, r.opts.Rand)
	preview.Render(r.opts.Out, res.Sample)

	if r.opts.Export != nil {
		err = r.step(log, "export", func() (err error) {
			res.Exported, err = r.export(ctx, out)
			return err
		})
		if err != nil {
			return res, fmt.Errorf("export: %w", err)
		}
		log.Info().Str("kind", r.opts.Export.Storage.Kind).Str("table", r.opts.Export.Table).
			Int64("rows", res.Exported).Msg("exported")
	}

	log.Info().Str("path", res.Path).Dur("duration", time.Since(runStart).Truncate(time.Millisecond)).Msg("run complete")
	return res, nil
}

// step times fn, logs it as stage=<name> and records step metrics.
func (r *Runner) step(log zerolog.Logger, name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.RecordStep(name, start, err)

	dur := time.Since(start).Truncate(time.Millisecond)
	if err != nil {
		log.Error().Err(err).Str("stage", name).Str("status", "error").Dur("duration", dur).Send()
		return err
	}
	log.Debug().Str("stage", name).Str("status", "ok").Dur("duration", dur).Send()
	return nil
}

func (r *Runner) selection(ctx context.Context, columns []string, sel config.SelectConfig) (selector.Selection, error) {
	var out selector.Selection
	var err error

	switch {
	case sel.Columns != nil:
		out.Retain, err = selector.Retain(*sel.Columns, columns)
	case r.opts.Selector != nil:
		out.Retain, err = r.opts.Selector.Retain(ctx, columns)
	default:
		err = fmt.Errorf("%w: retained columns", ErrNoSelector)
	}
	if err != nil {
		return out, err
	}

	switch {
	case sel.Dates != nil:
		out.Dates, err = selector.Dates(*sel.Dates, columns)
	case r.opts.Selector != nil:
		out.Dates, err = r.opts.Selector.Dates(ctx, columns)
	default:
		err = fmt.Errorf("%w: date columns", ErrNoSelector)
	}
	return out, err
}

func (r *Runner) export(ctx context.Context, t *table.Table) (int64, error) {
	exp := r.opts.Export
	spec, err := storage.SpecFor(exp.Table, t)
	if err != nil {
		return 0, err
	}
	repo, err := r.opts.NewRepository(ctx, exp.Storage)
	if err != nil {
		return 0, err
	}
	defer repo.Close()

	if err := repo.EnsureTable(ctx, spec); err != nil {
		return 0, err
	}
	return repo.InsertRows(ctx, spec.Name, spec.ColumnNames(), storage.Rows(t, spec))
}
