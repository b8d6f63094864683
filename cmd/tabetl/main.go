package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tabetl/internal/config"
	"tabetl/internal/datasource/httpds"
	"tabetl/internal/metrics"
	"tabetl/internal/metrics/datadog"
	"tabetl/internal/persist"
	"tabetl/internal/pipeline"
	"tabetl/internal/prompt"
	"tabetl/internal/selector"
	"tabetl/internal/source"
	"tabetl/internal/storage"
	"tabetl/internal/transformer"

	// register all export backends with the storage factory.
	_ "tabetl/internal/storage/all"

	"github.com/spf13/cobra"
)

// backendCloser is the metrics backend lifecycle this command manages.
type backendCloser interface {
	metrics.Backend
	Close() error
}

// deps are the external seams of the command.
type deps struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// IsTerminal reports whether prompts may be shown on Stdin.
	IsTerminal     func() bool
	BackendFactory func(ctx context.Context, jobName string, tags []string) (backendCloser, error)
	Now            func() time.Time
}

// exitError carries an exit code out of a cobra RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageErr(err error) error    { return &exitError{code: 2, err: err} }
func pipelineErr(err error) error { return &exitError{code: 1, err: err} }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], deps{
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		IsTerminal: func() bool { return prompt.IsTerminal(os.Stdin) },
		BackendFactory: func(ctx context.Context, jobName string, tags []string) (backendCloser, error) {
			return datadog.NewBackend(ctx, datadog.Options{JobName: jobName, Tags: tags})
		},
		Now: time.Now,
	})
	stop()
	os.Exit(code)
}

// run executes the command line and returns an exit code.
//
// Exit codes:
//   - 0: success (or a clean --validate).
//   - 1: the pipeline failed.
//   - 2: usage, configuration or initialization error.
func run(ctx context.Context, args []string, d deps) int {
	if d.Stdin == nil {
		d.Stdin = eofReader{}
	}
	if d.Stdout == nil {
		d.Stdout = io.Discard
	}
	if d.Stderr == nil {
		d.Stderr = io.Discard
	}
	if d.IsTerminal == nil {
		d.IsTerminal = func() bool { return false }
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	root := newRootCmd(d)
	root.SetArgs(args)
	root.SetIn(d.Stdin)
	root.SetOut(d.Stdout)
	root.SetErr(d.Stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(d.Stderr, "error: %v\n", err)
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 2
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) { return 0, io.EOF }

// runFlags mirrors the run command's flags. Only flags the user set
// override the config file.
type runFlags struct {
	configPath string
	validate   bool

	file, apiURL, apiKey, dataKey string
	columns, dates                string
	epochPolicy, location         string

	outDir, format string
	sample         int

	exportKind, exportDSN, exportTable string

	metricsBackend, metricsTags string
	logLevel, logFormat         string
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "tabetl",
		Short:         "Load, normalize and persist tabular data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(d))
	return root
}

func newRunCmd(d deps) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `Load a CSV/Parquet file or a JSON API response, flatten nested columns,
normalize column names, convert date columns, drop duplicate rows and write
the selected columns to data/<source>_<timestamp>.parquet.

Answers not given as flags or in --config are prompted for when stdin is a
terminal.

Examples:
  tabetl run --file data/in.csv --columns 0,2,3 --dates 2
  tabetl run --api-url https://host/v1/items --api-key SECRET --data-key results
  tabetl run --config pipeline.yaml --validate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPipeline(cmd, d, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "pipeline config file (YAML or JSON)")
	fl.BoolVar(&f.validate, "validate", false, "validate the configuration and exit")
	fl.StringVar(&f.file, "file", "", "input .csv or .parquet file")
	fl.StringVar(&f.apiURL, "api-url", "", "JSON API endpoint")
	fl.StringVar(&f.apiKey, "api-key", "", "API key, sent as the key query parameter")
	fl.StringVar(&f.dataKey, "data-key", "", "key (or gjson path) of the rows in an object response")
	fl.StringVar(&f.columns, "columns", "", "comma separated indices of the columns to keep")
	fl.StringVar(&f.dates, "dates", "", "comma separated indices of date columns (empty for none)")
	fl.StringVar(&f.epochPolicy, "epoch-policy", "", "numeric date scaling: legacy or auto")
	fl.StringVar(&f.location, "location", "", "time zone for rendered dates (default Local)")
	fl.StringVar(&f.outDir, "out-dir", "", "output directory (default data/)")
	fl.StringVar(&f.format, "format", "", "output format: parquet or csv")
	fl.IntVar(&f.sample, "sample", 0, "rows shown in the round-trip preview")
	fl.StringVar(&f.exportKind, "export-kind", "", "optional SQL export: sqlite, postgres or mssql")
	fl.StringVar(&f.exportDSN, "export-dsn", "", "export connection string")
	fl.StringVar(&f.exportTable, "export-table", "", "export table name")
	fl.StringVar(&f.metricsBackend, "metrics-backend", "", "metrics backend: none or datadog")
	fl.StringVar(&f.metricsTags, "metrics-tags", "", "extra metric tags, comma separated (k:v,k2:v2)")
	fl.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fl.StringVar(&f.logFormat, "log-format", "", "log format: console or json")
	return cmd
}

// loadPipeline reads --config (if any) and applies the flags the user set.
func loadPipeline(cmd *cobra.Command, f runFlags) (config.Pipeline, error) {
	var p config.Pipeline
	if f.configPath != "" {
		var err error
		if p, err = config.Load(f.configPath); err != nil {
			return p, err
		}
	}

	set := cmd.Flags().Changed
	api := func() *config.APIConfig {
		if p.Source.API == nil {
			p.Source.API = &config.APIConfig{}
		}
		return p.Source.API
	}
	if set("file") {
		p.Source.File = f.file
	}
	if set("api-url") {
		api().URL = f.apiURL
	}
	if set("api-key") {
		api().Key = f.apiKey
	}
	if set("data-key") {
		api().DataKey = f.dataKey
	}
	if set("columns") {
		p.Select.Columns = &f.columns
	}
	if set("dates") {
		p.Select.Dates = &f.dates
	}
	if set("epoch-policy") {
		p.Dates.EpochPolicy = f.epochPolicy
	}
	if set("location") {
		p.Dates.Location = f.location
	}
	if set("out-dir") {
		p.Output.Dir = f.outDir
	}
	if set("format") {
		p.Output.Format = f.format
	}
	if set("sample") {
		p.Output.Sample = f.sample
	}
	if set("export-kind") {
		p.Export.Kind = f.exportKind
	}
	if set("export-dsn") {
		p.Export.DSN = f.exportDSN
	}
	if set("export-table") {
		p.Export.Table = f.exportTable
	}
	if set("metrics-backend") {
		p.Metrics.Backend = f.metricsBackend
	}
	if set("metrics-tags") {
		p.Metrics.Tags = f.metricsTags
	}
	if set("log-level") {
		p.Log.Level = f.logLevel
	}
	if set("log-format") {
		p.Log.Format = f.logFormat
	}
	p.ApplyDefaults()
	return p, nil
}

func runPipeline(cmd *cobra.Command, d deps, f runFlags) error {
	ctx := cmd.Context()
	stderr := cmd.ErrOrStderr()
	stdout := cmd.OutOrStdout()

	p, err := loadPipeline(cmd, f)
	if err != nil {
		return usageErr(err)
	}

	issues := config.Validate(p)
	for _, iss := range issues {
		fmt.Fprintf(stderr, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
	}
	if config.HasErrors(issues) {
		return usageErr(errors.New("invalid configuration"))
	}
	if f.validate {
		fmt.Fprintln(stdout, "config ok")
		return nil
	}

	logger, closeLog, err := config.SetupLogger(p.Log, stderr)
	if err != nil {
		return usageErr(err)
	}
	defer func() { _ = closeLog() }()
	logger = logger.With().Str("job", p.Job).Logger()

	if p.Metrics.Backend == "datadog" {
		if d.BackendFactory == nil {
			return usageErr(errors.New("internal error: BackendFactory is nil"))
		}
		backend, err := d.BackendFactory(ctx, p.Job, datadog.ParseTagsCSV(p.Metrics.Tags))
		if err != nil {
			return usageErr(fmt.Errorf("datadog backend init failed: %w", err))
		}
		metrics.SetBackend(backend)
		defer func() {
			if err := backend.Close(); err != nil {
				logger.Warn().Err(err).Msg("metrics flush failed")
			}
			metrics.SetBackend(nil)
		}()
	}

	loc, err := p.Dates.ResolveLocation()
	if err != nil {
		return usageErr(err)
	}

	req := source.Request{FilePath: p.Source.File}
	httpCfg := httpds.Config{}
	if api := p.Source.API; api != nil {
		req.APIURL, req.APIKey, req.DataKey = api.URL, api.Key, api.DataKey
		httpCfg.Timeout = api.Timeout
		httpCfg.InsecureSkipVerify = api.InsecureTLS
	}

	// Interface fields stay nil unless a terminal is attached.
	var (
		chooser source.KeyChooser
		sel     pipeline.Selector
	)
	if d.IsTerminal() {
		pr := prompt.New(cmd.InOrStdin(), stdout)
		chooser, sel = pr, pr
		if req, err = pr.Source(ctx, req); err != nil {
			return usageErr(err)
		}
	}
	if req.FilePath == "" && (req.APIURL == "" || req.APIKey == "") {
		return usageErr(fmt.Errorf("%w: pass --file, or --api-url with --api-key", source.ErrMissingSource))
	}

	var export *pipeline.Export
	if p.Export.Kind != "" {
		export = &pipeline.Export{
			Storage: storage.Config{Kind: p.Export.Kind, DSN: os.ExpandEnv(p.Export.DSN)},
			Table:   p.Export.Table,
		}
	}

	runner := pipeline.New(pipeline.Options{
		Loader: source.NewLoader(source.Options{
			HTTP:    httpds.NewClient(httpCfg),
			Chooser: chooser,
			Parser:  p.Source.Parser,
			Logger:  logger,
		}),
		Selector:  sel,
		Dates:     transformer.DateOptions{Policy: transformer.EpochPolicy(p.Dates.EpochPolicy), Location: loc},
		OutputDir: p.Output.Dir,
		Format:    persist.Format(p.Output.Format),
		Sample:    p.Output.Sample,
		Export:    export,
		Out:       stdout,
		Logger:    logger,
		Now:       d.Now,
	})

	if _, err := runner.Run(ctx, req, p.Select); err != nil {
		if isUsage(err) {
			return usageErr(err)
		}
		return pipelineErr(err)
	}
	return nil
}

// isUsage reports errors caused by a missing or invalid operator answer.
func isUsage(err error) bool {
	for _, target := range []error{
		pipeline.ErrNoSelector,
		source.ErrNoKeyChooser,
		source.ErrMissingSource,
		prompt.ErrNoInput,
		selector.ErrEmptySelection,
		selector.ErrInvalidIndex,
		selector.ErrDuplicateIndex,
		selector.ErrColumnIndexOutOfRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
