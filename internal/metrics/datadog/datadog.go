// Package datadog implements a Datadog backend for the internal/metrics package.
//
// Metrics are buffered in memory and submitted on a ticker (default once per
// minute) and one final time on Close, so a short run still delivers its
// tail and a long one shows up as a time series.
//
// Counters are submitted as COUNT series and histograms as percentile
// gauges (p50, p90, p95, p99, max, samples). Only the metric names the
// pipeline emits are forwarded; unknown names are dropped.
package datadog

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"tabetl/internal/metrics"

	dd "github.com/DataDog/datadog-api-client-go/v2/api/datadog"
	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// Options controls Datadog backend configuration.
type Options struct {
	// JobName becomes tag "job:<name>" on every metric. Defaults to "tabetl".
	JobName string

	// Tags are extra Datadog tags (e.g. "env:prod", "team:data").
	Tags []string

	// FlushEvery controls the submission period. Defaults to 60s.
	FlushEvery time.Duration

	// Unexported test seams.
	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker
	submitter metricsSubmitter
}

// metricsSubmitter is the slice of *datadogV2.MetricsApi the backend uses,
// so tests can capture payloads without HTTP.
type metricsSubmitter interface {
	SubmitMetrics(ctx context.Context, body datadogV2.MetricPayload, params ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error)
}

// forwarded maps internal metric names to Datadog names and the label that
// becomes the series tag.
var forwarded = map[string]struct {
	name   string
	labels []string
}{
	metrics.StepTotal:           {"tabetl.step.total", []string{"step", "status"}},
	metrics.StepDurationSeconds: {"tabetl.step.duration_seconds", []string{"step", "status"}},
	metrics.RecordsTotal:        {"tabetl.records.total", []string{"kind"}},
	metrics.HTTPRequestsTotal:   {"tabetl.http.requests.total", []string{"status"}},
	metrics.HTTPErrorsTotal:     {"tabetl.http.errors.total", []string{"status"}},
	metrics.HTTPRequestSeconds:  {"tabetl.http.request_duration_seconds", []string{"status"}},
	metrics.HTTPDownloadBytes:   {"tabetl.http.download_bytes", []string{"status"}},
}

// seriesKey identifies one Datadog series: metric name plus its own tags.
type seriesKey struct {
	metric string
	tags   string // "\x00"-joined, in the label order of forwarded
}

// Backend implements metrics.Backend for Datadog.
type Backend struct {
	api metricsSubmitter
	ctx context.Context

	flushEvery time.Duration
	stopCh     chan struct{}
	doneCh     chan struct{}
	closeOnce  sync.Once

	baseTags []string

	now       func() time.Time
	newTicker func(d time.Duration) *time.Ticker

	mu       sync.Mutex
	counts   map[seriesKey]float64
	samples  map[seriesKey][]float64
	closeErr error
}

func resolveEnvTag() string {
	if v := strings.TrimSpace(os.Getenv("ENV")); v != "" {
		return "env:" + v
	}
	if v := strings.TrimSpace(os.Getenv("DD_ENV")); v != "" {
		return "env:" + v
	}
	return "env:unknown"
}

// NewBackend constructs a Datadog backend using the official client. The API
// key and site are read by the client from DD_API_KEY / DD_SITE; network
// errors surface from Flush, not here.
func NewBackend(parent context.Context, opts Options) (*Backend, error) {
	if parent == nil {
		return nil, wrapInitErr(fmt.Errorf("nil context"))
	}
	job := opts.JobName
	if job == "" {
		job = "tabetl"
	}
	flushEvery := opts.FlushEvery
	if flushEvery <= 0 {
		flushEvery = 60 * time.Second
	}

	baseTags := make([]string, 0, 2+len(opts.Tags))
	baseTags = append(baseTags, resolveEnvTag(), "job:"+job)
	baseTags = append(baseTags, opts.Tags...)

	nowFn := opts.now
	if nowFn == nil {
		nowFn = time.Now
	}
	newTicker := opts.newTicker
	if newTicker == nil {
		newTicker = time.NewTicker
	}

	submitter := opts.submitter
	if submitter == nil {
		submitter = datadogV2.NewMetricsApi(dd.NewAPIClient(dd.NewConfiguration()))
	}

	b := &Backend{
		api:        submitter,
		ctx:        dd.NewDefaultContext(parent),
		flushEvery: flushEvery,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		baseTags:   baseTags,
		now:        nowFn,
		newTicker:  newTicker,
		counts:     make(map[seriesKey]float64),
		samples:    make(map[seriesKey][]float64),
	}
	go b.loop()
	return b, nil
}

func (b *Backend) loop() {
	defer close(b.doneCh)
	t := b.newTicker(b.flushEvery)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			_ = b.Flush()
		case <-b.stopCh:
			return
		}
	}
}

// Close stops the flush loop and performs one final Flush. Calling it again
// returns the first result.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		close(b.stopCh)
		<-b.doneCh
		b.closeErr = b.Flush()
	})
	return b.closeErr
}

func keyFor(name string, labels metrics.Labels) (seriesKey, bool) {
	f, ok := forwarded[name]
	if !ok {
		return seriesKey{}, false
	}
	parts := make([]string, len(f.labels))
	for i, l := range f.labels {
		v := labels[l]
		if v == "" {
			v = "unknown"
		}
		parts[i] = l + ":" + v
	}
	return seriesKey{metric: f.name, tags: strings.Join(parts, "\x00")}, true
}

// IncCounter implements metrics.Backend.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	k, ok := keyFor(name, labels)
	if !ok {
		return
	}
	b.mu.Lock()
	b.counts[k] += delta
	b.mu.Unlock()
}

// ObserveHistogram implements metrics.Backend.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	k, ok := keyFor(name, labels)
	if !ok {
		return
	}
	b.mu.Lock()
	b.samples[k] = append(b.samples[k], value)
	b.mu.Unlock()
}

// snapshotAndReset detaches the buffers under the lock.
func (b *Backend) snapshotAndReset() (map[seriesKey]float64, map[seriesKey][]float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, s := b.counts, b.samples
	b.counts = make(map[seriesKey]float64)
	b.samples = make(map[seriesKey][]float64)
	return c, s
}

// Flush submits buffered metrics and resets the buffers, also on failure.
// It returns nil when there is nothing to submit.
func (b *Backend) Flush() error {
	counts, samples := b.snapshotAndReset()
	if len(counts) == 0 && len(samples) == 0 {
		return nil
	}
	series := b.buildSeries(counts, samples, b.now().Unix())
	payload := datadogV2.MetricPayload{Series: series}
	_, _, err := b.api.SubmitMetrics(b.ctx, payload, *datadogV2.NewSubmitMetricsOptionalParameters())
	if err != nil {
		return fmt.Errorf("datadog submit: %w", err)
	}
	return nil
}

// buildSeries is pure: series come out sorted by metric name then tags.
func (b *Backend) buildSeries(counts map[seriesKey]float64, samples map[seriesKey][]float64, nowUnix int64) []datadogV2.MetricSeries {
	series := make([]datadogV2.MetricSeries, 0, len(counts)+6*len(samples))

	for _, k := range sortedKeys(counts) {
		if counts[k] == 0 {
			continue
		}
		series = append(series, point(k.metric, datadogV2.METRICINTAKETYPE_COUNT, counts[k], b.tagsFor(k), nowUnix))
	}

	for _, k := range sortedKeys(samples) {
		s := samples[k]
		if len(s) == 0 {
			continue
		}
		cp := append([]float64(nil), s...)
		sort.Float64s(cp)
		tags := b.tagsFor(k)
		gauge := func(suffix string, v float64) {
			series = append(series, point(k.metric+suffix, datadogV2.METRICINTAKETYPE_GAUGE, v, tags, nowUnix))
		}
		gauge(".p50", percentileNearestRank(cp, 0.50))
		gauge(".p90", percentileNearestRank(cp, 0.90))
		gauge(".p95", percentileNearestRank(cp, 0.95))
		gauge(".p99", percentileNearestRank(cp, 0.99))
		gauge(".max", cp[len(cp)-1])
		gauge(".samples", float64(len(cp)))
	}
	return series
}

func (b *Backend) tagsFor(k seriesKey) []string {
	out := make([]string, 0, len(b.baseTags)+2)
	out = append(out, b.baseTags...)
	if k.tags != "" {
		out = append(out, strings.Split(k.tags, "\x00")...)
	}
	return out
}

func point(metric string, typ datadogV2.MetricIntakeType, value float64, tags []string, nowUnix int64) datadogV2.MetricSeries {
	return datadogV2.MetricSeries{
		Metric: metric,
		Type:   typ.Ptr(),
		Points: []datadogV2.MetricPoint{
			{Timestamp: dd.PtrInt64(nowUnix), Value: dd.PtrFloat64(value)},
		},
		Tags: tags,
	}
}

func sortedKeys[V any](m map[seriesKey]V) []seriesKey {
	keys := make([]seriesKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].metric != keys[j].metric {
			return keys[i].metric < keys[j].metric
		}
		return keys[i].tags < keys[j].tags
	})
	return keys
}

func percentileNearestRank(s []float64, p float64) float64 {
	n := len(s)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return s[0]
	}
	if p >= 1 {
		return s[n-1]
	}
	idx := int(p*float64(n-1) + 0.5)
	if idx >= n {
		idx = n - 1
	}
	return s[idx]
}

var _ metrics.Backend = (*Backend)(nil)

// ParseTagsCSV parses comma-separated tags like "env:prod,team:data".
func ParseTagsCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func wrapInitErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("datadog metrics init: %w", err)
}
