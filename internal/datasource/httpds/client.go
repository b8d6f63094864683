// Package httpds performs the single HTTP GET an API source needs.
//
// The client never interprets status codes: it returns whatever the server
// sent, and callers decide what a non-200 means. Every request is counted in
// the metrics facade by status class.
package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"tabetl/internal/metrics"
)

// ErrFetch wraps transport failures (DNS, connect, TLS, body read).
var ErrFetch = errors.New("fetch failed")

type Config struct {
	// Timeout bounds the whole request. Zero means no client timeout.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate checks.
	InsecureSkipVerify bool

	UserAgent string
}

type Client struct {
	hc *http.Client
	ua string
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func NewClient(cfg Config) *Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "tabetl/1.0"
	}
	return &Client{
		hc: &http.Client{Timeout: cfg.Timeout, Transport: tr},
		ua: ua,
	}
}

// NewClientWith wraps an existing *http.Client, e.g. an httptest server's.
func NewClientWith(hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{hc: hc, ua: "tabetl/1.0"}
}

// Get fetches url and reads the whole body.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		observe("error", start, 0)
		return nil, fmt.Errorf("%w: http get: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	status := strconv.Itoa(resp.StatusCode)
	if err != nil {
		observe(status, start, len(body))
		return nil, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	observe(status, start, len(body))
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func observe(status string, start time.Time, n int) {
	l := metrics.Labels{"status": status}
	metrics.IncCounter(metrics.HTTPRequestsTotal, 1, l)
	if status == "error" || (len(status) == 3 && status[0] != '2') {
		metrics.IncCounter(metrics.HTTPErrorsTotal, 1, l)
	}
	metrics.ObserveHistogram(metrics.HTTPRequestSeconds, time.Since(start).Seconds(), l)
	if n > 0 {
		metrics.ObserveHistogram(metrics.HTTPDownloadBytes, float64(n), l)
	}
}
