// Package transport builds the http.Client handed to the protocol layer.
// Everything here is policy the protocol core deliberately does not own:
// timeouts, request logging, and retry of idempotent reads.
package transport

import (
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("walgo/transport")

// Options configures the constructed client.
type Options struct {
	// Timeout bounds each exchange end to end. Zero means no timeout.
	Timeout time.Duration

	// MaxRetries enables retry of GET and HEAD requests that fail at the
	// connection level or return 5xx/429, with exponential backoff. Zero
	// disables retries. Writes are never retried: a PUT whose response was
	// lost may have succeeded server-side.
	MaxRetries int

	// Base is the underlying round tripper. Defaults to
	// http.DefaultTransport.
	Base http.RoundTripper
}

// NewHTTPClient assembles a client with logging and optional read retries.
func NewHTTPClient(opts Options) *http.Client {
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}
	rt := http.RoundTripper(&loggingRoundTripper{base: base})
	if opts.MaxRetries > 0 {
		rt = &retryRoundTripper{base: rt, maxTries: uint(opts.MaxRetries) + 1}
	}
	return &http.Client{Transport: rt, Timeout: opts.Timeout}
}

type loggingRoundTripper struct {
	base http.RoundTripper
}

func (l *loggingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := l.base.RoundTrip(req)
	if err != nil {
		log.Debugw("request failed", "method", req.Method, "url", req.URL.String(), "err", err, "took", time.Since(start))
		return nil, err
	}
	log.Debugw("request done", "method", req.Method, "url", req.URL.String(), "status", resp.StatusCode, "took", time.Since(start))
	return resp, nil
}

type retryRoundTripper struct {
	base     http.RoundTripper
	maxTries uint
}

func retryable(req *http.Request) bool {
	return req.Method == http.MethodGet || req.Method == http.MethodHead
}

func (r *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if !retryable(req) {
		return r.base.RoundTrip(req)
	}
	return backoff.Retry(req.Context(), func() (*http.Response, error) {
		resp, err := r.base.RoundTrip(req.Clone(req.Context()))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, fmt.Errorf("retryable status %d for %s %s", resp.StatusCode, req.Method, req.URL)
		}
		return resp, nil
	}, backoff.WithMaxTries(r.maxTries))
}
