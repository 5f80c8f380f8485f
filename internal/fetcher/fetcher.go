// Package fetcher downloads listing pages over HTTP with rate limiting,
// bounded retries, and a robots.txt policy gate.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"carwatch/internal/ratelimit"
)

const maxBodyBytes = 5 * 1024 * 1024

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrPolicyDisallowed is returned when robots.txt forbids crawling the
// listing path. It fails the cycle, not the process.
var ErrPolicyDisallowed = errors.New("crawling disallowed by robots.txt")

// TransientError wraps a failure worth retrying: timeout, connection error,
// 5xx, or 429.
type TransientError struct {
	Err        error
	RetryAfter time.Duration // from a 429 Retry-After header, 0 when unset
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a failure that must not be retried, such as a 4xx
// response or a malformed URL.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Options configures a Fetcher.
type Options struct {
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	UserAgent   string
}

func (o *Options) applyDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	if o.MaxAttempts < 1 {
		o.MaxAttempts = 3
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 2 * time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 60 * time.Second
	}
	if o.UserAgent == "" {
		o.UserAgent = "carwatch/1.0"
	}
}

// Fetcher issues rate-limited GET requests with retry and backoff. It is
// stateless apart from the shared rate limiter.
type Fetcher struct {
	client  HTTPClient
	limiter *ratelimit.Limiter
	log     *slog.Logger
	opts    Options

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(d time.Duration) time.Duration
}

// New creates a Fetcher backed by a TLS-verifying HTTP client with the
// configured timeout. Certificate validation is not configurable.
func New(limiter *ratelimit.Limiter, opts Options, log *slog.Logger) *Fetcher {
	opts.applyDefaults()
	return NewWithClient(&http.Client{Timeout: opts.Timeout}, limiter, opts, log)
}

// NewWithClient creates a Fetcher with a custom HTTP client (useful for
// testing).
func NewWithClient(client HTTPClient, limiter *ratelimit.Limiter, opts Options, log *slog.Logger) *Fetcher {
	opts.applyDefaults()
	return &Fetcher{
		client:  client,
		limiter: limiter,
		log:     log,
		opts:    opts,
		sleep:   sleepCtx,
		jitter:  defaultJitter,
	}
}

// Fetch downloads url, retrying transient failures with exponential backoff
// up to MaxAttempts. Permanent failures return after a single attempt. Every
// attempt is gated through the shared rate limiter.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	bo := newBackoff(f.opts.BaseDelay, f.opts.MaxDelay, f.jitter)

	var lastErr error
	for attempt := 1; attempt <= f.opts.MaxAttempts; attempt++ {
		if err := f.limiter.Acquire(ctx); err != nil {
			return nil, err
		}

		body, err := f.do(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var transient *TransientError
		if !errors.As(err, &transient) {
			return nil, err
		}
		if attempt == f.opts.MaxAttempts {
			break
		}

		delay := bo.next()
		if transient.RetryAfter > 0 {
			delay = transient.RetryAfter
		}
		f.log.Warn("fetch failed, retrying",
			"url", url, "attempt", attempt, "max_attempts", f.opts.MaxAttempts,
			"delay", delay, "error", err)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("fetch %s: giving up after %d attempts: %w", url, f.opts.MaxAttempts, lastErr)
}

func (f *Fetcher) do(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &PermanentError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: fmt.Errorf("http get: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, &TransientError{Err: fmt.Errorf("read body: %w", err)}
		}
		return body, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &TransientError{
			Err:        fmt.Errorf("rate limited by server (status 429)"),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}

	case resp.StatusCode >= 500:
		return nil, &TransientError{Err: fmt.Errorf("server error (status %d)", resp.StatusCode)}

	default:
		return nil, &PermanentError{Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
}

// parseRetryAfter handles the delay-seconds form of the header. The HTTP-date
// form is rare on listing endpoints and falls back to the backoff schedule.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
