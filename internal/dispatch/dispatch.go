// Package dispatch issues model calls against a backend, applying a per-call
// timeout, bounded retry with linear backoff, and a global cap on in-flight
// calls. The cap and its queue are the only resource shared across all runs
// in a process; excess submissions wait in arrival order.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dusk-indust/conductor/internal/backend"
)

// Defaults for the dispatcher configuration.
const (
	DefaultMaxConcurrent = 3
	DefaultCallTimeout   = 120 * time.Second
	DefaultMaxRetries    = 2
	DefaultRetryBackoff  = 2 * time.Second
	DefaultBatchDelay    = 500 * time.Millisecond
)

// Config tunes a Dispatcher. Zero fields take the package defaults.
type Config struct {
	// MaxConcurrent caps in-flight calls across every submitter.
	MaxConcurrent int

	// CallTimeout bounds each individual attempt.
	CallTimeout time.Duration

	// MaxRetries is the number of re-attempts after the first failure.
	// Non-retryable error classes fail immediately regardless.
	MaxRetries int

	// RetryBackoff is the base delay; attempt n waits n * RetryBackoff.
	RetryBackoff time.Duration

	// BatchDelay is inserted between successive concurrency-window fills
	// in SubmitBatch to respect external rate limits.
	BatchDelay time.Duration
}

// withDefaults fills zero fields.
func (c Config) withDefaults() Config {
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = DefaultBatchDelay
	}
	return c
}

// Result is the outcome of one successful submission, with the observability
// fields every call reports.
type Result struct {
	Response *backend.Response

	// Duration covers the full submission, queue wait excluded.
	Duration time.Duration

	// Attempts is the total number of backend calls made (>= 1).
	Attempts int

	// TokenEstimate is ceil(promptLen/4), used when the backend does not
	// report exact token counts.
	TokenEstimate int
}

// Dispatcher is safe for concurrent use by multiple runs.
type Dispatcher struct {
	backend backend.Backend
	cfg     Config
	sem     *semaphore.Weighted

	// sleep is swapped out in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Dispatcher over the given backend.
func New(b backend.Backend, cfg Config) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		backend: b,
		cfg:     cfg,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		sleep:   sleepCtx,
	}
}

// Config returns the effective configuration.
func (d *Dispatcher) Config() Config {
	return d.cfg
}

// Submit issues one model call. It blocks while the global concurrency cap
// is exhausted (waiters are served in arrival order), then runs a bounded
// retry loop: transient failures re-attempt with linearly increasing delay,
// non-retryable classes fail on the spot.
func (d *Dispatcher) Submit(ctx context.Context, req backend.Request) (*Result, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("dispatch: acquire slot: %w", err)
	}
	defer d.sem.Release(1)

	start := time.Now()
	estimate := TokenEstimate(req)

	var lastErr error
	for attempt := 0; attempt <= d.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, time.Duration(attempt)*d.cfg.RetryBackoff); err != nil {
				return nil, fmt.Errorf("dispatch: %w", err)
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, d.cfg.CallTimeout)
		resp, err := d.backend.Invoke(callCtx, req)
		cancel()

		if err == nil {
			return &Result{
				Response:      resp,
				Duration:      time.Since(start),
				Attempts:      attempt + 1,
				TokenEstimate: estimate,
			}, nil
		}

		lastErr = err
		if !backend.Retryable(err) {
			return nil, fmt.Errorf("dispatch: permanent failure on attempt %d: %w", attempt+1, err)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("dispatch: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("dispatch: exhausted %d attempts: %w", d.cfg.MaxRetries+1, lastErr)
}

// TokenEstimate is the input-length heuristic: total prompt length divided
// by four, rounded up.
func TokenEstimate(req backend.Request) int {
	n := len(req.SystemPrompt) + len(req.UserPrompt)
	return (n + 3) / 4
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
