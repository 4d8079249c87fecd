// Package retry implements bounded exponential backoff with jitter for
// broker-facing calls, plus the dead-letter envelope used when every
// attempt fails.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrContextCanceled    = errors.New("context canceled during retry")
)

// Config tunes the backoff schedule. MaxRetries counts additional
// attempts after the first, so MaxRetries 3 means up to 4 calls.
type Config struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// JitterFactor spreads each wait by ±factor to avoid herding
	// producers against a recovering broker. Clamped to 0..1.
	JitterFactor float64
}

// DefaultConfig backs off 1s, 2s, 4s, 8s, 16s, capped at 30s.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      5,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

// Operation is one attempt of the retried call.
type Operation func(ctx context.Context) error

// PermanentError stops the loop immediately: retrying cannot help.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks an error as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Result describes how a retried call ended. Err is nil on success;
// LastError keeps the final attempt's error when Err is one of the
// sentinel loop errors.
type Result struct {
	Err           error
	Attempts      int
	TotalDuration time.Duration
	LastError     error
}

// Retrier runs operations under one backoff schedule.
type Retrier struct {
	config *Config
}

// New normalizes the config, filling zero values with defaults.
func New(config *Config) *Retrier {
	if config == nil {
		config = DefaultConfig()
	}
	if config.InitialInterval <= 0 {
		config.InitialInterval = time.Second
	}
	if config.MaxInterval <= 0 {
		config.MaxInterval = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.JitterFactor < 0 {
		config.JitterFactor = 0
	}
	if config.JitterFactor > 1 {
		config.JitterFactor = 1
	}
	return &Retrier{config: config}
}

// Do runs op until it succeeds, returns a permanent error, the attempt
// budget runs out, or the context ends. The context is also checked
// between attempts so a canceled caller never waits out a backoff.
func (r *Retrier) Do(ctx context.Context, op Operation) *Result {
	start := time.Now()
	result := &Result{}
	var lastErr error

	for attempt := 0; ; attempt++ {
		result.Attempts = attempt + 1
		if ctx.Err() != nil {
			return finish(result, ErrContextCanceled, lastErr, start)
		}

		err := op(ctx)
		if err == nil {
			result.TotalDuration = time.Since(start)
			return result
		}
		lastErr = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			return finish(result, perm.Err, perm.Err, start)
		}
		if attempt == r.config.MaxRetries {
			return finish(result, ErrMaxRetriesExceeded, lastErr, start)
		}

		select {
		case <-ctx.Done():
			return finish(result, ErrContextCanceled, lastErr, start)
		case <-time.After(r.backoff(attempt)):
		}
	}
}

func finish(result *Result, err, lastErr error, start time.Time) *Result {
	result.Err = err
	result.LastError = lastErr
	result.TotalDuration = time.Since(start)
	return result
}

// backoff returns the jittered wait before retry number attempt+1.
func (r *Retrier) backoff(attempt int) time.Duration {
	interval := float64(r.config.InitialInterval) * math.Pow(r.config.Multiplier, float64(attempt))
	if f := r.config.JitterFactor; f > 0 {
		interval += interval * f * (rand.Float64()*2 - 1)
	}
	if interval > float64(r.config.MaxInterval) {
		interval = float64(r.config.MaxInterval)
	}
	if interval < 0 {
		interval = float64(r.config.InitialInterval)
	}
	return time.Duration(interval)
}
