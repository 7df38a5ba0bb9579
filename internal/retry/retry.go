// Package retry runs external calls with bounded exponential backoff and jitter.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"
)

// Policy bounds a retry loop.
type Policy struct {
	Attempts int           // total tries, including the first one
	Initial  time.Duration // wait before the second try
	Max      time.Duration // cap for a single wait
	Jitter   float64       // fraction of each wait that is randomized, in [0,1]

	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, next time.Duration, err error)
}

// DefaultPolicy is used when a client is built without one.
var DefaultPolicy = Policy{
	Attempts: 3,
	Initial:  200 * time.Millisecond,
	Max:      2 * time.Second,
	Jitter:   0.2,
}

// StatusError is returned by HTTP clients for non-2xx responses.
type StatusError struct {
	Service string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.Code, e.Body)
}

// Retryable reports whether the status is worth another try.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do stops immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, returns a permanent error, the context is
// done or the policy runs out of attempts. Non retryable *StatusError values
// stop the loop too. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	wait := p.Initial

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		var se *StatusError
		if errors.As(err, &se) && !se.Retryable() {
			return err
		}
		if attempt >= p.Attempts {
			return err
		}

		next := jittered(wait, p.Jitter)
		if p.OnRetry != nil {
			p.OnRetry(attempt, next, err)
		}
		timer := time.NewTimer(next)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}

		wait *= 2
		if p.Max > 0 && wait > p.Max {
			wait = p.Max
		}
	}
}

func jittered(d time.Duration, jitter float64) time.Duration {
	if d <= 0 || jitter <= 0 {
		return d
	}
	if jitter > 1 {
		jitter = 1
	}
	spread := float64(d) * jitter
	return time.Duration(float64(d) - spread + rand.Float64()*2*spread)
}
