package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

var fast = Policy{Attempts: 4, Initial: time.Millisecond, Max: 2 * time.Millisecond, Jitter: 0.5}

func TestDo(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   bool
	}{
		{name: "first try", failures: 0, wantCalls: 1},
		{name: "succeeds after transient errors", failures: 2, err: boom, wantCalls: 3},
		{name: "gives up", failures: 10, err: boom, wantCalls: 4, wantErr: true},
		{name: "permanent stops", failures: 10, err: Permanent(boom), wantCalls: 1, wantErr: true},
		{name: "4xx stops", failures: 10, err: &StatusError{Service: "x", Code: http.StatusBadRequest}, wantCalls: 1, wantErr: true},
		{name: "5xx retried", failures: 1, err: &StatusError{Service: "x", Code: http.StatusBadGateway}, wantCalls: 2},
		{name: "429 retried", failures: 1, err: &StatusError{Service: "x", Code: http.StatusTooManyRequests}, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), fast, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDoOnRetry(t *testing.T) {
	var attempts []int
	p := fast
	p.OnRetry = func(attempt int, next time.Duration, err error) {
		attempts = append(attempts, attempt)
		if next <= 0 {
			t.Errorf("next wait = %v, want > 0", next)
		}
	}
	_ = Do(context.Background(), p, func(context.Context) error { return errors.New("down") })
	if len(attempts) != p.Attempts-1 {
		t.Errorf("OnRetry called %d times, want %d", len(attempts), p.Attempts-1)
	}
}

func TestDoPermanentUnwraps(t *testing.T) {
	boom := errors.New("boom")
	err := Do(context.Background(), fast, func(context.Context) error { return Permanent(boom) })
	if err != boom {
		t.Errorf("err = %v, want the original error", err)
	}
}

func TestDoContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{Attempts: 5, Initial: time.Hour}

	calls := 0
	err := Do(ctx, p, func(context.Context) error {
		calls++
		cancel()
		return errors.New("down")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestJittered(t *testing.T) {
	d := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		got := jittered(d, 0.2)
		if got < 80*time.Millisecond || got > 120*time.Millisecond {
			t.Fatalf("jittered() = %v, out of bounds", got)
		}
	}
	if jittered(d, 0) != d {
		t.Error("zero jitter must keep the duration")
	}
}
