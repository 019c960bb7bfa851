package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var transitions []CircuitState
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		Name:        "test",
		MaxFailures: 2,
		OpenTimeout: time.Hour,
		OnStateChange: func(_ string, _, to CircuitState) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, to)
		},
	})

	upstream := errors.New("503 from upstream")
	calls := 0
	op := func(context.Context) error {
		calls++
		return upstream
	}

	for i := 0; i < 2; i++ {
		if err := cb.Execute(context.Background(), op); !errors.Is(err, upstream) {
			t.Fatalf("Execute() #%d error = %v, want upstream error", i+1, err)
		}
	}

	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want %v", cb.State(), StateOpen)
	}

	err := cb.Execute(context.Background(), op)
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("Execute() on open breaker error = %v, want ErrCircuitOpen", err)
	}
	if !IsPermanent(err) {
		t.Error("IsPermanent(open circuit error) = false, want true")
	}
	if calls != 2 {
		t.Errorf("operation invoked %d times, want 2", calls)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 || transitions[0] != StateOpen {
		t.Errorf("state transitions = %v, want [OPEN]", transitions)
	}
}

func TestCircuitBreaker_CancellationDoesNotTrip(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "cancel", MaxFailures: 1, OpenTimeout: time.Hour})

	for i := 0; i < 3; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error {
			return context.Canceled
		})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Execute() error = %v, want context.Canceled", err)
		}
	}

	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want %v", cb.State(), StateClosed)
	}
}

func TestCircuitBreaker_DeadlineMapsToTimeout(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "deadline"})
	err := cb.Execute(context.Background(), func(context.Context) error {
		return context.DeadlineExceeded
	})
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want wrapped context.DeadlineExceeded", err)
	}
}

func TestCircuitBreaker_CallerDeadlineDoesNotTrip(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "caller-deadline", MaxFailures: 1, OpenTimeout: time.Hour})
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	for range 3 {
		err := cb.Execute(ctx, func(ctx context.Context) error {
			return ctx.Err()
		})
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("Execute() error = %v, want context.DeadlineExceeded", err)
		}
		if !errors.Is(err, ErrTimeout) {
			t.Fatalf("Execute() error = %v, want ErrTimeout", err)
		}
	}

	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want %v", cb.State(), StateClosed)
	}
}

func TestCircuitBreaker_UpstreamDeadlineTrips(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{Name: "upstream-deadline", MaxFailures: 1, OpenTimeout: time.Hour})
	_ = cb.Execute(context.Background(), func(context.Context) error {
		return context.DeadlineExceeded
	})

	if cb.State() != StateOpen {
		t.Errorf("State() = %v, want %v", cb.State(), StateOpen)
	}
}

func TestCircuitState_String(t *testing.T) {
	t.Parallel()

	tests := map[CircuitState]string{
		StateClosed:      "CLOSED",
		StateHalfOpen:    "HALF-OPEN",
		StateOpen:        "OPEN",
		CircuitState(42): "UNKNOWN",
	}
	for state, want := range tests {
		if got := state.String(); got != want {
			t.Errorf("CircuitState(%d).String() = %q, want %q", int(state), got, want)
		}
	}
}
