package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	s.Go0("boom", func(context.Context) { panic("boom") })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.Wait(ctx)
	if err == nil {
		t.Fatal("Wait() = nil, want panic error")
	}
	snap := s.Snapshot()
	if len(snap.Tasks) != 1 || snap.Tasks[0].Panics != 1 || snap.Panics != 1 {
		t.Fatalf("snapshot = %+v, want one task with one panic", snap)
	}
	if snap.Tasks[0].LastErr == "" || snap.FirstError == "" {
		t.Fatalf("snapshot = %+v, want the panic recorded as an error", snap)
	}
}

func TestCancelOnError(t *testing.T) {
	t.Parallel()

	s := New(context.Background(), WithCancelOnError(true))
	s.Go("fails", func(context.Context) error { return errors.New("nope") })
	s.Go0("waits", func(ctx context.Context) { <-ctx.Done() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Wait(ctx); err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() = %v, want the goroutine error", err)
	}
	if got := s.Snapshot().Active; got != 0 {
		t.Fatalf("Active = %d, want 0", got)
	}
}

func TestGoRestartRestartsUntilClean(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart("flaky", func(context.Context) error {
		if runs.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithRestartBackoff(time.Millisecond, 2*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("Wait() = %v", err)
	}
	if got := runs.Load(); got != 3 {
		t.Fatalf("runs = %d, want 3", got)
	}
	snap := s.Snapshot()
	if snap.Restarts != 2 || snap.Started != 3 {
		t.Fatalf("restarts = %d started = %d, want 2 and 3", snap.Restarts, snap.Started)
	}
	if s.Err() != nil {
		t.Fatalf("Err() = %v, want nil without WithPublishFirstError", s.Err())
	}
}

func TestStopCancelsContext(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	s.Go0("loop", func(ctx context.Context) { <-ctx.Done() })

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop() = %v", err)
	}
}

func TestGoRestartPublishesFirstError(t *testing.T) {
	t.Parallel()

	s := New(context.Background())
	var runs atomic.Int32
	s.GoRestart0("loop", func(ctx context.Context) {
		if runs.Add(1) >= 2 {
			<-ctx.Done()
		}
	}, WithStopOnCleanExit(false), WithPublishFirstError(true), WithRestartBackoff(time.Millisecond, time.Millisecond))

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Err(); !errors.Is(err, errExited) {
		t.Fatalf("Err() = %v, want errExited", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); !errors.Is(err, errExited) {
		t.Fatalf("Stop() = %v", err)
	}
}

func TestRestartPolicyBackoff(t *testing.T) {
	p := restartPolicy{min: 100 * time.Millisecond, max: 300 * time.Millisecond}
	wait, next := p.next(p.min)
	if wait < 100*time.Millisecond || wait > 120*time.Millisecond || next != 200*time.Millisecond {
		t.Fatalf("next(min) = %v, %v", wait, next)
	}
	if _, next = p.next(next); next != 300*time.Millisecond {
		t.Fatalf("backoff not capped: %v", next)
	}
}
