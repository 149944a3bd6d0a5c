package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestRunnerTicks(t *testing.T) {
	var count atomic.Int64
	r := New("test", 10*time.Millisecond, func(ctx context.Context) {
		count.Add(1)
	}, zerolog.Nop())

	r.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for count.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for ticks")
		case <-time.After(5 * time.Millisecond):
		}
	}
	r.Stop()
}

func TestRunnerStopSilences(t *testing.T) {
	var count atomic.Int64
	r := New("test", 10*time.Millisecond, func(ctx context.Context) {
		count.Add(1)
	}, zerolog.Nop())

	r.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for count.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for first tick")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Stop blocks until the loop exits, so nothing can fire after it returns.
	r.Stop()
	after := count.Load()
	time.Sleep(50 * time.Millisecond)
	if got := count.Load(); got != after {
		t.Fatalf("task fired after Stop: count went from %d to %d", after, got)
	}
}

func TestRunnerStopIdempotent(t *testing.T) {
	r := New("test", 10*time.Millisecond, func(ctx context.Context) {}, zerolog.Nop())
	r.Start(context.Background())

	r.Stop()
	// A second Stop must not panic or block.
	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second Stop blocked")
	}
}

func TestRunnerStopWithoutStart(t *testing.T) {
	r := New("test", 10*time.Millisecond, func(ctx context.Context) {}, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop on a never-started runner blocked")
	}
}

func TestRunnerContextCancel(t *testing.T) {
	var count atomic.Int64
	r := New("test", 10*time.Millisecond, func(ctx context.Context) {
		count.Add(1)
	}, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)

	deadline := time.After(2 * time.Second)
	for count.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for first tick")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	// Stop after cancellation must still return promptly.
	done := make(chan struct{})
	go func() {
		r.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked after context cancellation")
	}
}

func TestRunnerDoubleStart(t *testing.T) {
	var count atomic.Int64
	r := New("test", 10*time.Millisecond, func(ctx context.Context) {
		count.Add(1)
	}, zerolog.Nop())

	r.Start(context.Background())
	r.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for count.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("timeout waiting for first tick")
		case <-time.After(5 * time.Millisecond):
		}
	}
	// A second loop would panic on the shared done channel at shutdown.
	r.Stop()
}
