package availability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitOutcome(t *testing.T, ch <-chan Outcome) Outcome {
	t.Helper()
	select {
	case out := <-ch:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for outcome")
	}
	return Outcome{}
}

func TestCheckerDebouncesKeystrokes(t *testing.T) {
	var calls atomic.Int32
	var mu sync.Mutex
	var seen []string
	lookup := func(_ context.Context, candidate string) (Result, error) {
		calls.Add(1)
		mu.Lock()
		seen = append(seen, candidate)
		mu.Unlock()
		return Result{Exists: false}, nil
	}
	out := make(chan Outcome, 4)
	c := New(Config{Delay: 30 * time.Millisecond}, lookup, func(o Outcome) { out <- o })
	defer c.Close()

	c.Schedule("eli")
	c.Schedule("elia")
	last := c.Schedule("elias")

	got := waitOutcome(t, out)
	if got.Seq != last || got.Candidate != "elias" {
		t.Fatalf("unexpected outcome: %+v (want seq %d)", got, last)
	}
	time.Sleep(60 * time.Millisecond)
	if calls.Load() != 1 {
		t.Fatalf("expected one lookup, got %d (%v)", calls.Load(), seen)
	}
}

func TestCheckerDiscardsSupersededResponse(t *testing.T) {
	release := make(chan struct{})
	started := make(chan string, 2)
	lookup := func(ctx context.Context, candidate string) (Result, error) {
		started <- candidate
		if candidate == "elias" {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return Result{Exists: true, Suggestions: []string{"stale"}}, nil
		}
		return Result{Exists: false}, nil
	}
	out := make(chan Outcome, 4)
	c := New(Config{}, lookup, func(o Outcome) { out <- o })
	defer c.Close()

	c.Schedule("elias")
	if got := <-started; got != "elias" {
		t.Fatalf("unexpected first lookup %q", got)
	}
	next := c.Schedule("elias_g")
	close(release)

	got := waitOutcome(t, out)
	if got.Candidate != "elias_g" || got.Seq != next || got.Result.Exists {
		t.Fatalf("stale response leaked: %+v", got)
	}
	select {
	case extra := <-out:
		t.Fatalf("unexpected extra outcome: %+v", extra)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestCheckerCancelsInFlightRequest(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{})
	lookup := func(ctx context.Context, _ string) (Result, error) {
		close(started)
		<-ctx.Done()
		close(cancelled)
		return Result{}, ctx.Err()
	}
	c := New(Config{}, lookup, func(o Outcome) { t.Errorf("unexpected outcome %+v", o) })
	defer c.Close()

	c.Schedule("elias")
	<-started
	c.Cancel()

	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight lookup was not cancelled")
	}
}

func TestCheckerReportsLookupError(t *testing.T) {
	boom := errors.New("network down")
	out := make(chan Outcome, 1)
	c := New(Config{Timeout: time.Second}, func(context.Context, string) (Result, error) {
		return Result{}, boom
	}, func(o Outcome) { out <- o })
	defer c.Close()

	c.Schedule("elias")
	got := waitOutcome(t, out)
	if !errors.Is(got.Err, boom) {
		t.Fatalf("expected lookup error, got %+v", got)
	}
}

func TestCheckerClosedIgnoresSchedule(t *testing.T) {
	c := New(Config{}, func(context.Context, string) (Result, error) {
		t.Error("lookup must not run after Close")
		return Result{}, nil
	}, func(Outcome) {})
	c.Close()
	if seq := c.Schedule("elias"); seq != 0 {
		t.Fatalf("expected zero seq after close, got %d", seq)
	}
	time.Sleep(20 * time.Millisecond)
}
