// Package availability runs the debounced username lookup behind the profile
// editor. Every new candidate supersedes the previous one: its timer is reset,
// its in-flight request is cancelled, and any late response is discarded by
// comparing monotonic sequence numbers.
package availability

import (
	"context"
	"sync"
	"time"
)

// Result is the backend answer for one candidate.
type Result struct {
	Exists      bool
	Suggestions []string
}

// Outcome is delivered to the result callback for the latest candidate only.
type Outcome struct {
	Seq       uint64
	Candidate string
	Result    Result
	Err       error
}

// Lookup performs the network call for one candidate.
type Lookup func(ctx context.Context, candidate string) (Result, error)

// Config controls debounce and per-lookup timeout.
type Config struct {
	Delay   time.Duration
	Timeout time.Duration
}

// Checker is safe for concurrent use. The result callback is invoked without
// any Checker lock held, so it may call back into Schedule or Cancel.
type Checker struct {
	mu       sync.Mutex
	cfg      Config
	lookup   Lookup
	onResult func(Outcome)

	seq    uint64
	timer  *time.Timer
	cancel context.CancelFunc
	closed bool
}

// New returns a Checker. lookup and onResult must be non-nil.
func New(cfg Config, lookup Lookup, onResult func(Outcome)) *Checker {
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return &Checker{
		cfg:      cfg,
		lookup:   lookup,
		onResult: onResult,
	}
}

// Schedule supersedes any pending or in-flight lookup and arms a new one for
// candidate after the debounce delay. It returns the sequence number the
// eventual Outcome will carry, or 0 once the checker is closed.
func (c *Checker) Schedule(candidate string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}
	c.supersedeLocked()
	seq := c.seq
	c.timer = time.AfterFunc(c.cfg.Delay, func() {
		c.fire(seq, candidate)
	})
	return seq
}

// Cancel drops the pending candidate, if any, without delivering an outcome.
func (c *Checker) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersedeLocked()
}

// Latest returns the sequence number of the most recent Schedule or Cancel.
func (c *Checker) Latest() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Close cancels outstanding work. Schedule becomes a no-op afterwards.
func (c *Checker) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.supersedeLocked()
	c.closed = true
}

func (c *Checker) supersedeLocked() {
	c.seq++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Checker) fire(seq uint64, candidate string) {
	c.mu.Lock()
	if c.closed || seq != c.seq {
		c.mu.Unlock()
		return
	}
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.cfg.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.cancel = cancel
	c.timer = nil
	c.mu.Unlock()

	res, err := c.lookup(ctx, candidate)

	c.mu.Lock()
	current := !c.closed && seq == c.seq
	if current {
		c.cancel = nil
	}
	c.mu.Unlock()
	cancel()

	if !current {
		return
	}
	c.onResult(Outcome{Seq: seq, Candidate: candidate, Result: res, Err: err})
}
