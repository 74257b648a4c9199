package fetch

import (
	"context"
	"sync"
	"time"
)

// minRPS floors the configured rate so a zero or negative value cannot
// produce an unbounded interval.
const minRPS = 0.1

// Gate is the single global pacing gate shared by all concurrent fetch
// attempts. It enforces a minimum interval between the start of any two
// fetches; the mutex is held across the sleep so waiting callers
// serialize instead of racing the timestamp.
type Gate struct {
	mu        sync.Mutex
	lastFetch time.Time
	interval  time.Duration
}

// NewGate creates a Gate pacing fetch starts at rateRPS requests per
// second.
func NewGate(rateRPS float64) *Gate {
	if rateRPS < minRPS {
		rateRPS = minRPS
	}
	return &Gate{interval: time.Duration(float64(time.Second) / rateRPS)}
}

// Wait blocks until this caller may start the next fetch, or until ctx
// is cancelled. On success the caller's start time has been recorded.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	wait := time.Until(g.lastFetch.Add(g.interval))
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	g.lastFetch = time.Now()
	return nil
}

// Interval returns the enforced minimum interval between fetch starts.
func (g *Gate) Interval() time.Duration {
	return g.interval
}
