// Package quota tracks daily usage of the quota-limited secondary
// classifier. The counter is process-wide state: callers Reserve a slot
// before invoking the classifier and Release it if the round-trip fails,
// so only successful calls consume quota.
package quota

import (
	"context"
	"sync/atomic"
)

// State is a point-in-time snapshot of the counter.
type State struct {
	UsedToday  int64 `json:"used_today"`
	DailyLimit int64 `json:"daily_limit"`
}

// Store is the injected quota dependency.
type Store interface {
	// Reserve atomically increments the counter if it is under the daily
	// limit. It returns false when the quota is exhausted.
	Reserve(ctx context.Context) (bool, error)
	// Release refunds a reservation after a failed classifier call.
	Release(ctx context.Context) error
	// Usage returns the current counter state.
	Usage(ctx context.Context) (State, error)
	// Reset zeroes the counter. Nothing schedules this internally; it is
	// driven by an explicit external operation.
	Reset(ctx context.Context) error
}

// Counter is the in-memory Store used when Redis is not configured.
// Reserve is a compare-and-swap loop, so concurrent requests racing at the
// boundary cannot overshoot the limit.
type Counter struct {
	used  atomic.Int64
	limit int64
}

// NewCounter creates a Counter starting at zero.
func NewCounter(dailyLimit int64) *Counter {
	return &Counter{limit: dailyLimit}
}

func (c *Counter) Reserve(_ context.Context) (bool, error) {
	for {
		used := c.used.Load()
		if used >= c.limit {
			return false, nil
		}
		if c.used.CompareAndSwap(used, used+1) {
			return true, nil
		}
	}
}

func (c *Counter) Release(_ context.Context) error {
	for {
		used := c.used.Load()
		if used <= 0 {
			return nil
		}
		if c.used.CompareAndSwap(used, used-1) {
			return nil
		}
	}
}

func (c *Counter) Usage(_ context.Context) (State, error) {
	return State{UsedToday: c.used.Load(), DailyLimit: c.limit}, nil
}

func (c *Counter) Reset(_ context.Context) error {
	c.used.Store(0)
	return nil
}
