package memory

import (
	"context"
	"sync"
	"time"
)

// RateCounter is a fixed-window counter for runs without Redis. The window
// starts at the first hit, as with the Redis counter.
type RateCounter struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
	now     func() time.Time
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func NewRateCounter() *RateCounter {
	return &RateCounter{windows: make(map[string]*rateWindow), now: time.Now}
}

func (c *RateCounter) IncrementCounter(ctx context.Context, key string, window time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	w, ok := c.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &rateWindow{resetAt: now.Add(window)}
		c.windows[key] = w
	}
	w.count++
	return w.count, nil
}
