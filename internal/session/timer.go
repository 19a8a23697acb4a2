package session

import (
	"sync"
	"time"
)

// Countdown is the single 1 Hz tick source of an active session. Seconds
// only ever decrease, with a floor of zero; hitting zero fires the
// expiry callback at most once and clears the ticking goroutine.
type Countdown struct {
	mu        sync.Mutex
	remaining int
	expired   bool

	onTick   func(remaining int)
	onExpire func()

	done     chan struct{}
	stopOnce sync.Once
}

func NewCountdown(seconds int, onTick func(remaining int), onExpire func()) *Countdown {
	return &Countdown{
		remaining: seconds,
		onTick:    onTick,
		onExpire:  onExpire,
		done:      make(chan struct{}),
	}
}

func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Tick advances the clock by one second. Safe to call after expiry or
// stop; extra ticks never decrement below zero or re-fire expiry.
func (c *Countdown) Tick() {
	c.mu.Lock()
	if c.expired {
		c.mu.Unlock()
		return
	}
	if c.remaining > 0 {
		c.remaining--
	}
	remaining := c.remaining
	fire := remaining == 0
	if fire {
		c.expired = true
	}
	c.mu.Unlock()

	if c.onTick != nil {
		c.onTick(remaining)
	}
	if fire {
		c.Stop()
		if c.onExpire != nil {
			c.onExpire()
		}
	}
}

// Run starts the 1 Hz goroutine. Hosts that drive Tick themselves (the
// terminal client, tests) never call it.
func (c *Countdown) Run() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Tick()
			case <-c.done:
				return
			}
		}
	}()
}

// Stop clears the ticking goroutine; idempotent, and required whenever
// the session leaves its active state for any reason.
func (c *Countdown) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}
