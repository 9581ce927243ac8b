package match

import (
	"sync"
	"time"
)

// Countdown is a single per-question timer with one terminal callback.
// Starting it again supersedes the previous run.
type Countdown struct {
	mu       sync.Mutex
	duration time.Duration
	timer    *time.Timer
	gen      uint64
	deadline time.Time
}

func NewCountdown(d time.Duration) *Countdown {
	return &Countdown{duration: d}
}

// Start arms the countdown. onExpire runs on its own goroutine unless Stop or Start wins first.
func (c *Countdown) Start(onExpire func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.deadline = time.Now().Add(c.duration)
	c.timer = time.AfterFunc(c.duration, func() {
		c.mu.Lock()
		current := c.gen == gen
		if current {
			c.timer = nil
		}
		c.mu.Unlock()
		if current {
			onExpire()
		}
	})
}

func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

// Remaining is zero when the countdown is not running.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer == nil {
		return 0
	}
	if d := time.Until(c.deadline); d > 0 {
		return d
	}
	return 0
}
