package clock

import (
	"sync"
	"time"
)

// DefaultPersistEvery is the snapshot cadence in countdown seconds.
const DefaultPersistEvery = 5

// Hooks are the countdown callbacks. Any of them may be nil. They are invoked
// without the countdown's lock held, so they may call Stop or Remaining.
type Hooks struct {
	OnTick    func(left int)
	OnPersist func(left int)
	OnExpire  func()
}

// Countdown counts whole seconds down to zero.
type Countdown struct {
	mu           sync.Mutex
	remaining    int
	persistEvery int
	hooks        Hooks
	cancel       Cancel
	started      bool
	stopped      bool
	expired      bool
}

// NewCountdown prepares a countdown of seconds. persistEvery <= 0 disables OnPersist.
func NewCountdown(seconds, persistEvery int, hooks Hooks) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	return &Countdown{remaining: seconds, persistEvery: persistEvery, hooks: hooks}
}

// Start begins ticking on s. A countdown that starts at zero expires on the
// scheduler's next turn rather than inside Start.
func (c *Countdown) Start(s Scheduler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	if c.remaining == 0 {
		c.cancel = s.After(0, c.expireNow)
		return
	}
	c.cancel = s.Every(time.Second, c.tick)
}

// Stop halts the countdown. No hook fires after Stop returns, except one
// already running on another goroutine.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.cancel != nil {
		c.cancel()
	}
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Expired reports whether the countdown reached zero.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

func (c *Countdown) tick() {
	c.mu.Lock()
	if c.stopped || c.expired || c.remaining == 0 {
		c.mu.Unlock()
		return
	}
	c.remaining--
	left := c.remaining
	persist := c.persistEvery > 0 && left > 0 && left%c.persistEvery == 0
	done := left == 0
	if done {
		c.expired = true
		c.cancel()
	}
	c.mu.Unlock()

	if c.hooks.OnTick != nil {
		c.hooks.OnTick(left)
	}
	if persist && c.hooks.OnPersist != nil {
		c.hooks.OnPersist(left)
	}
	if done && c.hooks.OnExpire != nil {
		c.hooks.OnExpire()
	}
}

func (c *Countdown) expireNow() {
	c.mu.Lock()
	if c.stopped || c.expired {
		c.mu.Unlock()
		return
	}
	c.expired = true
	c.mu.Unlock()

	if c.hooks.OnExpire != nil {
		c.hooks.OnExpire()
	}
}
