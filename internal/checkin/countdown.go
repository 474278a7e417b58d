package checkin

import (
	"sync"
	"time"
)

// Remaining is max(0, ceil((closesAt - now) / 1s)).
func Remaining(closesAt, now time.Time) int {
	d := closesAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// Countdown is a cancellable one-second repeating task counting down to
// closesAt. It reschedules itself while the remaining value is positive and
// stops for good once it reaches 0.
type Countdown struct {
	clock    Clock
	closesAt time.Time
	onTick   func(remaining int)

	mu      sync.Mutex
	timer   Timer
	last    int
	stopped bool
}

// NewCountdown prepares a countdown; nothing is scheduled until Start.
// onTick runs on the clock's goroutine for every tick after the first.
func NewCountdown(clock Clock, closesAt time.Time, onTick func(remaining int)) *Countdown {
	if clock == nil {
		clock = SystemClock
	}
	return &Countdown{clock: clock, closesAt: closesAt, onTick: onTick, last: -1}
}

// Start computes the first value, schedules the next tick when it is
// positive and returns it.
func (c *Countdown) Start() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.advanceLocked()
}

// Stop cancels the pending tick. Ticks already running are dropped.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Done reports whether the countdown reached 0 or was stopped.
func (c *Countdown) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped || c.last == 0
}

func (c *Countdown) tick() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	left := c.advanceLocked()
	c.mu.Unlock()
	if c.onTick != nil {
		c.onTick(left)
	}
}

func (c *Countdown) advanceLocked() int {
	left := Remaining(c.closesAt, c.clock.Now())
	// a wall clock stepping backwards must not make the value grow
	if c.last >= 0 && left > c.last {
		left = c.last
	}
	c.last = left
	c.timer = nil
	if left > 0 {
		c.timer = c.clock.AfterFunc(time.Second, c.tick)
	}
	return left
}
