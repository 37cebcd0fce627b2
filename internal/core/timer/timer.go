// Package timer provides the monotonic countdown used for all attack
// timeout and interval logic.
package timer

import (
	"fmt"
	"time"
)

// Countdown is a monotonic countdown timer.
type Countdown struct {
	duration time.Duration
	deadline time.Time
}

// New starts a countdown of the given duration. A non-positive duration
// yields a countdown that never ends (used for "no timeout").
func New(d time.Duration) *Countdown {
	c := &Countdown{duration: d}
	c.Restart()
	return c
}

// Restart rewinds the countdown to its full duration.
func (c *Countdown) Restart() {
	if c.duration > 0 {
		c.deadline = time.Now().Add(c.duration)
	} else {
		c.deadline = time.Time{}
	}
}

// Ended reports whether the countdown has run out.
func (c *Countdown) Ended() bool {
	if c.deadline.IsZero() {
		return false
	}
	return !time.Now().Before(c.deadline)
}

// Remaining returns the time left, never negative.
func (c *Countdown) Remaining() time.Duration {
	if c.deadline.IsZero() {
		return time.Duration(1<<62 - 1)
	}
	r := time.Until(c.deadline)
	if r < 0 {
		return 0
	}
	return r
}

// String renders the remaining time as m:ss for status lines.
func (c *Countdown) String() string {
	if c.deadline.IsZero() {
		return "inf"
	}
	r := c.Remaining().Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(r.Minutes()), int(r.Seconds())%60)
}
