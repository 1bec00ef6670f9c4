// Package cooldown throttles repeated command invocations per requester.
package cooldown

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/orbitbot/core/logger"
)

// Decision is the result of a throttle check.
type Decision struct {
	Allowed bool
	// Remaining is the whole number of seconds left in the window, rounded up.
	Remaining int
}

type entry struct {
	last   time.Time
	window time.Duration
}

// Tracker records the last invocation per (command, requester).
type Tracker struct {
	mu    sync.Mutex
	state map[string]map[string]entry
	now   func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// New creates an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		state: make(map[string]map[string]entry),
		now:   time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Now returns the tracker clock.
func (t *Tracker) Now() time.Time { return t.now() }

// CheckAndRecord rejects when now falls inside the window opened by the last
// allowed call and otherwise records now. Check and record happen atomically.
// A cooldown of zero or less is always allowed and leaves no state behind.
func (t *Tracker) CheckAndRecord(command, requester string, cooldownSeconds int, now time.Time) Decision {
	if cooldownSeconds <= 0 {
		return Decision{Allowed: true}
	}
	window := time.Duration(cooldownSeconds) * time.Second

	t.mu.Lock()
	defer t.mu.Unlock()

	byUser := t.state[command]
	if byUser == nil {
		byUser = make(map[string]entry)
		t.state[command] = byUser
	}
	if e, ok := byUser[requester]; ok {
		if expires := e.last.Add(window); now.Before(expires) {
			return Decision{Remaining: remainingSeconds(expires.Sub(now))}
		}
	}
	byUser[requester] = entry{last: now, window: window}
	return Decision{Allowed: true}
}

func remainingSeconds(d time.Duration) int {
	ms := d.Milliseconds()
	secs := int((ms + 999) / 1000)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// Sweep drops entries whose window ended before now and returns how many were removed.
func (t *Tracker) Sweep(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for cmd, byUser := range t.state {
		for user, e := range byUser {
			if !now.Before(e.last.Add(e.window)) {
				delete(byUser, user)
				removed++
			}
		}
		if len(byUser) == 0 {
			delete(t.state, cmd)
		}
	}
	return removed
}

// Len reports the number of tracked (command, requester) pairs.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, byUser := range t.state {
		n += len(byUser)
	}
	return n
}

// Run sweeps expired entries every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	log := logger.Component("cooldown")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(t.now()); n > 0 {
				logger.LogEvent(ctx, log, slog.LevelDebug, "cooldown.sweep",
					slog.Int("count", n),
					slog.Int("remaining", t.Len()),
				)
			}
		}
	}
}
