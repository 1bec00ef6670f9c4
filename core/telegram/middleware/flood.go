package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/logger"
	tghelpers "github.com/m3rciful/orbitbot/core/telegram/helpers"
)

// idleTTL is how long an untouched per-sender limiter is kept.
const idleTTL = 10 * time.Minute

// FloodOptions configures the per-sender flood guard.
type FloodOptions struct {
	// Interval is the steady-state spacing between accepted updates.
	Interval time.Duration
	Burst    int
	// OnLimited runs for dropped updates, e.g. to answer a callback.
	OnLimited tele.HandlerFunc
	Now       func() time.Time
}

// FloodGuard drops updates from senders that exceed a token bucket rate.
// It sits before classification, so dropped messages never touch cooldown state.
type FloodGuard struct {
	opts FloodOptions

	mu        sync.Mutex
	limiters  map[int64]*entry
	lastSweep time.Time
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewFloodGuard returns a guard; a non-positive interval disables it.
func NewFloodGuard(opts FloodOptions) *FloodGuard {
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &FloodGuard{opts: opts, limiters: make(map[int64]*entry)}
}

// Allow reports whether senderID may proceed at now.
func (g *FloodGuard) Allow(senderID int64) bool {
	if g == nil || g.opts.Interval <= 0 {
		return true
	}
	now := g.opts.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	if now.Sub(g.lastSweep) > idleTTL {
		for id, e := range g.limiters {
			if now.Sub(e.seen) > idleTTL {
				delete(g.limiters, id)
			}
		}
		g.lastSweep = now
	}

	e, ok := g.limiters[senderID]
	if !ok {
		e = &entry{lim: rate.NewLimiter(rate.Every(g.opts.Interval), g.opts.Burst)}
		g.limiters[senderID] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

// Middleware wraps next with the guard.
func (g *FloodGuard) Middleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		user := c.Sender()
		if user == nil || g.Allow(user.ID) {
			return next(c)
		}
		logger.Warn(tghelpers.BuildContext(context.Background(), c), "tg", "tg.rate_limit",
			slog.String("status", "rate_limited"),
		)
		if g.opts.OnLimited != nil {
			_ = g.opts.OnLimited(c)
		}
		return nil
	}
}
