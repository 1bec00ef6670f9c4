package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/config"
	"github.com/m3rciful/orbitbot/core/telegram/middleware"
)

// DefaultMiddlewares builds the shared chain: panic recovery, correlated
// logging, then the flood guard when configured.
func DefaultMiddlewares(cfg *config.Config) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.Recover},
		{Name: "logging", Use: middleware.Logging},
	}
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return mws
	}
	guard := middleware.NewFloodGuard(middleware.FloodOptions{
		Interval: time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
		Burst:    cfg.RateLimit.Burst,
		OnLimited: func(c tele.Context) error {
			if c.Callback() != nil {
				return c.Respond()
			}
			return nil
		},
	})
	return append(mws, Middleware{Name: "flood_guard", Use: guard.Middleware})
}
