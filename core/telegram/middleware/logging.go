package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/logger"
	tghelpers "github.com/m3rciful/orbitbot/core/telegram/helpers"
)

// recentUpdates suppresses duplicate receipt lines when the chain is applied
// on more than one branch.
type recentUpdates struct {
	mu      sync.Mutex
	seen    map[int]time.Time
	keepFor time.Duration
}

func (r *recentUpdates) firstTime(id int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, ts := range r.seen {
		if now.Sub(ts) > r.keepFor {
			delete(r.seen, k)
		}
	}
	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = now
	return true
}

var recent = &recentUpdates{seen: make(map[int]time.Time), keepFor: 10 * time.Second}

// Logging stores a correlated context on every update and emits one sampled
// debug line per update id.
func Logging(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(context.Background(), c)
		upd := c.Update()

		if logger.ShouldSampleDebug() && recent.firstTime(upd.ID, time.Now()) {
			attrs := []slog.Attr{
				slog.String("status", "ok"),
				slog.Int("update_id", upd.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
			}
			if user := c.Sender(); user != nil && user.Username != "" {
				attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
			}
			if t := c.Text(); t != "" {
				attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
			}
			logger.Debug(ctx, "tg", "update.received", attrs...)
		}
		return next(c)
	}
}
