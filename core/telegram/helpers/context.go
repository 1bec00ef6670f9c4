// Package helpers carries request-scoped context through telebot handlers.
package helpers

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/logger"
)

const contextKey = "orbit_ctx"

// StoreContext attaches ctx to c for downstream handlers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(contextKey, ctx)
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok && ctx != nil
}

// IDs returns the message, sender and chat identifiers of the update as
// strings. Callbacks use the callback id as message id.
func IDs(c tele.Context) (messageID, senderID, chatID string) {
	if cb := c.Callback(); cb != nil {
		messageID = cb.ID
	} else if m := c.Message(); m != nil {
		messageID = strconv.Itoa(m.ID)
	}
	if u := c.Sender(); u != nil {
		senderID = strconv.FormatInt(u.ID, 10)
	}
	if ch := c.Chat(); ch != nil {
		chatID = strconv.FormatInt(ch.ID, 10)
	}
	return messageID, senderID, chatID
}

// BuildContext returns the stored context or derives a new one carrying the
// rid and message metadata, rooted at parent.
func BuildContext(parent context.Context, c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}
	if parent == nil {
		parent = context.Background()
	}
	messageID, senderID, chatID := IDs(c)
	ctx := logger.WithRID(parent, logger.BuildRID(messageID, chatID, senderID))
	ctx = logger.WithMessageMeta(ctx, messageID, senderID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler tags the stored context with a handler name.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(context.Background(), c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}
