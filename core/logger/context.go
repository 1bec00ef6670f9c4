package logger

import (
	"context"
	"log/slog"
	"strings"
	"unicode"
)

// contextKey is a private type to avoid collisions in context.
type contextKey string

const (
	ctxRID          contextKey = "rid"
	ctxMessageID    contextKey = "message_id"
	ctxSenderID     contextKey = "sender_id"
	ctxConversation contextKey = "conversation_id"
	ctxLogger       contextKey = "logger"
	ctxHandler      contextKey = "handler"
)

// WithLogger stores the provided slog.Logger in context for propagation across layers.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxLogger, log)
}

// FromContext extracts slog.Logger from context or returns the base logger.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxLogger).(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return L
}

// WithRID attaches request correlation id into context.
func WithRID(ctx context.Context, rid string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxRID, rid)
}

// RIDFrom extracts rid from context if present.
func RIDFrom(ctx context.Context) string {
	return stringValue(ctx, ctxRID)
}

// WithMessageMeta attaches the identifiers of an inbound message to context.
func WithMessageMeta(ctx context.Context, messageID, senderID, conversationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxMessageID, messageID)
	ctx = context.WithValue(ctx, ctxSenderID, senderID)
	return context.WithValue(ctx, ctxConversation, conversationID)
}

// MessageIDFrom returns the inbound message id stored in context.
func MessageIDFrom(ctx context.Context) string {
	return stringValue(ctx, ctxMessageID)
}

// SenderIDFrom returns the requester id stored in context.
func SenderIDFrom(ctx context.Context) string {
	return stringValue(ctx, ctxSenderID)
}

// ConversationIDFrom returns the conversation id stored in context.
func ConversationIDFrom(ctx context.Context) string {
	return stringValue(ctx, ctxConversation)
}

// WithHandler stores handler identifier in context for downstream logs.
func WithHandler(ctx context.Context, handler string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if handler == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxHandler, handler)
}

// HandlerFrom returns handler identifier from context if present.
func HandlerFrom(ctx context.Context) string {
	return stringValue(ctx, ctxHandler)
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	s, _ := ctx.Value(key).(string)
	return s
}

// BuildRID returns a correlation identifier in the format messageID:conversationID:senderID.
func BuildRID(messageID, conversationID, senderID string) string {
	return messageID + ":" + conversationID + ":" + senderID
}

// Sanitize drops control and format runes from s, keeping tabs and newlines.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || unicode.Is(unicode.Cf, r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SanitizeLimit applies Sanitize and caps the result at max runes.
func SanitizeLimit(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(Sanitize(s))
	if len(r) <= max {
		return string(r)
	}
	return string(r[:max])
}
