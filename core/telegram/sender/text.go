package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/logger"
)

// maxTextLen is the Bot API limit for a single text message, in runes.
const maxTextLen = 4096

// Poster is the subset of *tele.Bot used to deliver messages.
type Poster interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TextSender delivers plain text replies to Telegram chats. Delivery is
// asynchronous; a saturated queue falls back to a direct send.
type TextSender struct {
	poster Poster
	queue  *Queue
}

// NewTextSender binds a poster to a queue. A nil queue sends synchronously.
func NewTextSender(p Poster, q *Queue) *TextSender {
	return &TextSender{poster: p, queue: q}
}

// SendText implements command.Sender. conversationID is a Telegram chat id.
func (s *TextSender) SendText(ctx context.Context, conversationID, text string) error {
	chatID, err := strconv.ParseInt(strings.TrimSpace(conversationID), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram sender: invalid chat id %q: %w", conversationID, err)
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := splitText(text, maxTextLen)
	// next survives retries so parts already delivered are not sent twice.
	next := 0
	run := func(context.Context) error {
		for ; next < len(parts); next++ {
			if _, err := s.poster.Send(tele.ChatID(chatID), parts[next]); err != nil {
				return err
			}
		}
		return nil
	}

	if s.queue == nil {
		return run(ctx)
	}
	err = s.queue.Enqueue(ctx, "send_text", conversationID, run)
	if errors.Is(err, ErrQueueFull) {
		logger.Warn(ctx, "tg.sender", "send.queue_full",
			slog.String("status", "skip"),
			slog.String("target", conversationID),
		)
		return run(ctx)
	}
	return err
}

// splitText cuts text into chunks of at most limit runes, preferring line breaks.
func splitText(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}
