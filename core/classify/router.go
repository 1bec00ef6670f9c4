package classify

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/orbitbot/core/command"
	"github.com/m3rciful/orbitbot/core/dispatch"
	"github.com/m3rciful/orbitbot/core/logger"
)

// Delivery distinguishes live notifications from history syncs and the like.
type Delivery int

const (
	// Notify is a live message.
	Notify Delivery = iota
	// Other covers every non-live delivery; such messages are ignored.
	Other
)

// InboundMessage is a transport event handed to the router.
type InboundMessage struct {
	MessageID      string
	SenderID       string
	SenderName     string
	ConversationID string
	IsGroup        bool
	IsFromSelf     bool
	Delivery       Delivery
	Payload        Payload
}

// Dispatcher runs command messages.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv command.Invocation) dispatch.Outcome
}

// AutoReplier maps conversation text to a canned response.
type AutoReplier interface {
	Match(text string) (string, bool)
}

// MessageLog records accepted inbound texts.
type MessageLog interface {
	Message(sender, text string)
}

// Route is where a message ended up.
type Route int

// Routes returned by Router.Handle.
const (
	Dropped Route = iota
	Blocked
	Dispatched
	Conversed
)

func (r Route) String() string {
	switch r {
	case Blocked:
		return "blocked"
	case Dispatched:
		return "command"
	case Conversed:
		return "conversation"
	}
	return "dropped"
}

// Router is the entry point for every inbound message.
type Router struct {
	Dispatcher  Dispatcher
	AutoReplies AutoReplier
	Blacklist   *Blacklist
	Sender      command.Sender
	Audit       MessageLog
	// BlockedReply is sent to blacklisted senders.
	BlockedReply string
}

// Handle classifies msg and routes it. Blocked senders receive only the
// rejection notice; nothing else runs for them.
func (r *Router) Handle(ctx context.Context, msg InboundMessage) Route {
	start := time.Now()
	if msg.IsFromSelf || msg.Delivery != Notify {
		return Dropped
	}
	text, ok := ExtractText(msg.Payload)
	if !ok {
		return Dropped
	}

	if r.Blacklist.Contains(msg.SenderID) {
		logger.Info(ctx, "classify", "message.blocked",
			slog.String("status", "blocked"),
			slog.String("sender_id", msg.SenderID),
		)
		if r.Sender != nil && r.BlockedReply != "" {
			if err := r.Sender.SendText(ctx, msg.ConversationID, r.BlockedReply); err != nil {
				logger.Warn(ctx, "classify", "reply.send",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			}
		}
		return Blocked
	}

	if r.Audit != nil {
		r.Audit.Message(msg.SenderID, text)
	}

	if Classify(text) == Command {
		if r.Dispatcher == nil {
			return Dropped
		}
		r.Dispatcher.Dispatch(ctx, command.Invocation{
			MessageID:     msg.MessageID,
			Requester:     msg.SenderID,
			RequesterName: msg.SenderName,
			Conversation:  msg.ConversationID,
			IsGroup:       msg.IsGroup,
			Text:          text,
		})
		return Dispatched
	}

	replied := false
	if r.AutoReplies != nil && r.Sender != nil {
		if resp, ok := r.AutoReplies.Match(text); ok {
			if err := r.Sender.SendText(ctx, msg.ConversationID, resp); err != nil {
				logger.Warn(ctx, "classify", "reply.send",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
			} else {
				replied = true
			}
		}
	}
	logger.Debug(ctx, "classify", "conversation.handled",
		slog.String("status", "ok"),
		slog.Bool("replied", replied),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return Conversed
}
