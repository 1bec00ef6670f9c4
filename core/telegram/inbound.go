package telegram

import (
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/classify"
)

// Inbound maps telebot updates onto transport-neutral messages.
type Inbound struct {
	// Self is the bot account; its own messages are flagged.
	Self *tele.User
	// Since marks the start of live delivery. Updates sent earlier than
	// Since minus Grace were queued while the bot was offline.
	Since time.Time
	Grace time.Duration
}

// FromMessage converts a chat message.
func (in Inbound) FromMessage(m *tele.Message) classify.InboundMessage {
	if m == nil {
		return classify.InboundMessage{Delivery: classify.Other}
	}
	msg := classify.InboundMessage{
		MessageID: strconv.Itoa(m.ID),
		Delivery:  in.delivery(m.Unixtime),
		Payload:   in.payload(m),
	}
	in.fillParties(&msg, m.Sender, m.Chat)
	return msg
}

// FromCallback converts an inline button press. The button data is the reply
// id and the button's unique name stands in for a list title.
func (in Inbound) FromCallback(cb *tele.Callback) classify.InboundMessage {
	if cb == nil {
		return classify.InboundMessage{Delivery: classify.Other}
	}
	msg := classify.InboundMessage{
		MessageID: cb.ID,
		Delivery:  classify.Notify,
		Payload: classify.Payload{
			ButtonReplyID:  callbackData(cb),
			ListReplyTitle: cb.Unique,
		},
	}
	var chat *tele.Chat
	if cb.Message != nil {
		chat = cb.Message.Chat
	}
	in.fillParties(&msg, cb.Sender, chat)
	return msg
}

func (in Inbound) fillParties(msg *classify.InboundMessage, sender *tele.User, chat *tele.Chat) {
	if sender != nil {
		msg.SenderID = strconv.FormatInt(sender.ID, 10)
		msg.SenderName = DisplayName(sender)
		msg.IsFromSelf = in.Self != nil && sender.ID == in.Self.ID
	}
	if chat != nil {
		msg.ConversationID = strconv.FormatInt(chat.ID, 10)
		msg.IsGroup = IsGroupChat(chat)
	} else if sender != nil {
		msg.ConversationID = msg.SenderID
	}
}

func (in Inbound) delivery(unix int64) classify.Delivery {
	if in.Since.IsZero() || unix == 0 {
		return classify.Notify
	}
	if time.Unix(unix, 0).Before(in.Since.Add(-in.Grace)) {
		return classify.Other
	}
	return classify.Notify
}

func (in Inbound) payload(m *tele.Message) classify.Payload {
	var p classify.Payload
	text := in.stripMention(m.Text)
	if m.ReplyTo != nil {
		p.ExtendedText = text
	} else {
		p.Conversation = text
	}
	switch {
	case m.Photo != nil:
		p.ImageCaption = in.stripMention(m.Caption)
	case m.Video != nil, m.Animation != nil:
		p.VideoCaption = in.stripMention(m.Caption)
	case m.Document != nil:
		p.DocumentCaption = in.stripMention(m.Caption)
	}
	if m.Venue != nil {
		p.LocationComment = m.Venue.Title
	}
	return p
}

// stripMention rewrites "/ping@mybot args" to "/ping args" when the mention
// targets this bot.
func (in Inbound) stripMention(text string) string {
	if in.Self == nil || in.Self.Username == "" || text == "" {
		return text
	}
	if text[0] != '/' && text[0] != '!' {
		return text
	}
	head, rest, _ := strings.Cut(text, " ")
	cmd, target, found := strings.Cut(head, "@")
	if !found || !strings.EqualFold(target, in.Self.Username) {
		return text
	}
	if rest == "" {
		return cmd
	}
	return cmd + " " + rest
}

// callbackData strips the telebot unique-name prefix from button data.
func callbackData(cb *tele.Callback) string {
	data := strings.TrimPrefix(cb.Data, "\f")
	if cb.Unique != "" {
		data = strings.TrimPrefix(data, cb.Unique+"|")
		if data == cb.Unique {
			data = ""
		}
	}
	return data
}

// IsGroupChat reports whether chat is a group or supergroup.
func IsGroupChat(chat *tele.Chat) bool {
	return chat != nil && (chat.Type == tele.ChatGroup || chat.Type == tele.ChatSuperGroup)
}

// DisplayName prefers the @username and falls back to the full name.
func DisplayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return strconv.FormatInt(u.ID, 10)
	}
	return name
}
