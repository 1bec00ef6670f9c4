package telegram

import (
	"testing"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/classify"
)

var self = &tele.User{ID: 99, Username: "orbit_bot", IsBot: true}

func TestFromMessageText(t *testing.T) {
	in := Inbound{Self: self}
	m := &tele.Message{
		ID:     7,
		Sender: &tele.User{ID: 42, Username: "alice"},
		Chat:   &tele.Chat{ID: -1001, Type: tele.ChatSuperGroup},
		Text:   "/ping@orbit_bot now",
	}
	got := in.FromMessage(m)
	if got.MessageID != "7" || got.SenderID != "42" || got.ConversationID != "-1001" {
		t.Fatalf("ids = %+v", got)
	}
	if !got.IsGroup || got.IsFromSelf || got.Delivery != classify.Notify {
		t.Fatalf("flags = %+v", got)
	}
	if got.Payload.Conversation != "/ping now" || got.SenderName != "alice" {
		t.Fatalf("payload = %+v name=%s", got.Payload, got.SenderName)
	}
}

func TestFromMessageMentionOfOtherBotKept(t *testing.T) {
	in := Inbound{Self: self}
	got := in.FromMessage(&tele.Message{Text: "/ping@other_bot", Chat: &tele.Chat{ID: 1, Type: tele.ChatPrivate}})
	if got.Payload.Conversation != "/ping@other_bot" {
		t.Fatalf("conversation = %q", got.Payload.Conversation)
	}
}

func TestFromMessageCaptionsAndReplies(t *testing.T) {
	in := Inbound{Self: self}
	cases := []struct {
		name string
		msg  *tele.Message
		want func(classify.Payload) bool
	}{
		{"reply", &tele.Message{Text: "!help", ReplyTo: &tele.Message{ID: 1}}, func(p classify.Payload) bool {
			return p.ExtendedText == "!help" && p.Conversation == ""
		}},
		{"photo", &tele.Message{Photo: &tele.Photo{}, Caption: "look"}, func(p classify.Payload) bool {
			return p.ImageCaption == "look"
		}},
		{"video", &tele.Message{Video: &tele.Video{}, Caption: "clip"}, func(p classify.Payload) bool {
			return p.VideoCaption == "clip"
		}},
		{"document", &tele.Message{Document: &tele.Document{}, Caption: "!info"}, func(p classify.Payload) bool {
			return p.DocumentCaption == "!info"
		}},
		{"venue", &tele.Message{Venue: &tele.Venue{Title: "Cafe"}}, func(p classify.Payload) bool {
			return p.LocationComment == "Cafe"
		}},
	}
	for _, tc := range cases {
		if got := in.FromMessage(tc.msg).Payload; !tc.want(got) {
			t.Fatalf("%s: payload = %+v", tc.name, got)
		}
	}
}

func TestFromMessageSelfAndBacklog(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	in := Inbound{Self: self, Since: start, Grace: 30 * time.Second}

	own := in.FromMessage(&tele.Message{Sender: self, Unixtime: start.Unix()})
	if !own.IsFromSelf {
		t.Fatal("expected own message to be flagged")
	}
	old := in.FromMessage(&tele.Message{Unixtime: start.Add(-time.Hour).Unix()})
	if old.Delivery != classify.Other {
		t.Fatal("backlog message should not be a live delivery")
	}
	recent := in.FromMessage(&tele.Message{Unixtime: start.Add(-10 * time.Second).Unix()})
	if recent.Delivery != classify.Notify {
		t.Fatal("message within grace should be live")
	}
}

func TestFromMessagePrivateChat(t *testing.T) {
	got := Inbound{}.FromMessage(&tele.Message{
		Sender: &tele.User{ID: 5, FirstName: "Bob", LastName: "Lee"},
		Chat:   &tele.Chat{ID: 5, Type: tele.ChatPrivate},
	})
	if got.IsGroup || got.SenderName != "Bob Lee" {
		t.Fatalf("got %+v", got)
	}
}

func TestFromCallback(t *testing.T) {
	in := Inbound{Self: self}
	cb := &tele.Callback{
		ID:      "cb1",
		Sender:  &tele.User{ID: 42},
		Message: &tele.Message{Chat: &tele.Chat{ID: -5, Type: tele.ChatGroup}},
		Unique:  "menu",
		Data:    "\fmenu|!status",
	}
	got := in.FromCallback(cb)
	if got.MessageID != "cb1" || got.ConversationID != "-5" || !got.IsGroup {
		t.Fatalf("got %+v", got)
	}
	if got.Payload.ButtonReplyID != "!status" || got.Payload.ListReplyTitle != "menu" {
		t.Fatalf("payload = %+v", got.Payload)
	}
	if text, _ := classify.ExtractText(got.Payload); text != "!status" {
		t.Fatalf("extracted %q", text)
	}
}

func TestNilInputsAreNotLive(t *testing.T) {
	if (Inbound{}).FromMessage(nil).Delivery != classify.Other {
		t.Fatal("nil message must be dropped")
	}
	if (Inbound{}).FromCallback(nil).Delivery != classify.Other {
		t.Fatal("nil callback must be dropped")
	}
}
