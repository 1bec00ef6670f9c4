// Package classify extracts text from inbound payloads, filters blocked
// senders and routes commands and plain conversation.
package classify

import "regexp"

// Payload carries the text-bearing fields a transport message may have.
type Payload struct {
	Conversation    string
	ExtendedText    string
	ImageCaption    string
	VideoCaption    string
	DocumentCaption string
	LocationComment string
	ButtonReplyID   string
	ListReplyTitle  string
}

// ExtractText returns the first non-empty field in priority order: plain body,
// extended text, media captions, location comment, interactive replies.
func ExtractText(p Payload) (string, bool) {
	for _, s := range []string{
		p.Conversation,
		p.ExtendedText,
		p.ImageCaption,
		p.VideoCaption,
		p.DocumentCaption,
		p.LocationComment,
		p.ButtonReplyID,
		p.ListReplyTitle,
	} {
		if s != "" {
			return s, true
		}
	}
	return "", false
}

// Kind is the routing class of a text.
type Kind int

const (
	// Conversation is plain text for the auto-reply matcher.
	Conversation Kind = iota
	// Command is text addressed to the dispatcher.
	Command
)

func (k Kind) String() string {
	if k == Command {
		return "command"
	}
	return "conversation"
}

var commandRe = regexp.MustCompile(`^[!/][\p{L}\p{N}_]`)

// Classify reports Command iff text starts with "!" or "/" followed by a word character.
func Classify(text string) Kind {
	if commandRe.MatchString(text) {
		return Command
	}
	return Conversation
}
