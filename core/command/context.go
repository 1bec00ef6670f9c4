package command

import (
	"context"
	"fmt"
	"strings"
)

// Sender delivers text to a conversation.
type Sender interface {
	SendText(ctx context.Context, conversationID, text string) error
}

// Invocation describes the message that triggered a command.
type Invocation struct {
	MessageID     string
	Requester     string
	RequesterName string
	Conversation  string
	IsGroup       bool
	Text          string
}

// Context is passed to a Handler. It binds the invocation to the transport.
type Context struct {
	Invocation
	// Command is the canonical name of the resolved descriptor.
	Command string
	// Token is the command word as the user typed it, lowercased.
	Token string
	Args  []string

	ctx    context.Context
	sender Sender
}

// NewContext builds a handler context.
func NewContext(ctx context.Context, s Sender, inv Invocation, name, token string, args []string) *Context {
	return &Context{
		Invocation: inv,
		Command:    name,
		Token:      token,
		Args:       args,
		ctx:        ctx,
		sender:     s,
	}
}

// Context returns the invocation context; it is cancelled when the handler deadline passes.
func (c *Context) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// Reply sends text to the conversation the command came from.
func (c *Context) Reply(text string) error {
	if c.sender == nil {
		return fmt.Errorf("command %s: no sender bound", c.Command)
	}
	return c.sender.SendText(c.Context(), c.Conversation, text)
}

// Replyf formats and sends a reply.
func (c *Context) Replyf(format string, args ...any) error {
	return c.Reply(fmt.Sprintf(format, args...))
}

// Arg returns the i-th argument or "".
func (c *Context) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// ArgString joins the arguments with single spaces.
func (c *Context) ArgString() string {
	return strings.Join(c.Args, " ")
}
