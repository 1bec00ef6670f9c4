// Package dispatch turns a command message into a handler invocation:
// parse, resolve, authorize, throttle, invoke.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/m3rciful/orbitbot/core/command"
	"github.com/m3rciful/orbitbot/core/cooldown"
	"github.com/m3rciful/orbitbot/core/logger"
)

// Outcome is the terminal state of one dispatch.
type Outcome int

// Dispatch outcomes, one per terminal state.
const (
	Unrecognized Outcome = iota
	Denied
	Throttled
	Failed
	Executed
)

func (o Outcome) String() string {
	switch o {
	case Unrecognized:
		return "unrecognized"
	case Denied:
		return "denied"
	case Throttled:
		return "throttled"
	case Failed:
		return "fail"
	case Executed:
		return "ok"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Authorizer decides whether a requester satisfies a descriptor's requirements.
type Authorizer interface {
	Authorize(ctx context.Context, requester, conversationID string, isGroup bool, req command.Requirements) bool
}

// Throttle records invocations and rejects those inside the cooldown window.
type Throttle interface {
	CheckAndRecord(command, requester string, cooldownSeconds int, now time.Time) cooldown.Decision
}

// CommandLog receives every executed command.
type CommandLog interface {
	Command(name, requester string)
}

// ErrHandlerTimeout is reported when a handler outlives its deadline.
var ErrHandlerTimeout = errors.New("dispatch: handler deadline exceeded")

// Dispatcher runs command messages through the gating steps and invokes handlers.
type Dispatcher struct {
	registry *command.Registry
	auth     Authorizer
	throttle Throttle
	sender   command.Sender
	replies  Replies
	audit    CommandLog
	timeout  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// Options configures a Dispatcher. Zero values select defaults.
type Options struct {
	Replies Replies
	Audit   CommandLog
	// HandlerTimeout bounds a single handler run; zero disables the deadline.
	HandlerTimeout time.Duration
	Now            func() time.Time
}

// New wires a dispatcher.
func New(reg *command.Registry, auth Authorizer, throttle Throttle, sender command.Sender, opts Options) *Dispatcher {
	if opts.Replies == (Replies{}) {
		opts.Replies = DefaultReplies()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		registry: reg,
		auth:     auth,
		throttle: throttle,
		sender:   sender,
		replies:  opts.Replies,
		audit:    opts.Audit,
		timeout:  opts.HandlerTimeout,
		now:      opts.Now,
		log:      logger.Component("dispatch"),
	}
}

// Replies returns the notices in use.
func (d *Dispatcher) Replies() Replies { return d.replies }

// Registry returns the command registry.
func (d *Dispatcher) Registry() *command.Registry { return d.registry }

// Dispatch handles one command message and returns how it ended. It never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, inv command.Invocation) Outcome {
	start := time.Now()

	token, args, ok := Parse(inv.Text)
	if !ok {
		d.reply(ctx, inv, d.replies.Unrecognized)
		d.summary(ctx, "", Unrecognized, start)
		return Unrecognized
	}

	desc, ok := d.registry.Lookup(token)
	if !ok {
		d.reply(ctx, inv, d.replies.Unrecognized)
		d.summary(ctx, token, Unrecognized, start)
		return Unrecognized
	}
	ctx = logger.WithHandler(ctx, desc.Name)

	if d.auth != nil && !d.auth.Authorize(ctx, inv.Requester, inv.Conversation, inv.IsGroup, desc.Requirements) {
		logger.LogEvent(ctx, d.log, slog.LevelWarn, "command.denied",
			slog.String("status", "denied"),
			slog.String("command", desc.Name),
			slog.String("sender_id", inv.Requester),
		)
		d.reply(ctx, inv, d.replies.Denied)
		d.summary(ctx, desc.Name, Denied, start)
		return Denied
	}

	// recorded before the handler runs so a slow handler cannot open the window twice
	if d.throttle != nil {
		dec := d.throttle.CheckAndRecord(desc.Name, inv.Requester, desc.CooldownSeconds, d.now())
		if !dec.Allowed {
			d.reply(ctx, inv, d.replies.CooldownText(dec.Remaining))
			d.summary(ctx, desc.Name, Throttled, start, slog.Int("remaining_s", dec.Remaining))
			return Throttled
		}
	}

	if err := d.invoke(ctx, desc, inv, token, args); err != nil {
		logger.LogEvent(ctx, d.log, slog.LevelError, "command.failed",
			slog.String("status", "fail"),
			slog.String("command", desc.Name),
			slog.String("sender_id", inv.Requester),
			slog.String("err", logger.SanitizeLimit(err.Error(), 512)),
		)
		d.reply(ctx, inv, d.replies.Failure)
		d.summary(ctx, desc.Name, Failed, start)
		return Failed
	}

	if d.audit != nil {
		d.audit.Command(desc.Name, inv.Requester)
	}
	d.summary(ctx, desc.Name, Executed, start)
	return Executed
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string { return fmt.Sprintf("panic: %v", p.value) }

// invoke runs the handler under the deadline and converts panics into errors.
func (d *Dispatcher) invoke(ctx context.Context, desc *command.Descriptor, inv command.Invocation, token string, args []string) error {
	if desc.Handler == nil {
		return fmt.Errorf("command %s has no handler", desc.Name)
	}
	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if d.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, d.timeout)
	}
	defer cancel()

	hc := command.NewContext(runCtx, d.sender, inv, desc.Name, token, args)
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &panicError{value: r, stack: debug.Stack()}
			}
		}()
		done <- desc.Handler(hc)
	}()

	select {
	case err := <-done:
		var pe *panicError
		if errors.As(err, &pe) {
			logger.LogEvent(ctx, d.log, slog.LevelError, "command.panic",
				slog.String("status", "fail"),
				slog.String("command", desc.Name),
				slog.String("sender_id", inv.Requester),
				slog.Any("err", pe.value),
				slog.String("stack", string(pe.stack)),
			)
		}
		return err
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ErrHandlerTimeout
		}
		return runCtx.Err()
	}
}

func (d *Dispatcher) reply(ctx context.Context, inv command.Invocation, text string) {
	if d.sender == nil || text == "" {
		return
	}
	if err := d.sender.SendText(ctx, inv.Conversation, text); err != nil {
		logger.LogEvent(ctx, d.log, slog.LevelWarn, "reply.send",
			slog.String("status", "fail"),
			slog.String("conversation_id", inv.Conversation),
			slog.String("err", err.Error()),
		)
	}
}

func (d *Dispatcher) summary(ctx context.Context, name string, out Outcome, start time.Time, extra ...slog.Attr) {
	level := slog.LevelInfo
	if out == Failed {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("status", out.String()),
		slog.String("command", name),
		slog.String("outcome", out.String()),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	logger.LogEvent(ctx, d.log, level, "command.handled", append(attrs, extra...)...)
}
