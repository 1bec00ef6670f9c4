package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/orbitbot/core/command"
	"github.com/m3rciful/orbitbot/core/config"
	"github.com/m3rciful/orbitbot/core/cooldown"
)

type sent struct {
	conversation string
	text         string
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []sent
}

func (s *recordingSender) SendText(_ context.Context, conversation, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, sent{conversation, text})
	return nil
}

func (s *recordingSender) last(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.msgs) == 0 {
		t.Fatal("nothing sent")
	}
	return s.msgs[len(s.msgs)-1].text
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

type staticAuth struct {
	admins map[string]bool
}

func (a staticAuth) Authorize(_ context.Context, requester, _ string, _ bool, req command.Requirements) bool {
	if !req.Any() {
		return true
	}
	return a.admins[requester]
}

type commandLog struct{ names []string }

func (l *commandLog) Command(name, requester string) { l.names = append(l.names, name+"/"+requester) }

type fixture struct {
	d       *Dispatcher
	sender  *recordingSender
	tracker *cooldown.Tracker
	audit   *commandLog
	now     time.Time
	runs    int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		sender:  &recordingSender{},
		tracker: cooldown.New(),
		audit:   &commandLog{},
		now:     time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
	reg := command.NewRegistry()
	reg.Register(command.Descriptor{
		Name:            "ping",
		Aliases:         []string{"p"},
		CooldownSeconds: 5,
		Handler: func(c *command.Context) error {
			f.runs++
			return c.Reply("🏓 Pong!")
		},
	})
	reg.Register(command.Descriptor{
		Name:         "admins",
		Requirements: command.Requirements{Admin: true},
		Handler:      func(c *command.Context) error { return c.Reply("A") },
	})
	reg.Register(command.Descriptor{
		Name:    "boom",
		Handler: func(*command.Context) error { panic("kaboom") },
	})
	reg.Register(command.Descriptor{
		Name:    "broken",
		Handler: func(*command.Context) error { return errors.New("db down: secret dsn") },
	})
	reg.Register(command.Descriptor{
		Name: "echo",
		Handler: func(c *command.Context) error {
			return c.Replyf("%s|%s", c.Token, strings.Join(c.Args, ","))
		},
	})
	reg.Register(command.Descriptor{
		Name: "hang",
		Handler: func(c *command.Context) error {
			<-c.Context().Done()
			return c.Context().Err()
		},
	})
	f.d = New(reg, staticAuth{admins: map[string]bool{"A1": true}}, f.tracker, f.sender, Options{
		Audit:          f.audit,
		HandlerTimeout: 50 * time.Millisecond,
		Now:            func() time.Time { return f.now },
	})
	return f
}

func inv(sender, text string) command.Invocation {
	return command.Invocation{Requester: sender, Conversation: "chat-" + sender, Text: text}
}

func TestEndToEndPingThrottle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if out := f.d.Dispatch(ctx, inv("U1", "!ping")); out != Executed {
		t.Fatalf("first ping = %v", out)
	}
	if f.runs != 1 || f.sender.last(t) != "🏓 Pong!" {
		t.Fatalf("handler runs = %d, last = %q", f.runs, f.sender.last(t))
	}
	if f.tracker.Len() != 1 {
		t.Fatalf("cooldown entries = %d", f.tracker.Len())
	}

	if out := f.d.Dispatch(ctx, inv("U1", "!ping")); out != Throttled {
		t.Fatalf("second ping = %v", out)
	}
	if want := DefaultReplies().CooldownText(5); f.sender.last(t) != want {
		t.Fatalf("cooldown reply = %q, want %q", f.sender.last(t), want)
	}

	f.now = f.now.Add(2 * time.Second)
	if out := f.d.Dispatch(ctx, inv("U1", "!PING")); out != Throttled {
		t.Fatalf("upper-case ping = %v", out)
	}
	if want := DefaultReplies().CooldownText(3); f.sender.last(t) != want {
		t.Fatalf("cooldown reply = %q, want %q", f.sender.last(t), want)
	}
	if out := f.d.Dispatch(ctx, inv("U1", "/p")); out != Throttled {
		t.Fatalf("alias with slash prefix = %v", out)
	}
	if f.runs != 1 {
		t.Fatalf("handler ran %d times", f.runs)
	}

	f.now = f.now.Add(3 * time.Second)
	if out := f.d.Dispatch(ctx, inv("U1", "!ping")); out != Executed {
		t.Fatalf("ping after window = %v", out)
	}
	if len(f.audit.names) != 2 || f.audit.names[0] != "ping/U1" {
		t.Fatalf("audit = %v", f.audit.names)
	}
}

func TestUnknownCommandLeavesNoState(t *testing.T) {
	f := newFixture(t)
	for _, text := range []string{"!frobnicate", "!", "! ping", "ping"} {
		if out := f.d.Dispatch(context.Background(), inv("U1", text)); out != Unrecognized {
			t.Fatalf("Dispatch(%q) = %v", text, out)
		}
		if f.sender.last(t) != DefaultReplies().Unrecognized {
			t.Fatalf("reply = %q", f.sender.last(t))
		}
	}
	if f.tracker.Len() != 0 || len(f.audit.names) != 0 {
		t.Fatal("unrecognized command touched state")
	}
}

func TestDeniedDoesNotRecordCooldown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if out := f.d.Dispatch(ctx, inv("U1", "!admins")); out != Denied {
		t.Fatalf("got %v", out)
	}
	if f.sender.last(t) != DefaultReplies().Denied {
		t.Fatalf("reply = %q", f.sender.last(t))
	}
	if out := f.d.Dispatch(ctx, inv("A1", "!admins")); out != Executed {
		t.Fatalf("admin got %v", out)
	}
}

func TestHandlerFailuresAreIsolated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, text := range []string{"!boom", "!broken", "!hang"} {
		if out := f.d.Dispatch(ctx, inv("U1", text)); out != Failed {
			t.Fatalf("Dispatch(%q) = %v", text, out)
		}
		got := f.sender.last(t)
		if got != DefaultReplies().Failure {
			t.Fatalf("failure reply = %q", got)
		}
		if strings.Contains(got, "secret") || strings.Contains(got, "kaboom") {
			t.Fatalf("internal detail leaked: %q", got)
		}
	}
	if out := f.d.Dispatch(ctx, inv("U1", "!ping")); out != Executed {
		t.Fatalf("dispatcher unusable after failures: %v", out)
	}
}

func TestArgsAreSplitOnWhitespace(t *testing.T) {
	f := newFixture(t)
	f.d.Dispatch(context.Background(), inv("U1", "/ECHO  a   b\tc"))
	if got := f.sender.last(t); got != "echo|a,b,c" {
		t.Fatalf("reply = %q", got)
	}
}

func TestConcurrentInvocationsShareOneWindow(t *testing.T) {
	f := newFixture(t)
	f.d.registry.Register(command.Descriptor{
		Name:            "slow",
		CooldownSeconds: 60,
		Handler: func(c *command.Context) error {
			time.Sleep(10 * time.Millisecond)
			return nil
		},
	})
	var wg sync.WaitGroup
	results := make(chan Outcome, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.d.Dispatch(context.Background(), inv("U1", "!slow"))
		}()
	}
	wg.Wait()
	close(results)
	executed := 0
	for out := range results {
		if out == Executed {
			executed++
		}
	}
	if executed != 1 {
		t.Fatalf("executed %d times inside one window", executed)
	}
	if f.sender.count() != 7 {
		t.Fatalf("sent %d cooldown notices", f.sender.count())
	}
}

func TestParse(t *testing.T) {
	cases := map[string]struct {
		token string
		args  int
		ok    bool
	}{
		"!ping":       {"ping", 0, true},
		"/Help time":  {"help", 1, true},
		"  !t  a b ":  {"t", 2, true},
		"!":           {"", 0, false},
		"! ping":      {"", 0, false},
		"hello !ping": {"", 0, false},
		"":            {"", 0, false},
	}
	for in, want := range cases {
		tok, args, ok := Parse(in)
		if tok != want.token || len(args) != want.args || ok != want.ok {
			t.Fatalf("Parse(%q) = %q, %v, %v", in, tok, args, ok)
		}
	}
}

func TestRepliesFromConfigKeepsDefaults(t *testing.T) {
	r := RepliesFromConfig(config.RepliesConfig{Denied: "nope", Cooldown: "wait"})
	if r.Denied != "nope" {
		t.Fatalf("Denied = %q", r.Denied)
	}
	if r.Cooldown != DefaultReplies().Cooldown {
		t.Fatalf("Cooldown = %q, a template without a seconds verb must be ignored", r.Cooldown)
	}
}
