package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m3rciful/orbitbot/core/classify"
	"github.com/m3rciful/orbitbot/core/config"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []string
}

func (r *recordingSender) SendText(_ context.Context, _, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *recordingSender) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sent...)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Telegram.Token = "123:abc"
	cfg.Bot.OwnerID = "1"
	cfg.Storage.Dir = t.TempDir()
	cfg.Audit.Dir = t.TempDir()
	if err := config.Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	return cfg
}

func message(sender, text string) classify.InboundMessage {
	return classify.InboundMessage{
		MessageID:      "m1",
		SenderID:       sender,
		ConversationID: sender,
		Delivery:       classify.Notify,
		Payload:        classify.Payload{Conversation: text},
	}
}

func TestRunWiresEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	rules := `[{"keywords":["hello"],"response":"Hello there!"}]`
	if err := os.WriteFile(filepath.Join(cfg.Storage.Dir, "auto_replies.json"), []byte(rules), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Storage.Dir, "blacklist.json"), []byte(`{"users":["666"]}`), 0o644); err != nil {
		t.Fatalf("write blacklist: %v", err)
	}

	s := &recordingSender{}
	app, err := Run(context.Background(), Options{Config: cfg, Sender: s, Now: func() time.Time { return time.Unix(1_700_000_000, 0) }})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer app.Close()
	ctx := context.Background()

	if got := app.Router.Handle(ctx, message("42", "!ping")); got != classify.Dispatched {
		t.Fatalf("route = %v", got)
	}
	if got := app.Router.Handle(ctx, message("42", "hello bot")); got != classify.Conversed {
		t.Fatalf("route = %v", got)
	}
	if got := app.Router.Handle(ctx, message("666", "!ping")); got != classify.Blocked {
		t.Fatalf("route = %v", got)
	}

	sent := app.Router.Sender.(*recordingSender).all()
	if len(sent) != 4 || sent[0] != "Checking..." || !strings.HasPrefix(sent[1], "🏓 Pong!") {
		t.Fatalf("sent = %q", sent)
	}
	if sent[2] != "Hello there!" || sent[3] != app.Dispatcher.Replies().Blacklisted {
		t.Fatalf("sent = %q", sent)
	}
	if app.HTTP != nil {
		t.Fatal("http endpoint must stay off without a listen address")
	}
}

func TestOwnerCanManageAdmins(t *testing.T) {
	cfg := testConfig(t)
	s := &recordingSender{}
	app, err := Run(context.Background(), Options{Config: cfg, Sender: s})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	defer app.Close()
	ctx := context.Background()

	app.Router.Handle(ctx, message("1", "!addadmin 7"))
	if got := app.Gate.Admins(); len(got) != 1 || got[0] != "7" {
		t.Fatalf("admins = %v", got)
	}
	persisted, err := app.Store.Admins(ctx)
	if err != nil || len(persisted) != 1 || persisted[0] != "7" {
		t.Fatalf("persisted = %v, %v", persisted, err)
	}

	app.Router.Handle(ctx, message("9", "!addadmin 8"))
	if len(app.Gate.Admins()) != 1 {
		t.Fatal("non-owner must not add admins")
	}
}

func TestRunRequiresSender(t *testing.T) {
	if _, err := Run(context.Background(), Options{Config: testConfig(t)}); err == nil {
		t.Fatal("expected error without sender")
	}
}
