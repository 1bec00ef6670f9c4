package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/command"
	"github.com/m3rciful/orbitbot/core/config"
	"github.com/m3rciful/orbitbot/core/logger"
	"github.com/m3rciful/orbitbot/core/telegram/sender"
)

// backlogGrace is how far before startup a message may be dated and still be
// treated as live.
const backlogGrace = 30 * time.Second

// Middleware describes a global bot middleware registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route binds a handler to a telebot endpoint.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls Transport.Run.
type RunOptions struct {
	Registry    *command.Registry
	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup bool

	OnStart func(ctx context.Context) error
	OnStop  func(ctx context.Context) error
}

// Transport owns the bot connection and its outbound queue.
type Transport struct {
	cfg    *config.Config
	bot    *tele.Bot
	queue  *sender.Queue
	text   *sender.TextSender
	groups *GroupAdmins

	mu      sync.RWMutex
	inbound Inbound
}

// New connects to the Bot API and prepares the outbound queue.
func New(cfg *config.Config, queueOpts sender.Options) (*Transport, error) {
	if cfg == nil {
		return nil, fmt.Errorf("telegram: nil config provided")
	}
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  BuildPoller(cfg),
		Client:  BuildHTTPClient(),
		OnError: onError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %s", sender.RedactToken(err))
	}
	logBuild(cfg, bot, logger.Took(start))

	q := sender.NewQueue(queueOpts)
	t := &Transport{
		cfg:     cfg,
		bot:     bot,
		queue:   q,
		text:    sender.NewTextSender(bot, q),
		groups:  NewGroupAdmins(bot, 0),
		inbound: Inbound{Self: bot.Me, Grace: backlogGrace},
	}
	return t, nil
}

// Bot exposes the underlying telebot instance.
func (t *Transport) Bot() *tele.Bot { return t.bot }

// Sender returns the text sender used for every reply.
func (t *Transport) Sender() *sender.TextSender { return t.text }

// GroupAdmins returns the group-admin lookup backed by this bot.
func (t *Transport) GroupAdmins() *GroupAdmins { return t.groups }

// Inbound returns the current update mapper.
func (t *Transport) Inbound() Inbound {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.inbound
}

// Run registers middleware and routes and processes updates until ctx is done.
func (t *Transport) Run(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !opts.DisableWebhookCleanup && t.cfg.Telegram.RunMode == config.RunModeLongpoll {
		if err := deleteWebhook(ctx, t.bot.Token); err != nil {
			logger.TG.Warn("failed to delete webhook",
				slog.String("event", "delete_webhook"),
				slog.String("status", "fail"),
				slog.String("err", sender.RedactToken(err)),
			)
		} else {
			logger.TG.Info("webhook deleted", slog.String("event", "delete_webhook"))
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			t.bot.Use(mw.Use)
		}
	}
	for _, route := range opts.Routes {
		if route.Endpoint != nil && route.Handler != nil {
			t.bot.Handle(route.Endpoint, route.Handler)
		}
	}
	if opts.Registry != nil {
		SetupCommands(t.bot, opts.Registry)
	}

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx); err != nil {
			t.queue.Close()
			return err
		}
	}

	t.mu.Lock()
	t.inbound.Since = time.Now()
	t.mu.Unlock()

	runDone := make(chan struct{})
	go func() {
		t.bot.Start()
		close(runDone)
	}()
	logConnection(ctx, "open")

	var runErr error
	select {
	case <-ctx.Done():
		t.bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}
	logConnection(ctx, "closed")

	var stopErr error
	if opts.OnStop != nil {
		stopErr = opts.OnStop(context.WithoutCancel(ctx))
	}
	t.queue.Close()

	sent, failed := t.queue.Stats()
	logger.TG.Info("transport stopped",
		slog.String("event", "tg.stopped"),
		slog.Uint64("sent", sent),
		slog.Uint64("failed", failed),
	)

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

func onError(err error, c tele.Context) {
	attrs := []slog.Attr{
		slog.String("event", "tg.error"),
		slog.String("status", "fail"),
		slog.String("err", sender.RedactToken(err)),
	}
	if c != nil {
		attrs = append(attrs, slog.Int("update_id", c.Update().ID))
	}
	logger.TG.LogAttrs(context.Background(), slog.LevelError, "telegram error", attrs...)
}

func logConnection(ctx context.Context, state string) {
	logger.TG.LogAttrs(ctx, slog.LevelInfo, "connection "+state,
		slog.String("event", "tg.connection"),
		slog.String("state", state),
	)
}

func logBuild(cfg *config.Config, bot *tele.Bot, took time.Duration) {
	attrs := []slog.Attr{
		slog.String("event", "mode"),
		slog.String("mode", cfg.Telegram.RunMode),
		slog.Duration("duration", logger.RoundMS(took)),
	}
	if bot.Me != nil {
		attrs = append(attrs, slog.String("username", bot.Me.Username))
	}
	switch p := bot.Poller.(type) {
	case *tele.Webhook:
		attrs = append(attrs, slog.String("listen", p.Listen), slog.String("public_url", p.Endpoint.PublicURL))
	case *tele.LongPoller:
		attrs = append(attrs, slog.Int("timeout_seconds", int(p.Timeout/time.Second)))
	}
	logger.TG.LogAttrs(context.Background(), slog.LevelInfo, "transport ready", attrs...)
}

func deleteWebhook(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		return fmt.Errorf("empty token")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/deleteWebhook", token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader("drop_pending_updates=false"))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("deleteWebhook status: %s", resp.Status)
	}
	return nil
}
