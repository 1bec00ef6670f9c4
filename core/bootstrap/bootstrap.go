// Package bootstrap wires storage, the permission gate, the dispatcher and the
// classifier into a runnable application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/orbitbot/core/audit"
	"github.com/m3rciful/orbitbot/core/auth"
	"github.com/m3rciful/orbitbot/core/autoreply"
	"github.com/m3rciful/orbitbot/core/classify"
	"github.com/m3rciful/orbitbot/core/command"
	"github.com/m3rciful/orbitbot/core/commands"
	"github.com/m3rciful/orbitbot/core/config"
	"github.com/m3rciful/orbitbot/core/cooldown"
	"github.com/m3rciful/orbitbot/core/dispatch"
	"github.com/m3rciful/orbitbot/core/httpapi"
	"github.com/m3rciful/orbitbot/core/logger"
	"github.com/m3rciful/orbitbot/core/registration"
	"github.com/m3rciful/orbitbot/core/store"
	"github.com/m3rciful/orbitbot/core/store/jsonstore"
	"github.com/m3rciful/orbitbot/core/store/postgres"
)

// Options control the bootstrap pipeline.
type Options struct {
	Config *config.Config
	// Sender delivers every reply. Required.
	Sender command.Sender
	// GroupAdmins answers group-admin checks; nil denies them.
	GroupAdmins auth.GroupAdminLookup

	// OpenStore replaces the configured storage backend.
	OpenStore func(ctx context.Context, cfg *config.Config) (store.Store, error)
	// Extra command sources loaded after the built-ins.
	Extra []command.Source
	Now   func() time.Time
}

// App holds the initialized components.
type App struct {
	Config       *config.Config
	Store        store.Store
	Audit        *audit.Log
	Registry     *command.Registry
	Cooldowns    *cooldown.Tracker
	Gate         *auth.Gate
	AutoReplies  *autoreply.Matcher
	Blacklist    *classify.Blacklist
	Registration *registration.Service
	Dispatcher   *dispatch.Dispatcher
	Router       *classify.Router
	HTTP         *httpapi.Server
}

// Run opens storage and builds every component.
func Run(ctx context.Context, opts Options) (*App, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}
	if opts.Sender == nil {
		return nil, fmt.Errorf("bootstrap: nil sender provided")
	}
	cfg := opts.Config
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	started := now()

	openStore := opts.OpenStore
	if openStore == nil {
		openStore = OpenStore
	}
	st, err := openStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: storage initialization failed: %w", err)
	}

	auditLog, err := audit.Open(cfg.Audit)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("bootstrap: audit log: %w", err)
	}

	app := &App{
		Config:       cfg,
		Store:        st,
		Audit:        auditLog,
		Registry:     command.NewRegistry(),
		Cooldowns:    cooldown.New(cooldown.WithClock(now)),
		AutoReplies:  autoreply.New(st),
		Blacklist:    classify.NewBlacklist(st),
		Registration: registration.New(st),
	}

	gateOpts := []auth.Option{auth.WithOwner(cfg.Bot.OwnerID)}
	if opts.GroupAdmins != nil {
		gateOpts = append(gateOpts, auth.WithGroupLookup(opts.GroupAdmins))
	}
	app.Gate = auth.NewGate(st, gateOpts...)
	app.Gate.Load(ctx)

	if _, err := app.AutoReplies.Reload(ctx); err != nil {
		logger.Warn(ctx, "app", "autoreply.load", slog.String("status", "fail"), slog.String("err", err.Error()))
	}
	if _, err := app.Blacklist.Reload(ctx); err != nil {
		logger.Warn(ctx, "app", "blacklist.load", slog.String("status", "fail"), slog.String("err", err.Error()))
	}

	sources := commands.Builtins(commands.Deps{
		Registry: app.Registry,
		Admins:   app.Gate,
		Reloaders: map[string]commands.Reloader{
			"auto-replies": app.AutoReplies,
			"blacklist":    app.Blacklist,
		},
		Registrar: app.Registration,
		BotName:   cfg.Bot.Name,
		Started:   started,
		Now:       now,
	})
	loaded, skipped := app.Registry.Load(append(sources, opts.Extra...)...)
	logger.Info(ctx, "app", "commands.loaded",
		slog.Int("count", loaded),
		slog.Int("skipped", skipped),
	)

	replies := dispatch.RepliesFromConfig(cfg.Bot.Replies)
	app.Dispatcher = dispatch.New(app.Registry, app.Gate, app.Cooldowns, opts.Sender, dispatch.Options{
		Replies:        replies,
		Audit:          auditLog,
		HandlerTimeout: time.Duration(cfg.Dispatch.HandlerTimeoutSeconds) * time.Second,
		Now:            now,
	})
	app.Router = &classify.Router{
		Dispatcher:   app.Dispatcher,
		AutoReplies:  app.AutoReplies,
		Blacklist:    app.Blacklist,
		Sender:       opts.Sender,
		Audit:        auditLog,
		BlockedReply: replies.Blacklisted,
	}
	if cfg.HTTP.Listen != "" {
		app.HTTP = httpapi.New(app.Registration)
	}
	return app, nil
}

// Start launches background work: the cooldown sweeper and, when configured,
// the registration endpoint. Both stop with ctx.
func (a *App) Start(ctx context.Context) {
	sweep := time.Duration(a.Config.Dispatch.CooldownSweepSeconds) * time.Second
	go a.Cooldowns.Run(ctx, sweep)

	if a.HTTP != nil {
		go func() {
			if err := a.HTTP.Start(ctx, a.Config.HTTP.Listen); err != nil {
				logger.Error(ctx, "http", "http.serve", slog.String("status", "fail"), slog.String("err", err.Error()))
			}
		}()
	}
}

// Close releases storage and the audit log.
func (a *App) Close() error {
	return errors.Join(a.Audit.Close(), a.Store.Close())
}

// OpenStore opens the configured storage backend. Postgres schemas are
// migrated before use.
func OpenStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.StoragePostgres:
		if err := postgres.Migrate(ctx, cfg.Storage.Database); err != nil {
			return nil, err
		}
		db, err := postgres.Connect(ctx, cfg.Storage.Database)
		if err != nil {
			return nil, err
		}
		return postgres.New(db), nil
	default:
		return jsonstore.Open(cfg.Storage.Dir)
	}
}
