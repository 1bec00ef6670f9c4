// Package cmd builds the orbitbot command line.
package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/m3rciful/orbitbot/core/bootstrap"
	"github.com/m3rciful/orbitbot/core/buildinfo"
	"github.com/m3rciful/orbitbot/core/config"
	"github.com/m3rciful/orbitbot/core/logger"
	"github.com/m3rciful/orbitbot/core/store/postgres"
	"github.com/m3rciful/orbitbot/core/telegram"
	"github.com/m3rciful/orbitbot/core/telegram/router"
	"github.com/m3rciful/orbitbot/core/telegram/sender"
)

const (
	configEnvVar      = "CONFIG_PATH"
	defaultConfigPath = "config.yaml"
)

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// NewRootCmd assembles the CLI: run, migrate and version.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "orbitbot",
		Short:        "Chat bot with command dispatch and role-based permissions",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "Config file path (defaults to $"+configEnvVar+" or "+defaultConfigPath+").")

	root.AddCommand(newRunCmd(), newMigrateCmd(), newVersionCmd())
	return root
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to Telegram and serve commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return Run(ctx, cfg)
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply postgres schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != config.StoragePostgres {
				return fmt.Errorf("migrate: storage.driver is %q, nothing to migrate", cfg.Storage.Driver)
			}
			if err := logger.Init(cfg); err != nil {
				return fmt.Errorf("logger init failed: %w", err)
			}
			defer shutdownLogger()
			return postgres.Migrate(cmd.Context(), cfg.Storage.Database)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
		},
	}
}

// Run bootstraps the application and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg *config.Config) error {
	startedAt := time.Now()
	if err := logger.Init(cfg); err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	defer shutdownLogger()

	transport, err := telegram.New(cfg, sender.Options{MaxRetries: 2})
	if err != nil {
		return err
	}
	app, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:      cfg,
		Sender:      transport.Sender(),
		GroupAdmins: transport.GroupAdmins(),
	})
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn(context.Background(), "app", "close", slog.String("status", "fail"), slog.String("err", err.Error()))
		}
	}()

	routes := router.Routes(router.Options{
		Inbound: transport.Inbound,
		Handler: app.Router,
		Welcome: &router.Welcome{
			Sender:   transport.Sender(),
			Template: cfg.Bot.Replies.Welcome,
			Self:     transport.Bot().Me,
		},
	})

	return transport.Run(ctx, telegram.RunOptions{
		Registry:    app.Registry,
		Middlewares: telegram.DefaultMiddlewares(cfg),
		Routes:      routes,
		OnStart: func(ctx context.Context) error {
			app.Start(ctx)
			logger.L.With("component", "app").Info("app ready",
				slog.String("event", "ready"),
				slog.Int("commands", len(app.Registry.List())),
				slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
			)
			return nil
		},
		OnStop: func(context.Context) error {
			logger.L.With("component", "app").Info("shutting down...",
				slog.String("event", "shutdown"),
			)
			return nil
		},
	})
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	path = strings.TrimSpace(path)
	if path == "" {
		path = os.Getenv(configEnvVar)
	}
	if path == "" {
		path = defaultConfigPath
	}
	log.Printf("loading config: %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func shutdownLogger() {
	if err := logger.Shutdown(); err != nil {
		log.Printf("logger shutdown error: %v", err)
	}
}
