// Package commands assembles the built-in command set.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/m3rciful/orbitbot/core/auth"
	"github.com/m3rciful/orbitbot/core/buildinfo"
	"github.com/m3rciful/orbitbot/core/command"
	"github.com/m3rciful/orbitbot/core/registration"
	"github.com/m3rciful/orbitbot/core/store"
)

// AdminManager mutates and lists the admin set.
type AdminManager interface {
	AddAdmin(ctx context.Context, id, requester string) error
	RemoveAdmin(ctx context.Context, id, requester string) error
	Admins() []string
}

// Reloader re-reads a store-backed list and reports its new size.
type Reloader interface {
	Reload(ctx context.Context) (int, error)
}

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, username, password, phone string) (store.Registration, error)
}

// Deps are the collaborators the built-ins need. Nil members disable the
// commands that depend on them.
type Deps struct {
	Registry  *command.Registry
	Admins    AdminManager
	Reloaders map[string]Reloader
	Registrar Registrar
	BotName   string
	Started   time.Time
	Now       func() time.Time
}

// Builtins returns the built-in command sources grouped by category.
func Builtins(d Deps) []command.Source {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Started.IsZero() {
		d.Started = d.Now()
	}
	if d.BotName == "" {
		d.BotName = "Orbit Bot"
	}
	sources := []command.Source{
		command.Many(general(d)...),
		command.Many(utility(d)...),
	}
	if d.Admins != nil {
		sources = append(sources, command.Many(adminCommands(d)...))
	}
	if len(d.Reloaders) > 0 {
		sources = append(sources, command.Single(reloadCommand(d)))
	}
	if d.Registrar != nil {
		sources = append(sources, command.Single(registerCommand(d)))
	}
	return sources
}

func general(d Deps) []command.Descriptor {
	return []command.Descriptor{
		{
			Name:            "help",
			Description:     "Show the list of commands",
			Usage:           "!help [command]",
			Aliases:         []string{"h"},
			Category:        "general",
			CooldownSeconds: 5,
			Handler:         helpHandler(d.Registry),
		},
		{
			Name:            "ping",
			Description:     "Check that the bot is alive",
			Usage:           "!ping",
			Aliases:         []string{"p"},
			Category:        "general",
			CooldownSeconds: 5,
			Handler: func(c *command.Context) error {
				start := d.Now()
				if err := c.Reply("Checking..."); err != nil {
					return err
				}
				return c.Replyf("🏓 Pong!\nLatency: %dms", d.Now().Sub(start).Milliseconds())
			},
		},
		{
			Name:        "test",
			Description: "Simple test command",
			Usage:       "!test",
			Category:    "general",
			Handler: func(c *command.Context) error {
				return c.Reply("Test passed! The bot is working fine.")
			},
		},
		{
			Name:        "info",
			Description: "Information about the bot",
			Usage:       "!info",
			Category:    "general",
			Handler: func(c *command.Context) error {
				return c.Replyf("🤖 Bot Info\n\nName: %s\nVersion: %s\nStatus: Online", d.BotName, buildinfo.String())
			},
		},
	}
}

func helpHandler(reg *command.Registry) command.Handler {
	return func(c *command.Context) error {
		if reg == nil {
			return errors.New("help: registry not wired")
		}
		if name := c.Arg(0); name != "" {
			desc, ok := reg.Lookup(name)
			if !ok || desc.Hidden {
				return c.Replyf("❓ Unknown command %q.", name)
			}
			return c.Reply(describe(desc))
		}
		var b strings.Builder
		b.WriteString("📚 Command List\n\n")
		for _, desc := range reg.List() {
			if desc.Hidden {
				continue
			}
			fmt.Fprintf(&b, "• !%s - %s\n", desc.Name, desc.Description)
		}
		b.WriteString("\nUse !help <command> for details.")
		return c.Reply(b.String())
	}
}

func describe(d *command.Descriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📖 *!%s*\n\n%s\n", d.Name, d.Description)
	if d.Usage != "" {
		fmt.Fprintf(&b, "Usage: %s\n", d.Usage)
	}
	if len(d.Aliases) > 0 {
		fmt.Fprintf(&b, "Aliases: !%s\n", strings.Join(d.Aliases, ", !"))
	}
	if d.Category != "" {
		fmt.Fprintf(&b, "Category: %s\n", d.Category)
	}
	fmt.Fprintf(&b, "Cooldown: %ds", d.CooldownSeconds)
	return b.String()
}

func utility(d Deps) []command.Descriptor {
	return []command.Descriptor{
		{
			Name:            "status",
			Description:     "Show bot system status",
			Usage:           "!status",
			Aliases:         []string{"stats", "sys"},
			Category:        "utility",
			CooldownSeconds: 10,
			Handler: func(c *command.Context) error {
				var m runtime.MemStats
				runtime.ReadMemStats(&m)
				up := d.Now().Sub(d.Started)
				host, _ := os.Hostname()
				return c.Replyf("🤖 Bot Status\n\n⏱️ Uptime: %s\n💾 Memory: %dMB / %dMB\n💻 Platform: %s/%s %s\n🔄 Go: %s",
					formatUptime(up),
					m.HeapAlloc/1024/1024, m.HeapSys/1024/1024,
					runtime.GOOS, runtime.GOARCH, host,
					runtime.Version(),
				)
			},
		},
		{
			Name:            "userinfo",
			Description:     "Show information about you",
			Usage:           "!userinfo",
			Aliases:         []string{"user", "ui"},
			Category:        "utility",
			CooldownSeconds: 5,
			Handler: func(c *command.Context) error {
				kind := "Private"
				if c.IsGroup {
					kind = "Group"
				}
				name := c.RequesterName
				if name == "" {
					name = "-"
				}
				return c.Replyf("👤 User Info\n\n🆔 ID: %s\n📛 Name: %s\n🏷️ Chat: %s", c.Requester, name, kind)
			},
		},
		{
			Name:            "time",
			Description:     "Show server time",
			Usage:           "!time",
			Aliases:         []string{"waktu", "t"},
			Category:        "utility",
			CooldownSeconds: 3,
			Handler: func(c *command.Context) error {
				now := d.Now()
				zone, _ := now.Zone()
				return c.Replyf("🕒 Server Time\n\n📅 Date: %s\n⏰ Time: %s\n🌐 Timezone: %s (%s)",
					now.Format("2006-01-02"), now.Format("15:04:05"), now.Location(), zone)
			},
		},
	}
}

func formatUptime(d time.Duration) string {
	s := int64(d.Seconds())
	return fmt.Sprintf("%dh %dm %ds", s/3600, (s%3600)/60, s%60)
}

func adminCommands(d Deps) []command.Descriptor {
	return []command.Descriptor{
		{
			Name:         "addadmin",
			Description:  "Grant bot admin rights",
			Usage:        "!addadmin <user id>",
			Category:     "owner",
			Requirements: command.Requirements{Owner: true},
			Handler: func(c *command.Context) error {
				id := c.Arg(0)
				if id == "" {
					return c.Reply("Usage: !addadmin <user id>")
				}
				err := d.Admins.AddAdmin(c.Context(), id, c.Requester)
				switch {
				case err == nil:
					return c.Replyf("✅ %s is now an admin.", id)
				case errors.Is(err, auth.ErrAlreadyAdmin):
					return c.Replyf("ℹ️ %s is already an admin.", id)
				}
				return err
			},
		},
		{
			Name:         "deladmin",
			Description:  "Revoke bot admin rights",
			Usage:        "!deladmin <user id>",
			Aliases:      []string{"removeadmin"},
			Category:     "owner",
			Requirements: command.Requirements{Owner: true},
			Handler: func(c *command.Context) error {
				id := c.Arg(0)
				if id == "" {
					return c.Reply("Usage: !deladmin <user id>")
				}
				err := d.Admins.RemoveAdmin(c.Context(), id, c.Requester)
				switch {
				case err == nil:
					return c.Replyf("✅ %s is no longer an admin.", id)
				case errors.Is(err, auth.ErrNotAdmin):
					return c.Replyf("ℹ️ %s is not an admin.", id)
				}
				return err
			},
		},
		{
			Name:         "admins",
			Description:  "List bot admins",
			Usage:        "!admins",
			Category:     "admin",
			Requirements: command.Requirements{Admin: true},
			Handler: func(c *command.Context) error {
				ids := d.Admins.Admins()
				if len(ids) == 0 {
					return c.Reply("No admins configured.")
				}
				return c.Reply("👮 Admins\n\n• " + strings.Join(ids, "\n• "))
			},
		},
	}
}

func reloadCommand(d Deps) command.Descriptor {
	return command.Descriptor{
		Name:         "reload",
		Description:  "Reload auto-replies and blacklist",
		Usage:        "!reload",
		Category:     "admin",
		Requirements: command.Requirements{Admin: true},
		Handler: func(c *command.Context) error {
			names := make([]string, 0, len(d.Reloaders))
			for name := range d.Reloaders {
				names = append(names, name)
			}
			sort.Strings(names)
			var b strings.Builder
			b.WriteString("🔄 Reloaded:\n")
			for _, name := range names {
				n, err := d.Reloaders[name].Reload(c.Context())
				if err != nil {
					return fmt.Errorf("reload %s: %w", name, err)
				}
				fmt.Fprintf(&b, "• %s: %d\n", name, n)
			}
			return c.Reply(strings.TrimRight(b.String(), "\n"))
		},
	}
}

func registerCommand(d Deps) command.Descriptor {
	return command.Descriptor{
		Name:            "register",
		Description:     "Create an account (private chat only)",
		Usage:           "!register <username> <password>",
		Category:        "account",
		CooldownSeconds: 10,
		Handler: func(c *command.Context) error {
			if c.IsGroup {
				return c.Reply("🔒 Please register in a private chat with the bot.")
			}
			if len(c.Args) != 2 {
				return c.Reply("Format: !register <username> <password>")
			}
			_, err := d.Registrar.Register(c.Context(), c.Args[0], c.Args[1], c.Requester)
			switch {
			case err == nil:
				return c.Reply("✅ Registration successful!\nUse your username and password to log in.")
			case errors.Is(err, registration.ErrUserExists):
				return c.Reply("Username is already registered!")
			case errors.Is(err, registration.ErrInvalid):
				return c.Reply("Username must be 1-32 characters without spaces and the password 6-72 characters.")
			}
			return err
		},
	}
}
