package telegram

import (
	"context"
	"log/slog"
	"regexp"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/command"
	"github.com/m3rciful/orbitbot/core/logger"
)

// Bot API command names: 1-32 chars of lowercase letters, digits and underscores.
var menuName = regexp.MustCompile(`^[a-z0-9_]{1,32}$`)

const maxMenuDescription = 256

// CommandSetter is the subset of *tele.Bot that publishes the command menu.
type CommandSetter interface {
	SetCommands(opts ...interface{}) error
}

// MenuCommands lists the descriptors shown in the client command menu.
// Hidden and privileged commands are left out, as are names the Bot API rejects.
func MenuCommands(reg *command.Registry) []tele.Command {
	var list []tele.Command
	for _, d := range reg.List() {
		if d.Hidden || d.Requirements.Any() || !menuName.MatchString(d.Name) {
			continue
		}
		desc := d.Description
		if desc == "" {
			desc = d.Name
		}
		list = append(list, tele.Command{Text: d.Name, Description: logger.SanitizeLimit(desc, maxMenuDescription)})
	}
	return list
}

// SetupCommands publishes the command menu. Failure is logged and ignored.
func SetupCommands(bot CommandSetter, reg *command.Registry) {
	list := MenuCommands(reg)
	if len(list) == 0 {
		return
	}
	if err := bot.SetCommands(list); err != nil {
		logger.TWire.LogAttrs(context.Background(), slog.LevelError, "register.commands.set_failed",
			slog.String("event", "register.commands.set_failed"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "register.commands.set",
		slog.String("event", "register.commands.set"),
		slog.Int("count", len(list)),
	)
}
