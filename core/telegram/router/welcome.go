package router

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/orbitbot/core/command"
	"github.com/m3rciful/orbitbot/core/logger"
	tghelpers "github.com/m3rciful/orbitbot/core/telegram/helpers"
)

// DefaultWelcome greets a member who joined a group. %s is the mention.
const DefaultWelcome = "Welcome %s! 🎉"

// Welcome greets users who join a group the bot is in.
type Welcome struct {
	Sender command.Sender
	// Template must contain exactly one %s; otherwise DefaultWelcome is used.
	Template string
	Self     *tele.User
}

// Text renders the greeting for u.
func (w *Welcome) Text(u *tele.User) string {
	tmpl := w.Template
	if strings.Count(tmpl, "%s") != 1 || strings.Count(tmpl, "%") != 1 {
		tmpl = DefaultWelcome
	}
	return fmt.Sprintf(tmpl, mention(u))
}

// Handle is the telebot handler for user-joined service messages.
func (w *Welcome) Handle(c tele.Context) error {
	start := time.Now()
	m := c.Message()
	if m == nil || m.Chat == nil {
		return nil
	}
	joined := m.UsersJoined
	if m.UserJoined != nil {
		joined = []tele.User{*m.UserJoined}
	}

	ctx := tghelpers.WithHandler(c, "welcome")
	chatID := strconv.FormatInt(m.Chat.ID, 10)
	greeted := 0
	for i := range joined {
		u := &joined[i]
		if u.IsBot || (w.Self != nil && u.ID == w.Self.ID) {
			continue
		}
		if err := w.Sender.SendText(ctx, chatID, w.Text(u)); err != nil {
			logger.Warn(ctx, "tg", "welcome.failed",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			continue
		}
		greeted++
	}
	logHandlerSummary(c, "welcome", start, "ok", slog.Int("count", greeted))
	return nil
}

func mention(u *tele.User) string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if name := strings.TrimSpace(u.FirstName + " " + u.LastName); name != "" {
		return name
	}
	return strconv.FormatInt(u.ID, 10)
}
