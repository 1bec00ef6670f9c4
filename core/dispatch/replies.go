package dispatch

import (
	"fmt"
	"strings"

	"github.com/m3rciful/orbitbot/core/config"
)

// Replies holds the canned user-facing notices.
type Replies struct {
	Unrecognized string
	Denied       string
	// Cooldown takes one %d verb for the remaining seconds.
	Cooldown    string
	Failure     string
	Blacklisted string
}

// DefaultReplies returns the built-in notices.
func DefaultReplies() Replies {
	return Replies{
		Unrecognized: "❌ Unrecognized command.\nType !help to see the list of commands.",
		Denied:       "❌ Access denied: you are not allowed to use this command.",
		Cooldown:     "⏳ Please wait %d seconds before using this command again.",
		Failure:      "❌ Something went wrong while running the command.",
		Blacklisted:  "⛔ You are blocked from using this bot.",
	}
}

// RepliesFromConfig overlays non-empty configured notices on the defaults.
func RepliesFromConfig(cfg config.RepliesConfig) Replies {
	r := DefaultReplies()
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&r.Unrecognized, cfg.Unrecognized)
	set(&r.Denied, cfg.Denied)
	set(&r.Failure, cfg.Failure)
	set(&r.Blacklisted, cfg.Blacklisted)
	if v := strings.TrimSpace(cfg.Cooldown); v != "" && strings.Count(v, "%d") == 1 {
		r.Cooldown = v
	}
	return r
}

// CooldownText renders the cooldown notice.
func (r Replies) CooldownText(seconds int) string {
	return fmt.Sprintf(r.Cooldown, seconds)
}
