// Package autoreply answers plain conversation using keyword rules.
package autoreply

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/m3rciful/orbitbot/core/logger"
	"github.com/m3rciful/orbitbot/core/store"
)

// RuleSource loads the rule list.
type RuleSource interface {
	AutoReplies(ctx context.Context) ([]store.AutoReplyRule, error)
}

type compiled struct {
	patterns []*regexp.Regexp
	response string
}

// Matcher holds compiled rules. Safe for concurrent use.
type Matcher struct {
	mu    sync.RWMutex
	rules []compiled
	src   RuleSource
}

// New creates a matcher reading from src. Call Reload to populate it.
func New(src RuleSource) *Matcher {
	return &Matcher{src: src}
}

// Reload re-reads the rules. On failure the previous rules stay active.
func (m *Matcher) Reload(ctx context.Context) (int, error) {
	if m.src == nil {
		return 0, nil
	}
	rules, err := m.src.AutoReplies(ctx)
	if err != nil {
		logger.Warn(ctx, "autoreply", "rules.load",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return 0, fmt.Errorf("autoreply: load rules: %w", err)
	}
	n := m.Set(rules)
	logger.Info(ctx, "autoreply", "rules.load",
		slog.String("status", "ok"),
		slog.Int("count", n),
	)
	return n, nil
}

// Set replaces the active rules and returns how many are usable.
func (m *Matcher) Set(rules []store.AutoReplyRule) int {
	out := make([]compiled, 0, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r.Response) == "" {
			continue
		}
		c := compiled{response: r.Response}
		for _, kw := range r.Keywords {
			if kw = strings.TrimSpace(kw); kw == "" {
				continue
			}
			c.patterns = append(c.patterns, compileKeyword(kw))
		}
		if len(c.patterns) > 0 {
			out = append(out, c)
		}
	}
	m.mu.Lock()
	m.rules = out
	m.mu.Unlock()
	return len(out)
}

// compileKeyword treats kw as a pattern bounded by word breaks. Keywords that
// do not compile are matched literally.
func compileKeyword(kw string) *regexp.Regexp {
	re, err := regexp.Compile(`(?i)\b(?:` + kw + `)\b`)
	if err == nil {
		return re
	}
	logger.Warn(context.Background(), "autoreply", "rules.keyword",
		slog.String("status", "literal"),
		slog.String("keyword", kw),
		slog.String("err", err.Error()),
	)
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
}

// Match returns the response of the first rule with a keyword pattern found
// in text on word boundaries, ignoring case.
func (m *Matcher) Match(text string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		for _, p := range r.patterns {
			if p.MatchString(text) {
				return r.response, true
			}
		}
	}
	return "", false
}

// Len reports the number of active rules.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rules)
}
