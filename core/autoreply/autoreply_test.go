package autoreply

import (
	"context"
	"errors"
	"testing"

	"github.com/m3rciful/orbitbot/core/store"
)

type ruleFunc func(context.Context) ([]store.AutoReplyRule, error)

func (f ruleFunc) AutoReplies(ctx context.Context) ([]store.AutoReplyRule, error) { return f(ctx) }

func TestMatchWholeWordCaseInsensitive(t *testing.T) {
	m := New(nil)
	m.Set([]store.AutoReplyRule{
		{Keywords: []string{"hello", "hi"}, Response: "Hello there!"},
		{Keywords: []string{"golang"}, Response: "See the docs."},
		{Keywords: []string{"hello"}, Response: "never reached"},
	})

	cases := map[string]string{
		"HELLO bot":          "Hello there!",
		"oh, hi!":            "Hello there!",
		"I use GoLang daily": "See the docs.",
		"golangci":           "",
		"shiny things":       "",
		"othello":            "",
	}
	for text, want := range cases {
		got, ok := m.Match(text)
		if ok != (want != "") || got != want {
			t.Fatalf("Match(%q) = %q, %v", text, got, ok)
		}
	}
}

func TestSetSkipsEmptyRules(t *testing.T) {
	m := New(nil)
	n := m.Set([]store.AutoReplyRule{
		{Keywords: []string{" "}, Response: "x"},
		{Keywords: []string{"a"}, Response: ""},
		{Keywords: []string{"ok"}, Response: "fine"},
	})
	if n != 1 || m.Len() != 1 {
		t.Fatalf("usable rules = %d", n)
	}
}

func TestReloadKeepsRulesOnError(t *testing.T) {
	fail := false
	m := New(ruleFunc(func(context.Context) ([]store.AutoReplyRule, error) {
		if fail {
			return nil, errors.New("io")
		}
		return []store.AutoReplyRule{{Keywords: []string{"hi"}, Response: "yo"}}, nil
	}))
	ctx := context.Background()
	if n, err := m.Reload(ctx); err != nil || n != 1 {
		t.Fatalf("Reload = %d, %v", n, err)
	}
	fail = true
	if _, err := m.Reload(ctx); err == nil {
		t.Fatal("expected error")
	}
	if _, ok := m.Match("hi"); !ok {
		t.Fatal("rules dropped after failed reload")
	}
}

func TestKeywordsArePatterns(t *testing.T) {
	m := New(nil)
	m.Set([]store.AutoReplyRule{
		{Keywords: []string{"good (morning|night)"}, Response: "Same to you."},
		{Keywords: []string{"f(x"}, Response: "Unbalanced but literal."},
	})

	cases := map[string]string{
		"good morning everyone": "Same to you.",
		"Good Night!":           "Same to you.",
		"good afternoon":        "",
		"try f(x now":           "Unbalanced but literal.",
		"try fx now":            "",
	}
	for text, want := range cases {
		got, ok := m.Match(text)
		if ok != (want != "") || got != want {
			t.Fatalf("Match(%q) = %q, %v", text, got, ok)
		}
	}
}
