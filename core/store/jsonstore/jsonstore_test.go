package jsonstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/m3rciful/orbitbot/core/store"
)

func TestMissingFilesReadEmpty(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	owner, err := s.Owner(ctx)
	if err != nil || owner != "" {
		t.Fatalf("Owner() = %q, %v", owner, err)
	}
	admins, err := s.Admins(ctx)
	if err != nil || len(admins) != 0 {
		t.Fatalf("Admins() = %v, %v", admins, err)
	}
	rules, err := s.AutoReplies(ctx)
	if err != nil || len(rules) != 0 {
		t.Fatalf("AutoReplies() = %v, %v", rules, err)
	}
}

func TestReadsExistingDocuments(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		ownerFile:     `{"owner":"628111"}`,
		adminsFile:    `{"admins":["a1","a2"]}`,
		blacklistFile: `{"users":["spam"]}`,
		repliesFile:   `[{"keywords":["hello","hi"],"response":"Hello there!"}]`,
	}
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	if owner, _ := s.Owner(ctx); owner != "628111" {
		t.Fatalf("owner = %q", owner)
	}
	if admins, _ := s.Admins(ctx); len(admins) != 2 || admins[1] != "a2" {
		t.Fatalf("admins = %v", admins)
	}
	if bl, _ := s.Blacklist(ctx); len(bl) != 1 || bl[0] != "spam" {
		t.Fatalf("blacklist = %v", bl)
	}
	rules, _ := s.AutoReplies(ctx)
	if len(rules) != 1 || rules[0].Response != "Hello there!" || len(rules[0].Keywords) != 2 {
		t.Fatalf("rules = %+v", rules)
	}
}

func TestSaveAdminsRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	if err := s.SaveAdmins(ctx, []string{"x", "y"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Admins(ctx)
	if err != nil || len(got) != 2 || got[0] != "x" {
		t.Fatalf("Admins() = %v, %v", got, err)
	}
}

func TestCorruptFileReportsError(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, adminsFile), []byte("{nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := s.Admins(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRegistrations(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	if _, err := s.Registration(ctx, "alice"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	reg := store.Registration{ID: "1", Username: "alice", PasswordHash: "h", Phone: "+1", CreatedAt: time.Now().UTC()}
	if err := s.SaveRegistration(ctx, reg); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Registration(ctx, "alice")
	if err != nil || got.Phone != "+1" {
		t.Fatalf("Registration() = %+v, %v", got, err)
	}
	dup := store.Registration{ID: "2", Username: "alice", PasswordHash: "other", CreatedAt: time.Now().UTC()}
	if err := s.SaveRegistration(ctx, dup); !errors.Is(err, store.ErrExists) {
		t.Fatalf("duplicate save: %v", err)
	}
	if got, _ := s.Registration(ctx, "alice"); got.PasswordHash != "h" || got.ID != "1" {
		t.Fatalf("existing registration overwritten: %+v", got)
	}
	if err := s.SaveRegistration(ctx, store.Registration{Username: "../evil"}); err == nil {
		t.Fatal("expected path traversal to be rejected")
	}
}
