// Package jsonstore keeps bot roles, blacklist and auto-reply rules in flat JSON files.
package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/m3rciful/orbitbot/core/logger"
	"github.com/m3rciful/orbitbot/core/store"
)

const (
	ownerFile     = "owner.json"
	adminsFile    = "admins.json"
	blacklistFile = "blacklist.json"
	repliesFile   = "auto_replies.json"
	sessionsDir   = "sessions"
)

type ownerDoc struct {
	Owner string `json:"owner"`
}

type adminsDoc struct {
	Admins []string `json:"admins"`
}

type blacklistDoc struct {
	Users []string `json:"users"`
}

// Store reads and writes JSON documents under a single directory.
// Missing files read as empty documents.
type Store struct {
	dir string
	mu  sync.Mutex
}

var _ store.Store = (*Store)(nil)

// Open prepares dir (and its sessions subdirectory) for use.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("jsonstore: empty directory")
	}
	if err := os.MkdirAll(filepath.Join(dir, sessionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("jsonstore: create dir: %w", err)
	}
	logger.DB.Info("store opened",
		slog.String("event", "store.open"),
		slog.String("storage", "json"),
		slog.String("path", dir),
	)
	return &Store{dir: dir}, nil
}

// Owner returns the configured owner id or "" when unset.
func (s *Store) Owner(_ context.Context) (string, error) {
	var doc ownerDoc
	if err := s.read(ownerFile, &doc); err != nil {
		return "", err
	}
	return strings.TrimSpace(doc.Owner), nil
}

// Admins returns the persisted admin ids.
func (s *Store) Admins(_ context.Context) ([]string, error) {
	var doc adminsDoc
	if err := s.read(adminsFile, &doc); err != nil {
		return nil, err
	}
	return doc.Admins, nil
}

// SaveAdmins replaces the admin list on disk.
func (s *Store) SaveAdmins(_ context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	return s.write(adminsFile, adminsDoc{Admins: ids})
}

// Blacklist returns blocked sender ids.
func (s *Store) Blacklist(_ context.Context) ([]string, error) {
	var doc blacklistDoc
	if err := s.read(blacklistFile, &doc); err != nil {
		return nil, err
	}
	return doc.Users, nil
}

// AutoReplies returns the configured keyword rules.
func (s *Store) AutoReplies(_ context.Context) ([]store.AutoReplyRule, error) {
	var rules []store.AutoReplyRule
	if err := s.read(repliesFile, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// Registration loads a registration by username.
func (s *Store) Registration(_ context.Context, username string) (store.Registration, error) {
	name, err := sessionFile(username)
	if err != nil {
		return store.Registration{}, err
	}
	var reg store.Registration
	found, err := s.readFound(name, &reg)
	if err != nil {
		return store.Registration{}, err
	}
	if !found {
		return store.Registration{}, store.ErrNotFound
	}
	return reg, nil
}

// SaveRegistration creates the session file for reg. An existing file is
// left untouched and store.ErrExists is returned.
func (s *Store) SaveRegistration(_ context.Context, reg store.Registration) error {
	name, err := sessionFile(reg.Username)
	if err != nil {
		return err
	}
	return s.create(name, reg)
}

// Close is a no-op; every write is flushed before returning.
func (s *Store) Close() error { return nil }

func sessionFile(username string) (string, error) {
	u := strings.TrimSpace(username)
	if u == "" || strings.ContainsAny(u, `/\`) || u == "." || u == ".." {
		return "", fmt.Errorf("jsonstore: invalid username %q", username)
	}
	return filepath.Join(sessionsDir, u+".json"), nil
}

func (s *Store) read(name string, v any) error {
	_, err := s.readFound(name, v)
	return err
}

func (s *Store) readFound(name string, v any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("jsonstore: read %s: %w", name, err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return true, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("jsonstore: decode %s: %w", name, err)
	}
	return true, nil
}

// create writes a new file with O_EXCL so concurrent creators cannot both win.
func (s *Store) create(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonstore: encode %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.dir, name)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return store.ErrExists
	}
	if err != nil {
		return fmt.Errorf("jsonstore: create %s: %w", name, err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("jsonstore: create %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("jsonstore: create %s: %w", name, err)
	}
	return nil
}

// write replaces the file through a temp file and rename.
func (s *Store) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("jsonstore: encode %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("jsonstore: write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("jsonstore: write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("jsonstore: write %s: %w", name, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("jsonstore: write %s: %w", name, err)
	}
	return nil
}
