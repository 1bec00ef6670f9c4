// Package registration creates accounts with bcrypt-hashed passwords.
package registration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/m3rciful/orbitbot/core/logger"
	"github.com/m3rciful/orbitbot/core/store"
)

var (
	// ErrUserExists is returned when the username is taken.
	ErrUserExists = errors.New("registration: username already registered")
	// ErrInvalid is returned for malformed input.
	ErrInvalid = errors.New("registration: invalid input")
)

const (
	minPasswordLen = 6
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordLen = 72
	maxUsernameLen = 32
)

// Store persists registrations.
type Store interface {
	Registration(ctx context.Context, username string) (store.Registration, error)
	SaveRegistration(ctx context.Context, reg store.Registration) error
}

// Service registers users.
type Service struct {
	// mu serialises the existence check with the save.
	mu    sync.Mutex
	store Store
	cost  int
	now   func() time.Time
}

// New creates a service with the default bcrypt cost.
func New(s Store) *Service {
	return &Service{store: s, cost: bcrypt.DefaultCost, now: time.Now}
}

// Register validates input, rejects taken usernames and stores the account.
func (s *Service) Register(ctx context.Context, username, password, phone string) (store.Registration, error) {
	username = strings.TrimSpace(username)
	if err := validate(username, password); err != nil {
		return store.Registration{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.store.Registration(ctx, username)
	switch {
	case err == nil:
		return store.Registration{}, ErrUserExists
	case !errors.Is(err, store.ErrNotFound):
		return store.Registration{}, fmt.Errorf("registration: lookup: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return store.Registration{}, fmt.Errorf("registration: hash: %w", err)
	}
	reg := store.Registration{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Phone:        strings.TrimSpace(phone),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.SaveRegistration(ctx, reg); err != nil {
		if errors.Is(err, store.ErrExists) {
			return store.Registration{}, ErrUserExists
		}
		return store.Registration{}, fmt.Errorf("registration: save: %w", err)
	}
	logger.Info(ctx, "registration", "user.registered",
		slog.String("status", "ok"),
		slog.String("user", username),
	)
	return reg, nil
}

// Verify reports whether password matches the stored hash for username.
func (s *Service) Verify(ctx context.Context, username, password string) (bool, error) {
	reg, err := s.store.Registration(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return bcrypt.CompareHashAndPassword([]byte(reg.PasswordHash), []byte(password)) == nil, nil
}

func validate(username, password string) error {
	if username == "" || utf8.RuneCountInString(username) > maxUsernameLen {
		return fmt.Errorf("%w: username must be 1-%d characters", ErrInvalid, maxUsernameLen)
	}
	if strings.ContainsAny(username, " \t/\\") {
		return fmt.Errorf("%w: username must not contain spaces or slashes", ErrInvalid)
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d-%d bytes", ErrInvalid, minPasswordLen, maxPasswordLen)
	}
	return nil
}
