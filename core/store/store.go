// Package store defines the persistence contract used by the permission gate,
// the classifier and the registration endpoint.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrExists is returned when a create-only write hits an existing record.
	ErrExists = errors.New("store: already exists")
)

// AutoReplyRule maps trigger keywords to a canned response.
type AutoReplyRule struct {
	Keywords []string `json:"keywords"`
	Response string   `json:"response"`
}

// Registration is an account created through the HTTP registration endpoint.
type Registration struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"password_hash" db:"password_hash"`
	Phone        string    `json:"phone" db:"phone"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Store is the key-value persistence collaborator.
type Store interface {
	Owner(ctx context.Context) (string, error)
	Admins(ctx context.Context) ([]string, error)
	SaveAdmins(ctx context.Context, ids []string) error
	Blacklist(ctx context.Context) ([]string, error)
	AutoReplies(ctx context.Context) ([]AutoReplyRule, error)

	Registration(ctx context.Context, username string) (Registration, error)
	// SaveRegistration never replaces an existing username; it returns ErrExists instead.
	SaveRegistration(ctx context.Context, reg Registration) error

	Close() error
}
