package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/orbitbot/core/store"
)

const (
	roleOwner = "owner"
	roleAdmin = "admin"
)

// Store implements store.Store over a sqlx pool.
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// New wraps an open pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Owner returns the single owner id or "" when none is set.
func (s *Store) Owner(ctx context.Context) (string, error) {
	var id string
	err := s.db.GetContext(ctx, &id,
		`SELECT user_id FROM bot_roles WHERE role = $1 ORDER BY user_id LIMIT 1`, roleOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("select owner: %w", err)
	}
	return id, nil
}

// Admins lists admin ids.
func (s *Store) Admins(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids,
		`SELECT user_id FROM bot_roles WHERE role = $1 ORDER BY user_id`, roleAdmin); err != nil {
		return nil, fmt.Errorf("select admins: %w", err)
	}
	return ids, nil
}

// SaveAdmins replaces the admin set in one transaction.
func (s *Store) SaveAdmins(ctx context.Context, ids []string) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM bot_roles WHERE role = $1`, roleAdmin); err != nil {
		return fmt.Errorf("clear admins: %w", err)
	}
	if len(ids) > 0 {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO bot_roles (user_id, role) SELECT DISTINCT unnest($1::text[]), $2`,
			pq.Array(ids), roleAdmin); err != nil {
			return fmt.Errorf("insert admins: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Blacklist lists blocked sender ids.
func (s *Store) Blacklist(ctx context.Context) ([]string, error) {
	ids := []string{}
	if err := s.db.SelectContext(ctx, &ids, `SELECT user_id FROM blacklist ORDER BY user_id`); err != nil {
		return nil, fmt.Errorf("select blacklist: %w", err)
	}
	return ids, nil
}

type autoReplyRow struct {
	Keywords pq.StringArray `db:"keywords"`
	Response string         `db:"response"`
}

// AutoReplies returns rules in insertion order.
func (s *Store) AutoReplies(ctx context.Context) ([]store.AutoReplyRule, error) {
	var rows []autoReplyRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT keywords, response FROM auto_replies ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select auto replies: %w", err)
	}
	rules := make([]store.AutoReplyRule, 0, len(rows))
	for _, r := range rows {
		rules = append(rules, store.AutoReplyRule{Keywords: []string(r.Keywords), Response: r.Response})
	}
	return rules, nil
}

// Registration loads a registration by username.
func (s *Store) Registration(ctx context.Context, username string) (store.Registration, error) {
	var reg store.Registration
	err := s.db.GetContext(ctx, &reg,
		`SELECT id, username, password_hash, phone, created_at FROM registrations WHERE username = $1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Registration{}, store.ErrNotFound
	}
	if err != nil {
		return store.Registration{}, fmt.Errorf("select registration: %w", err)
	}
	return reg, nil
}

// SaveRegistration inserts reg; a taken username yields store.ErrExists.
func (s *Store) SaveRegistration(ctx context.Context, reg store.Registration) error {
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO registrations (id, username, password_hash, phone, created_at)
		VALUES (:id, :username, :password_hash, :phone, :created_at)
		ON CONFLICT (username) DO NOTHING`, reg)
	if err != nil {
		return fmt.Errorf("save registration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save registration: %w", err)
	}
	if n == 0 {
		return store.ErrExists
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	return s.db.Close()
}
