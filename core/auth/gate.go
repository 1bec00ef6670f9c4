// Package auth decides whether a requester may run a command based on owner,
// admin and group-admin roles.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/orbitbot/core/command"
	"github.com/m3rciful/orbitbot/core/logger"
)

var (
	// ErrNotOwner is returned when a non-owner tries to change the admin set.
	ErrNotOwner = errors.New("auth: requester is not the owner")
	// ErrAlreadyAdmin is returned when adding an id that is already an admin.
	ErrAlreadyAdmin = errors.New("auth: already an admin")
	// ErrNotAdmin is returned when removing an id that is not an admin.
	ErrNotAdmin = errors.New("auth: not an admin")
)

// RoleStore persists the owner and admin set.
type RoleStore interface {
	Owner(ctx context.Context) (string, error)
	Admins(ctx context.Context) ([]string, error)
	SaveAdmins(ctx context.Context, ids []string) error
}

// GroupAdminLookup asks the transport whether id administers a group conversation.
type GroupAdminLookup interface {
	IsGroupAdmin(ctx context.Context, conversationID, userID string) (bool, error)
}

// Gate holds the role sets and evaluates command requirements.
type Gate struct {
	mu     sync.RWMutex
	owner  string
	admins map[string]struct{}

	store  RoleStore
	groups GroupAdminLookup
	log    *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithOwner pins the owner id; it takes precedence over the stored owner.
func WithOwner(id string) Option {
	return func(g *Gate) { g.owner = strings.TrimSpace(id) }
}

// WithGroupLookup sets the transport used for group-admin checks.
func WithGroupLookup(l GroupAdminLookup) Option {
	return func(g *Gate) { g.groups = l }
}

// NewGate creates a gate backed by store. Call Load to read persisted roles.
func NewGate(store RoleStore, opts ...Option) *Gate {
	g := &Gate{
		admins: make(map[string]struct{}),
		store:  store,
		log:    logger.Component("auth"),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// SetGroupLookup binds the transport once it is available.
func (g *Gate) SetGroupLookup(l GroupAdminLookup) {
	g.mu.Lock()
	g.groups = l
	g.mu.Unlock()
}

// Load reads owner and admins from the store. A failed read leaves the
// corresponding set empty, which grants no privileges.
func (g *Gate) Load(ctx context.Context) {
	if g.store == nil {
		return
	}
	owner, err := g.store.Owner(ctx)
	if err != nil {
		logger.LogEvent(ctx, g.log, slog.LevelWarn, "roles.load",
			slog.String("status", "fail"),
			slog.String("what", "owner"),
			slog.String("err", err.Error()),
		)
		owner = ""
	}
	ids, err := g.store.Admins(ctx)
	if err != nil {
		logger.LogEvent(ctx, g.log, slog.LevelWarn, "roles.load",
			slog.String("status", "fail"),
			slog.String("what", "admins"),
			slog.String("err", err.Error()),
		)
		ids = nil
	}

	admins := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			admins[id] = struct{}{}
		}
	}

	g.mu.Lock()
	if g.owner == "" {
		g.owner = strings.TrimSpace(owner)
	}
	g.admins = admins
	hasOwner := g.owner != ""
	g.mu.Unlock()

	logger.LogEvent(ctx, g.log, slog.LevelInfo, "roles.load",
		slog.String("status", "ok"),
		slog.Bool("owner_set", hasOwner),
		slog.Int("count", len(admins)),
	)
}

// IsOwner reports an exact match with the owner id. An unset owner matches nobody.
func (g *Gate) IsOwner(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.isOwnerLocked(id)
}

func (g *Gate) isOwnerLocked(id string) bool {
	return g.owner != "" && id == g.owner
}

// IsAdmin reports admin membership; the owner is always an admin.
func (g *Gate) IsAdmin(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.isOwnerLocked(id) {
		return true
	}
	_, ok := g.admins[id]
	return ok
}

// IsGroupAdmin asks the transport. Any lookup failure counts as false.
func (g *Gate) IsGroupAdmin(ctx context.Context, conversationID, id string) bool {
	g.mu.RLock()
	lookup := g.groups
	g.mu.RUnlock()
	if lookup == nil {
		return false
	}
	ok, err := lookup.IsGroupAdmin(ctx, conversationID, id)
	if err != nil {
		logger.LogEvent(ctx, g.log, slog.LevelWarn, "group_admin.lookup",
			slog.String("status", "fail"),
			slog.String("conversation_id", conversationID),
			slog.String("sender_id", id),
			slog.String("err", err.Error()),
		)
		return false
	}
	return ok
}

// Authorize evaluates req for requester. The owner satisfies every requirement.
// Checks run cheapest first: owner, admin, then the group-admin lookup, which
// only applies inside group conversations.
func (g *Gate) Authorize(ctx context.Context, requester, conversationID string, isGroup bool, req command.Requirements) bool {
	if !req.Any() {
		return true
	}
	if g.IsOwner(requester) {
		return true
	}
	if req.Owner {
		return false
	}
	if req.Admin && !g.IsAdmin(requester) {
		return false
	}
	if req.GroupAdmin && isGroup && !g.IsGroupAdmin(ctx, conversationID, requester) {
		return false
	}
	return true
}

// AddAdmin grants admin to id. Only the owner may call it. The updated set is
// persisted before returning; on a store failure the change is undone.
func (g *Gate) AddAdmin(ctx context.Context, id, requester string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("auth: empty admin id")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.isOwnerLocked(requester) {
		return ErrNotOwner
	}
	if _, ok := g.admins[id]; ok {
		return ErrAlreadyAdmin
	}
	g.admins[id] = struct{}{}
	if err := g.persistLocked(ctx); err != nil {
		delete(g.admins, id)
		return err
	}
	logger.LogEvent(ctx, g.log, slog.LevelInfo, "admin.add",
		slog.String("status", "ok"),
		slog.String("target", id),
		slog.String("sender_id", requester),
	)
	return nil
}

// RemoveAdmin revokes admin from id under the same rules as AddAdmin.
func (g *Gate) RemoveAdmin(ctx context.Context, id, requester string) error {
	id = strings.TrimSpace(id)
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.isOwnerLocked(requester) {
		return ErrNotOwner
	}
	if _, ok := g.admins[id]; !ok {
		return ErrNotAdmin
	}
	delete(g.admins, id)
	if err := g.persistLocked(ctx); err != nil {
		g.admins[id] = struct{}{}
		return err
	}
	logger.LogEvent(ctx, g.log, slog.LevelInfo, "admin.remove",
		slog.String("status", "ok"),
		slog.String("target", id),
		slog.String("sender_id", requester),
	)
	return nil
}

func (g *Gate) persistLocked(ctx context.Context) error {
	if g.store == nil {
		return nil
	}
	if err := g.store.SaveAdmins(ctx, sortedKeys(g.admins)); err != nil {
		logger.LogEvent(ctx, g.log, slog.LevelError, "admin.persist",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("auth: save admins: %w", err)
	}
	return nil
}

// Admins returns a sorted snapshot of the admin set, owner excluded.
func (g *Gate) Admins() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.admins)
}

// Owner returns the owner id or "".
func (g *Gate) Owner() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.owner
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
