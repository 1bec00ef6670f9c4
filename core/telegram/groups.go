package telegram

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"
)

const defaultAdminsTTL = time.Minute

// AdminsFetcher is the subset of *tele.Bot used to read chat administrators.
type AdminsFetcher interface {
	AdminsOf(chat *tele.Chat) ([]tele.ChatMember, error)
}

// GroupAdmins answers group-admin questions from the chat administrator list,
// cached per chat for a short TTL.
type GroupAdmins struct {
	fetch AdminsFetcher
	ttl   time.Duration
	now   func() time.Time

	mu    sync.Mutex
	cache map[int64]adminSnapshot
}

type adminSnapshot struct {
	ids     map[int64]struct{}
	fetched time.Time
}

// NewGroupAdmins wraps fetch. A non-positive ttl uses one minute.
func NewGroupAdmins(fetch AdminsFetcher, ttl time.Duration) *GroupAdmins {
	if ttl <= 0 {
		ttl = defaultAdminsTTL
	}
	return &GroupAdmins{fetch: fetch, ttl: ttl, now: time.Now, cache: make(map[int64]adminSnapshot)}
}

// IsGroupAdmin implements auth.GroupAdminLookup.
func (g *GroupAdmins) IsGroupAdmin(ctx context.Context, conversationID, userID string) (bool, error) {
	chatID, err := strconv.ParseInt(conversationID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("telegram: invalid chat id %q: %w", conversationID, err)
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return false, fmt.Errorf("telegram: invalid user id %q: %w", userID, err)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	now := g.now()
	g.mu.Lock()
	snap, ok := g.cache[chatID]
	g.mu.Unlock()
	if !ok || now.Sub(snap.fetched) > g.ttl {
		members, err := g.fetch.AdminsOf(&tele.Chat{ID: chatID})
		if err != nil {
			return false, fmt.Errorf("telegram: admins of %d: %w", chatID, err)
		}
		snap = adminSnapshot{ids: make(map[int64]struct{}, len(members)), fetched: now}
		for _, m := range members {
			if m.User != nil && (m.Role == tele.Administrator || m.Role == tele.Creator) {
				snap.ids[m.User.ID] = struct{}{}
			}
		}
		g.mu.Lock()
		g.cache[chatID] = snap
		g.mu.Unlock()
	}
	_, admin := snap.ids[uid]
	return admin, nil
}
