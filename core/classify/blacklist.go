package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/m3rciful/orbitbot/core/logger"
)

// BlacklistSource loads blocked sender ids.
type BlacklistSource interface {
	Blacklist(ctx context.Context) ([]string, error)
}

// Blacklist is an in-memory snapshot of blocked senders.
type Blacklist struct {
	mu  sync.RWMutex
	ids map[string]struct{}
	src BlacklistSource
}

// NewBlacklist creates an empty blacklist reading from src.
func NewBlacklist(src BlacklistSource) *Blacklist {
	return &Blacklist{ids: make(map[string]struct{}), src: src}
}

// Reload re-reads the store. A failed read keeps the previous snapshot.
func (b *Blacklist) Reload(ctx context.Context) (int, error) {
	if b.src == nil {
		return 0, nil
	}
	list, err := b.src.Blacklist(ctx)
	if err != nil {
		logger.Warn(ctx, "classify", "blacklist.load",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return 0, fmt.Errorf("classify: load blacklist: %w", err)
	}
	ids := make(map[string]struct{}, len(list))
	for _, id := range list {
		if id = strings.TrimSpace(id); id != "" {
			ids[id] = struct{}{}
		}
	}
	b.mu.Lock()
	b.ids = ids
	b.mu.Unlock()
	logger.Info(ctx, "classify", "blacklist.load",
		slog.String("status", "ok"),
		slog.Int("count", len(ids)),
	)
	return len(ids), nil
}

// Contains reports whether id is blocked.
func (b *Blacklist) Contains(id string) bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.ids[id]
	return ok
}
