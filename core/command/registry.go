package command

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/orbitbot/core/logger"
)

// Registry maps normalized command names and aliases to descriptors.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Descriptor)}
}

// Normalize lowercases key and strips one leading "!" or "/".
func Normalize(key string) string {
	key = strings.TrimSpace(key)
	if key != "" && (key[0] == '!' || key[0] == '/') {
		key = key[1:]
	}
	return strings.ToLower(key)
}

// Register stores d under its name and every alias. Existing keys are overwritten.
func (r *Registry) Register(d Descriptor) {
	name := Normalize(d.Name)
	if name == "" {
		return
	}
	d.Name = name
	aliases := make([]string, 0, len(d.Aliases))
	for _, a := range d.Aliases {
		if a = Normalize(a); a != "" && a != name {
			aliases = append(aliases, a)
		}
	}
	d.Aliases = aliases
	if d.CooldownSeconds < 0 {
		d.CooldownSeconds = 0
	}

	ptr := &d
	r.mu.Lock()
	if old, ok := r.entries[name]; ok && old.Name == name {
		// a re-registered name replaces the old descriptor along with its aliases
		for k, v := range r.entries {
			if v == old {
				delete(r.entries, k)
			}
		}
	}
	r.entries[name] = ptr
	for _, a := range aliases {
		r.entries[a] = ptr
	}
	r.mu.Unlock()

	logger.TWire.Debug("command registered",
		slog.String("event", "register.command"),
		slog.String("command", name),
		slog.Int("count", len(aliases)),
	)
}

// Lookup resolves a name or alias, case-insensitively.
func (r *Registry) Lookup(key string) (*Descriptor, bool) {
	k := Normalize(key)
	if k == "" {
		return nil, false
	}
	r.mu.RLock()
	d, ok := r.entries[k]
	r.mu.RUnlock()
	return d, ok
}

// Load registers every descriptor of every source. Descriptors without a name
// are skipped with a warning.
func (r *Registry) Load(sources ...Source) (loaded, skipped int) {
	for i, src := range sources {
		if src == nil {
			skipped++
			continue
		}
		for _, d := range src.Descriptors() {
			if Normalize(d.Name) == "" {
				skipped++
				logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "register.command.skip",
					slog.String("event", "register.command.skip"),
					slog.Int("source", i),
					slog.String("reason", "missing_name"),
				)
				continue
			}
			r.Register(d)
			loaded++
		}
	}
	logger.TWire.Info("commands loaded",
		slog.String("event", "register.commands"),
		slog.Int("count", loaded),
		slog.Int("skipped", skipped),
	)
	return loaded, skipped
}

// List returns the distinct descriptors sorted by name.
func (r *Registry) List() []*Descriptor {
	r.mu.RLock()
	seen := make(map[*Descriptor]struct{}, len(r.entries))
	out := make([]*Descriptor, 0, len(r.entries))
	for _, d := range r.entries {
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
