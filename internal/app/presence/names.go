package presence

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"pongrt/internal/app/user"
	"pongrt/internal/pkg/logx"
)

// NameStore caches display names by user id.
type NameStore interface {
	GetName(ctx context.Context, id int64) (name string, found bool, err error)
	// GetNames returns the cached names of ids in one round trip. Missing ids are absent from the map.
	GetNames(ctx context.Context, ids []int64) (map[int64]string, error)
	SetName(ctx context.Context, id int64, name string) error
}

// NameResolver looks a display name up in the user service.
type NameResolver interface {
	LookupName(ctx context.Context, identity user.Identity) (string, error)
}

// Names is the best-effort display name cache. Failures are logged and the name stays unknown.
type Names struct {
	store    NameStore
	resolver NameResolver
	logger   zerolog.Logger
}

// NewNames returns a cache over store. resolver may be nil, in which case only token names are cached.
func NewNames(store NameStore, resolver NameResolver) *Names {
	return &Names{
		store:    store,
		resolver: resolver,
		logger:   logx.Component("names"),
	}
}

// Hydrate makes sure a name for identity is cached and returns it, or "" when unknown.
// The token's name claim wins; otherwise the cache, then the user service, are consulted.
func (n *Names) Hydrate(ctx context.Context, identity user.Identity) string {
	if identity.HasName() {
		n.set(ctx, identity.ID, identity.Name())
		return identity.Name()
	}

	if name := n.Lookup(ctx, identity.ID); name != "" {
		return name
	}

	if n.resolver == nil {
		return ""
	}

	name, err := n.resolver.LookupName(ctx, identity)
	if err != nil {
		n.logger.Warn().Err(err).Int64("user_id", identity.ID).Msg("Name lookup failed")
		return ""
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	n.set(ctx, identity.ID, name)
	return name
}

// Lookup returns the cached name of id or "".
func (n *Names) Lookup(ctx context.Context, id int64) string {
	name, found, err := n.store.GetName(ctx, id)
	if err != nil {
		n.logger.Warn().Err(err).Int64("user_id", id).Msg("Name cache read failed")
		return ""
	}
	if !found {
		return ""
	}
	return name
}

// NameOf prefers the identity's own claim and falls back to the cache.
func (n *Names) NameOf(ctx context.Context, identity user.Identity) string {
	if identity.HasName() {
		return identity.Name()
	}
	return n.Lookup(ctx, identity.ID)
}

// NamesOf resolves names for many identities with at most one store read.
// Identities without a claim or cache entry map to "".
func (n *Names) NamesOf(ctx context.Context, identities []user.Identity) map[int64]string {
	out := make(map[int64]string, len(identities))
	var missing []int64
	for _, identity := range identities {
		if identity.HasName() {
			out[identity.ID] = identity.Name()
			continue
		}
		out[identity.ID] = ""
		missing = append(missing, identity.ID)
	}
	if len(missing) == 0 {
		return out
	}

	cached, err := n.store.GetNames(ctx, missing)
	if err != nil {
		n.logger.Warn().Err(err).Int("count", len(missing)).Msg("Name cache batch read failed")
		return out
	}
	for id, name := range cached {
		out[id] = name
	}
	return out
}

func (n *Names) set(ctx context.Context, id int64, name string) {
	if err := n.store.SetName(ctx, id, name); err != nil {
		n.logger.Warn().Err(err).Int64("user_id", id).Msg("Name cache write failed")
	}
}

// MemoryNameStore is a process-local NameStore.
type MemoryNameStore struct {
	mu    sync.RWMutex
	names map[int64]string
}

// NewMemoryNameStore returns an empty MemoryNameStore.
func NewMemoryNameStore() *MemoryNameStore {
	return &MemoryNameStore{names: make(map[int64]string)}
}

// GetName implements NameStore.
func (s *MemoryNameStore) GetName(_ context.Context, id int64) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	name, ok := s.names[id]
	return name, ok, nil
}

// GetNames implements NameStore.
func (s *MemoryNameStore) GetNames(_ context.Context, ids []int64) (map[int64]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if name, ok := s.names[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

// SetName implements NameStore.
func (s *MemoryNameStore) SetName(_ context.Context, id int64, name string) error {
	s.mu.Lock()
	s.names[id] = name
	s.mu.Unlock()
	return nil
}
