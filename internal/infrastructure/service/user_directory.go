package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/gmz-labs/voicexp/internal/infrastructure/external/discord"
)

// UserFetcher looks a user up by ID.
type UserFetcher interface {
	GetUser(ctx context.Context, userID string) (*discord.User, error)
}

// NameStore caches display names.
type NameStore interface {
	GetNames(ctx context.Context, memberIDs []string) (map[string]string, error)
	SetNames(ctx context.Context, names map[string]string) error
}

// UserDirectory resolves member display names: from the cache first, then
// from Discord in parallel. A member that cannot be resolved is rendered as
// a mention, which Discord displays as the name anyway.
type UserDirectory struct {
	users  UserFetcher
	cache  NameStore
	logger *slog.Logger
}

// NewUserDirectory creates a directory. cache may be nil.
func NewUserDirectory(users UserFetcher, cache NameStore, logger *slog.Logger) *UserDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserDirectory{
		users:  users,
		cache:  cache,
		logger: logger.With("component", "user_directory"),
	}
}

// DisplayNames returns a name for every member ID.
func (d *UserDirectory) DisplayNames(ctx context.Context, memberIDs []string) map[string]string {
	names := make(map[string]string, len(memberIDs))
	if d.cache != nil {
		cached, err := d.cache.GetNames(ctx, memberIDs)
		if err != nil {
			d.logger.Warn("name cache read failed", "error", err)
		}
		for id, name := range cached {
			names[id] = name
		}
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		fetched = make(map[string]string)
	)
	for _, id := range memberIDs {
		if _, ok := names[id]; ok {
			continue
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			u, err := d.users.GetUser(ctx, id)
			if err != nil {
				d.logger.Debug("user lookup failed", "member_id", id, "error", err)
				return
			}
			mu.Lock()
			fetched[id] = u.DisplayName()
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	if d.cache != nil && len(fetched) > 0 {
		if err := d.cache.SetNames(ctx, fetched); err != nil {
			d.logger.Warn("name cache write failed", "error", err)
		}
	}

	for _, id := range memberIDs {
		if name, ok := fetched[id]; ok {
			names[id] = name
		} else if _, ok := names[id]; !ok {
			names[id] = "<@" + id + ">"
		}
	}
	return names
}
