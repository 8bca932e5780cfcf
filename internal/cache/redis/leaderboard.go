package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/reedzbet/backend/internal/models"
)

// ErrCacheMiss is returned when a key is absent or expired. Callers fall
// back to the database and repopulate.
var ErrCacheMiss = errors.New("cache miss")

const (
	leaderboardKey = "leaderboard:top"
	leaderboardTTL = 60 * time.Second
)

// LeaderboardCache stores the ranked standings as a JSON list under a
// single key. Resolutions and balance adjustments invalidate it; otherwise
// it expires on its own.
type LeaderboardCache struct {
	rdb *redis.Client
}

// NewLeaderboardCache creates a LeaderboardCache backed by the given Client.
func NewLeaderboardCache(c *Client) *LeaderboardCache {
	return &LeaderboardCache{rdb: c.Underlying()}
}

// GetLeaderboard retrieves the cached standings. It returns ErrCacheMiss
// when the key does not exist.
func (lc *LeaderboardCache) GetLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	data, err := lc.rdb.Get(ctx, leaderboardKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("redis: get leaderboard: %w", err)
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("redis: unmarshal leaderboard: %w", err)
	}
	return entries, nil
}

// SetLeaderboard stores the standings with a short TTL.
func (lc *LeaderboardCache) SetLeaderboard(ctx context.Context, entries []models.LeaderboardEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("redis: marshal leaderboard: %w", err)
	}
	if err := lc.rdb.Set(ctx, leaderboardKey, data, leaderboardTTL).Err(); err != nil {
		return fmt.Errorf("redis: set leaderboard: %w", err)
	}
	return nil
}

// InvalidateLeaderboard removes the cached standings.
func (lc *LeaderboardCache) InvalidateLeaderboard(ctx context.Context) error {
	if err := lc.rdb.Del(ctx, leaderboardKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate leaderboard: %w", err)
	}
	return nil
}
