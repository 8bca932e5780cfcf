package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	rediscache "github.com/reedzbet/backend/internal/cache/redis"
	"github.com/reedzbet/backend/internal/models"
)

// leaderboardSize caps how many ranked users are computed and cached.
const leaderboardSize = 100

// UserStore is the persistence surface the users service depends on.
type UserStore interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	Leaderboard(ctx context.Context, limit int) ([]models.User, error)
	AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) (*models.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var _ UserStore = (*Repository)(nil)

// LeaderboardCache caches the ranked standings. A nil cache is allowed;
// every read then goes to the store.
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context) ([]models.LeaderboardEntry, error)
	SetLeaderboard(ctx context.Context, entries []models.LeaderboardEntry) error
	InvalidateLeaderboard(ctx context.Context) error
}

var _ LeaderboardCache = (*rediscache.LeaderboardCache)(nil)

type Service interface {
	Profile(ctx context.Context, userID uuid.UUID) (*models.User, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	ListUsers(ctx context.Context, actor *models.User) ([]models.User, error)
	ChangeRole(ctx context.Context, actor *models.User, userID uuid.UUID, role string) (*models.User, error)
	AdjustBalance(ctx context.Context, actor *models.User, userID uuid.UUID, delta int64) (*models.User, error)
	DeleteUser(ctx context.Context, actor *models.User, userID uuid.UUID) error
}

type service struct {
	store UserStore
	cache LeaderboardCache
	log   *slog.Logger
}

func NewService(store UserStore, cache LeaderboardCache, log *slog.Logger) *service {
	if log == nil {
		log = slog.Default()
	}
	return &service{store: store, cache: cache, log: log}
}

var _ Service = (*service)(nil)

func requireAdmin(actor *models.User) error {
	if actor == nil {
		return models.ErrUnauthorized
	}
	switch actor.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleMember:
		return models.ErrUnauthorized
	default:
		return fmt.Errorf("%w: role %q", models.ErrUnauthorized, actor.Role)
	}
}

func (s *service) Profile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// Leaderboard serves the standings cache-first. The canonical top list is
// cached whole; smaller limits slice it so one cache entry serves every
// request size.
func (s *service) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > leaderboardSize {
		limit = leaderboardSize
	}

	if s.cache != nil {
		entries, err := s.cache.GetLeaderboard(ctx)
		switch {
		case err == nil:
			return clip(entries, limit), nil
		case !errors.Is(err, rediscache.ErrCacheMiss):
			s.log.WarnContext(ctx, "leaderboard cache read failed", "error", err)
		}
	}

	ranked, err := s.store.Leaderboard(ctx, leaderboardSize)
	if err != nil {
		return nil, err
	}
	entries := make([]models.LeaderboardEntry, len(ranked))
	for i, u := range ranked {
		entries[i] = models.LeaderboardEntry{
			Rank:         i + 1,
			Username:     u.Username,
			ReedzBalance: u.ReedzBalance,
		}
	}

	if s.cache != nil {
		if err := s.cache.SetLeaderboard(ctx, entries); err != nil {
			s.log.WarnContext(ctx, "leaderboard cache write failed", "error", err)
		}
	}
	return clip(entries, limit), nil
}

func clip(entries []models.LeaderboardEntry, limit int) []models.LeaderboardEntry {
	if len(entries) > limit {
		return entries[:limit]
	}
	return entries
}

func (s *service) ListUsers(ctx context.Context, actor *models.User) ([]models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.store.List(ctx)
}

func (s *service) ChangeRole(ctx context.Context, actor *models.User, userID uuid.UUID, role string) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	parsed, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}
	updated, err := s.store.UpdateRole(ctx, userID, parsed)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "role changed",
		"actor_id", actor.ID, "user_id", userID, "role", parsed)
	return updated, nil
}

// AdjustBalance applies a signed Reedz delta. Negative deltas may overdraw
// the balance; adjustments are an admin correction tool, not a transfer.
func (s *service) AdjustBalance(ctx context.Context, actor *models.User, userID uuid.UUID, delta int64) (*models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	updated, err := s.store.AdjustBalance(ctx, userID, delta)
	if err != nil {
		return nil, err
	}
	s.invalidateLeaderboard(ctx)
	s.log.InfoContext(ctx, "balance adjusted",
		"actor_id", actor.ID, "user_id", userID, "delta", delta, "balance", updated.ReedzBalance)
	return updated, nil
}

func (s *service) DeleteUser(ctx context.Context, actor *models.User, userID uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, userID); err != nil {
		return err
	}
	s.invalidateLeaderboard(ctx)
	s.log.InfoContext(ctx, "user deleted", "actor_id", actor.ID, "user_id", userID)
	return nil
}

func (s *service) invalidateLeaderboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateLeaderboard(ctx); err != nil {
		s.log.WarnContext(ctx, "leaderboard invalidation failed", "error", err)
	}
}
