package betting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/reedzbet/backend/internal/models"
)

// ErrCloseTimeNotFuture is returned when a bet is created with a deadline
// that has already passed.
var ErrCloseTimeNotFuture = errors.New("close time must be in the future")

// BetStore is the persistence surface the lifecycle manager depends on.
type BetStore interface {
	CreateBet(ctx context.Context, creatorID uuid.UUID, title, description string, answerType models.AnswerType, closeAt time.Time) (*models.Bet, error)
	GetBet(ctx context.Context, id uuid.UUID) (*models.Bet, error)
	ListBetsByStatus(ctx context.Context, status string) ([]*models.Bet, error)
	CreatePrediction(ctx context.Context, userID, betID uuid.UUID, value string) (*models.Prediction, error)
	GetPredictionsForBet(ctx context.Context, betID uuid.UUID) ([]models.Prediction, error)
	ListPredictionsWithUsers(ctx context.Context, betID uuid.UUID) ([]PredictionWithUser, error)
	ListPredictionsForUser(ctx context.Context, userID uuid.UUID) ([]UserPrediction, error)
	CloseBet(ctx context.Context, betID uuid.UUID) (*models.Bet, error)
	MarkResolvedAndCredit(ctx context.Context, betID uuid.UUID, correctAnswer string, resolvedAt time.Time, rewards map[uuid.UUID]int64) (*models.Bet, error)
	CloseExpiredBets(ctx context.Context, now time.Time) (int64, error)
	DeleteAllBetsAndPredictions(ctx context.Context) error
}

var _ BetStore = (*Repository)(nil)

// LeaderboardInvalidator drops cached standings after balances change.
type LeaderboardInvalidator interface {
	InvalidateLeaderboard(ctx context.Context) error
}

type Service interface {
	Create(ctx context.Context, creator *models.User, title, description, answerType string, closeAt time.Time) (*models.Bet, error)
	Get(ctx context.Context, betID uuid.UUID) (*models.Bet, error)
	ListByStatus(ctx context.Context, status string) ([]*models.Bet, error)
	PlacePrediction(ctx context.Context, user *models.User, betID uuid.UUID, value string) (*models.Prediction, error)
	PredictionsForBet(ctx context.Context, betID uuid.UUID) ([]PredictionWithUser, error)
	PredictionsForUser(ctx context.Context, userID uuid.UUID) ([]UserPrediction, error)
	Close(ctx context.Context, caller *models.User, betID uuid.UUID) (*models.Bet, error)
	Resolve(ctx context.Context, caller *models.User, betID uuid.UUID, correctAnswer string) (*models.Bet, map[uuid.UUID]int64, error)
	CloseExpired(ctx context.Context) (int64, error)
	SeasonReset(ctx context.Context, caller *models.User) error
}

type service struct {
	store  BetStore
	cache  LeaderboardInvalidator
	logger *slog.Logger
}

// NewService builds the lifecycle manager. cache may be nil when no
// leaderboard cache is configured.
func NewService(store BetStore, cache LeaderboardInvalidator, logger *slog.Logger) *service {
	if logger == nil {
		logger = slog.Default()
	}
	return &service{store: store, cache: cache, logger: logger}
}

var _ Service = (*service)(nil)

// requireAdmin matches the caller's role exhaustively; unknown roles are
// treated as unauthorized rather than falling through.
func requireAdmin(u *models.User) error {
	if u == nil {
		return models.ErrUnauthorized
	}
	switch u.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleMember:
		return models.ErrUnauthorized
	default:
		return fmt.Errorf("%w: unknown role %q", models.ErrUnauthorized, u.Role)
	}
}

func requireKnownRole(u *models.User) error {
	if u == nil {
		return models.ErrUnauthorized
	}
	switch u.Role {
	case models.RoleAdmin, models.RoleMember:
		return nil
	default:
		return fmt.Errorf("%w: unknown role %q", models.ErrUnauthorized, u.Role)
	}
}

func (s *service) Create(ctx context.Context, creator *models.User, title, description, answerType string, closeAt time.Time) (*models.Bet, error) {
	if err := requireAdmin(creator); err != nil {
		return nil, err
	}
	parsed, err := models.ParseAnswerType(answerType)
	if err != nil {
		return nil, err
	}
	if !closeAt.After(time.Now()) {
		return nil, ErrCloseTimeNotFuture
	}
	return s.store.CreateBet(ctx, creator.ID, title, description, parsed, closeAt.UTC())
}

func (s *service) Get(ctx context.Context, betID uuid.UUID) (*models.Bet, error) {
	return s.store.GetBet(ctx, betID)
}

func (s *service) ListByStatus(ctx context.Context, status string) ([]*models.Bet, error) {
	return s.store.ListBetsByStatus(ctx, status)
}

func (s *service) PlacePrediction(ctx context.Context, user *models.User, betID uuid.UUID, value string) (*models.Prediction, error) {
	if err := requireKnownRole(user); err != nil {
		return nil, err
	}
	bet, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if !bet.IsOpen {
		return nil, models.ErrBetNotOpen
	}
	return s.store.CreatePrediction(ctx, user.ID, betID, value)
}

func (s *service) PredictionsForBet(ctx context.Context, betID uuid.UUID) ([]PredictionWithUser, error) {
	if _, err := s.store.GetBet(ctx, betID); err != nil {
		return nil, err
	}
	return s.store.ListPredictionsWithUsers(ctx, betID)
}

func (s *service) PredictionsForUser(ctx context.Context, userID uuid.UUID) ([]UserPrediction, error) {
	return s.store.ListPredictionsForUser(ctx, userID)
}

// Close transitions a bet out of Open. Closing an already-closed bet is a
// no-op success; closing a resolved bet is rejected.
func (s *service) Close(ctx context.Context, caller *models.User, betID uuid.UUID) (*models.Bet, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	bet, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return nil, err
	}
	if bet.IsResolved {
		return nil, models.ErrBetAlreadyResolved
	}
	if bet.IsClosed {
		return bet, nil
	}
	return s.store.CloseBet(ctx, betID)
}

// Resolve supplies the correct answer for a closed bet, scores every
// prediction, and credits the rewards. Scoring runs before any write, so a
// malformed answer leaves the bet unresolved and balances untouched. The
// store applies the flip-to-resolved and all credits in one transaction,
// which makes a retry after persistence failure safe.
func (s *service) Resolve(ctx context.Context, caller *models.User, betID uuid.UUID, correctAnswer string) (*models.Bet, map[uuid.UUID]int64, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, nil, err
	}
	bet, err := s.store.GetBet(ctx, betID)
	if err != nil {
		return nil, nil, err
	}
	if bet.IsResolved {
		return nil, nil, models.ErrBetAlreadyResolved
	}
	if !bet.IsClosed {
		return nil, nil, models.ErrBetNotClosed
	}

	predictions, err := s.store.GetPredictionsForBet(ctx, betID)
	if err != nil {
		return nil, nil, err
	}

	resolvedAt := time.Now().UTC()
	resolved := *bet
	resolved.IsOpen = false
	resolved.IsClosed = true
	resolved.IsResolved = true
	resolved.CorrectAnswer = &correctAnswer
	resolved.ResolvedAt = &resolvedAt

	rewards, err := Score(&resolved, predictions)
	if err != nil {
		return nil, nil, err
	}

	updated, err := s.store.MarkResolvedAndCredit(ctx, betID, correctAnswer, resolvedAt, rewards)
	if err != nil {
		return nil, nil, err
	}

	if s.cache != nil && len(rewards) > 0 {
		if err := s.cache.InvalidateLeaderboard(ctx); err != nil {
			s.logger.WarnContext(ctx, "leaderboard cache invalidation failed", "bet_id", betID, "error", err)
		}
	}
	return updated, rewards, nil
}

// CloseExpired flips every open bet whose deadline has passed. Invoked by
// the periodic deadline worker, not by the HTTP surface.
func (s *service) CloseExpired(ctx context.Context) (int64, error) {
	return s.store.CloseExpiredBets(ctx, time.Now().UTC())
}

// SeasonReset deletes every bet and prediction. Users and balances survive.
func (s *service) SeasonReset(ctx context.Context, caller *models.User) error {
	if err := requireAdmin(caller); err != nil {
		return err
	}
	return s.store.DeleteAllBetsAndPredictions(ctx)
}
