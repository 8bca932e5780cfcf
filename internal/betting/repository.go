package betting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reedzbet/backend/internal/models"
)

// PredictionWithUser pairs a prediction with the predictor's username for
// bet detail views.
type PredictionWithUser struct {
	models.Prediction
	Username string `json:"username"`
}

// UserPrediction is a prediction joined with its bet for history views.
type UserPrediction struct {
	models.Prediction
	BetTitle   string `json:"bet_title"`
	BetStatus  string `json:"bet_status"`
	AnswerType string `json:"answer_type"`
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const betCols = `id, creator_id, title, description, answer_type,
	is_open, is_closed, is_resolved, close_at, correct_answer, resolved_at, created_at`

func scanBet(row pgx.Row) (*models.Bet, error) {
	var b models.Bet
	err := row.Scan(
		&b.ID, &b.CreatorID, &b.Title, &b.Description, &b.AnswerType,
		&b.IsOpen, &b.IsClosed, &b.IsResolved, &b.CloseAt, &b.CorrectAnswer,
		&b.ResolvedAt, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBet inserts a new open bet and returns it with assigned id.
func (r *Repository) CreateBet(ctx context.Context, creatorID uuid.UUID, title, description string, answerType models.AnswerType, closeAt time.Time) (*models.Bet, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO bets (creator_id, title, description, answer_type, close_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+betCols+`
	`, creatorID, title, description, answerType, closeAt)
	b, err := scanBet(row)
	if err != nil {
		return nil, fmt.Errorf("create bet: %w", err)
	}
	return b, nil
}

// GetBet fetches a bet by id, returning ErrBetNotFound when absent.
func (r *Repository) GetBet(ctx context.Context, id uuid.UUID) (*models.Bet, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+betCols+` FROM bets WHERE id = $1`, id)
	b, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrBetNotFound
		}
		return nil, fmt.Errorf("get bet %s: %w", id, err)
	}
	return b, nil
}

// ListBetsByStatus returns bets filtered by lifecycle phase, newest first.
// An empty status returns everything.
func (r *Repository) ListBetsByStatus(ctx context.Context, status string) ([]*models.Bet, error) {
	query := `SELECT ` + betCols + ` FROM bets`
	switch status {
	case models.BetStatusOpen:
		query += ` WHERE is_open`
	case models.BetStatusClosed:
		query += ` WHERE is_closed AND NOT is_resolved`
	case models.BetStatusResolved:
		query += ` WHERE is_resolved`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	defer rows.Close()

	var bets []*models.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		bets = append(bets, b)
	}
	return bets, rows.Err()
}

// CreatePrediction inserts a prediction. The (user_id, bet_id) unique
// constraint maps to ErrDuplicatePrediction.
func (r *Repository) CreatePrediction(ctx context.Context, userID, betID uuid.UUID, value string) (*models.Prediction, error) {
	p := models.Prediction{UserID: userID, BetID: betID, Value: value}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO predictions (user_id, bet_id, value)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, userID, betID, value)
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, models.ErrDuplicatePrediction
		}
		return nil, fmt.Errorf("create prediction: %w", err)
	}
	return &p, nil
}

// GetPredictionsForBet returns every prediction tied to the bet, oldest first.
func (r *Repository) GetPredictionsForBet(ctx context.Context, betID uuid.UUID) ([]models.Prediction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, bet_id, value, created_at
		FROM predictions WHERE bet_id = $1
		ORDER BY created_at ASC
	`, betID)
	if err != nil {
		return nil, fmt.Errorf("list predictions for bet %s: %w", betID, err)
	}
	defer rows.Close()

	var preds []models.Prediction
	for rows.Next() {
		var p models.Prediction
		if err := rows.Scan(&p.ID, &p.UserID, &p.BetID, &p.Value, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan prediction: %w", err)
		}
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

// ListPredictionsWithUsers joins predictions with predictor usernames.
func (r *Repository) ListPredictionsWithUsers(ctx context.Context, betID uuid.UUID) ([]PredictionWithUser, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.user_id, p.bet_id, p.value, p.created_at, u.username
		FROM predictions p
		JOIN users u ON u.id = p.user_id
		WHERE p.bet_id = $1
		ORDER BY p.created_at ASC
	`, betID)
	if err != nil {
		return nil, fmt.Errorf("list predictions with users for bet %s: %w", betID, err)
	}
	defer rows.Close()

	var out []PredictionWithUser
	for rows.Next() {
		var pw PredictionWithUser
		if err := rows.Scan(&pw.ID, &pw.UserID, &pw.BetID, &pw.Value, &pw.CreatedAt, &pw.Username); err != nil {
			return nil, fmt.Errorf("scan prediction row: %w", err)
		}
		out = append(out, pw)
	}
	return out, rows.Err()
}

// ListPredictionsForUser returns the user's prediction history joined with
// bet titles and lifecycle phases, newest first.
func (r *Repository) ListPredictionsForUser(ctx context.Context, userID uuid.UUID) ([]UserPrediction, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.user_id, p.bet_id, p.value, p.created_at,
		       b.title, b.answer_type,
		       CASE WHEN b.is_resolved THEN 'resolved'
		            WHEN b.is_closed THEN 'closed'
		            ELSE 'open' END
		FROM predictions p
		JOIN bets b ON b.id = p.bet_id
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list predictions for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []UserPrediction
	for rows.Next() {
		var up UserPrediction
		if err := rows.Scan(&up.ID, &up.UserID, &up.BetID, &up.Value, &up.CreatedAt,
			&up.BetTitle, &up.AnswerType, &up.BetStatus); err != nil {
			return nil, fmt.Errorf("scan user prediction: %w", err)
		}
		out = append(out, up)
	}
	return out, rows.Err()
}

// CloseBet flips an unresolved bet to closed and returns the updated row.
// Closing an already-closed bet rewrites the same values, so the statement
// stays safe to repeat. Resolved bets never match.
func (r *Repository) CloseBet(ctx context.Context, betID uuid.UUID) (*models.Bet, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bets SET is_open = FALSE, is_closed = TRUE
		WHERE id = $1 AND is_resolved = FALSE
		RETURNING `+betCols+`
	`, betID)
	b, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrBetAlreadyResolved
		}
		return nil, fmt.Errorf("close bet %s: %w", betID, err)
	}
	return b, nil
}

// MarkResolvedAndCredit finalizes a resolution in one transaction: the bet is
// flipped to resolved and every reward is applied as an atomic balance
// increment. If any step fails nothing is committed, so a retry re-runs
// scoring against an unresolved bet and cannot double-credit.
func (r *Repository) MarkResolvedAndCredit(ctx context.Context, betID uuid.UUID, correctAnswer string, resolvedAt time.Time, rewards map[uuid.UUID]int64) (*models.Bet, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin resolve tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `
		UPDATE bets
		SET is_open = FALSE, is_closed = TRUE, is_resolved = TRUE,
		    correct_answer = $2, resolved_at = $3
		WHERE id = $1 AND is_closed = TRUE AND is_resolved = FALSE
		RETURNING `+betCols+`
	`, betID, correctAnswer, resolvedAt)
	b, err := scanBet(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrBetAlreadyResolved
		}
		return nil, fmt.Errorf("mark bet %s resolved: %w", betID, err)
	}

	for userID, delta := range rewards {
		tag, err := tx.Exec(ctx, `
			UPDATE users SET reedz_balance = reedz_balance + $1 WHERE id = $2
		`, delta, userID)
		if err != nil {
			return nil, fmt.Errorf("credit user %s: %w", userID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil, fmt.Errorf("credit user %s: %w", userID, models.ErrUserNotFound)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit resolve tx: %w", err)
	}
	return b, nil
}

// CloseExpiredBets closes every open bet whose deadline has passed and
// returns how many were flipped.
func (r *Repository) CloseExpiredBets(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bets SET is_open = FALSE, is_closed = TRUE
		WHERE is_open = TRUE AND close_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("close expired bets: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAllBetsAndPredictions wipes the betting tables for a season reset.
// Users and balances are preserved.
func (r *Repository) DeleteAllBetsAndPredictions(ctx context.Context) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin season reset tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM predictions`); err != nil {
		return fmt.Errorf("delete predictions: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM bets`); err != nil {
		return fmt.Errorf("delete bets: %w", err)
	}
	return tx.Commit(ctx)
}
