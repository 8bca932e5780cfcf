package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reedzbet/backend/internal/models"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const userCols = `id, username, email, password_hash, role, reedz_balance, reset_code, reset_code_expires_at, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.ReedzBalance,
		&u.ResetCode,
		&u.ResetCodeExpiresAt,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByID also serves the auth middleware, which reloads the caller on
// every request so role and balance changes apply immediately.
func (r *Repository) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userCols+` FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Leaderboard returns users ranked by balance. Ties order by username so
// the ranking is stable across reads.
func (r *Repository) Leaderboard(ctx context.Context, limit int) ([]models.User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userCols+`
		FROM users
		ORDER BY reedz_balance DESC, username
		LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// AdjustBalance applies a signed delta to a user's Reedz balance and
// returns the updated record.
func (r *Repository) AdjustBalance(ctx context.Context, id uuid.UUID, delta int64) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET reedz_balance = reedz_balance + $1
		WHERE id = $2
		RETURNING `+userCols,
		delta, id,
	)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *Repository) UpdateRole(ctx context.Context, id uuid.UUID, role models.Role) (*models.User, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE users
		SET role = $1
		WHERE id = $2
		RETURNING `+userCols,
		role, id,
	)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// Delete removes a user. Their predictions go with them via the foreign
// key cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
