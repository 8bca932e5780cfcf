package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/reedzbet/backend/internal/models"
)

type contextKey string

const ctxUserKey contextKey = "user"

// TokenValidator checks a bearer token and returns the subject user id and
// the role claim.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (uuid.UUID, models.Role, error)
}

// UserLookup resolves the authenticated user's current record.
type UserLookup interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Authenticate validates the Bearer JWT and stores the full user record in
// request context. The role is read from the database rather than the token
// claim, so promotions and demotions apply without waiting for expiry.
func Authenticate(tokens TokenValidator, users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractBearer(r)
			if raw == "" {
				http.Error(w, `{"error":"missing or malformed Authorization header"}`, http.StatusUnauthorized)
				return
			}

			userID, _, err := tokens.ValidateToken(r.Context(), raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin lets only admins through. Must run after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromCtx(r.Context())
		if user == nil {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		switch user.Role {
		case models.RoleAdmin:
			next.ServeHTTP(w, r)
		case models.RoleMember:
			http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
		default:
			http.Error(w, `{"error":"admin role required"}`, http.StatusForbidden)
		}
	})
}

// UserFromCtx returns the authenticated user or nil.
func UserFromCtx(ctx context.Context) *models.User {
	u, _ := ctx.Value(ctxUserKey).(*models.User)
	return u
}

// WithUser returns a context carrying the given user.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxUserKey, u)
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
