package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/reedzbet/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type stubValidator struct {
	userID uuid.UUID
	role   models.Role
	err    error
}

func (s *stubValidator) ValidateToken(_ context.Context, _ string) (uuid.UUID, models.Role, error) {
	return s.userID, s.role, s.err
}

type stubUserLookup struct {
	user *models.User
	err  error
}

func (s *stubUserLookup) GetUserByID(_ context.Context, _ uuid.UUID) (*models.User, error) {
	return s.user, s.err
}

// okHandler writes 200 and the authenticated username (for assertions).
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if u := UserFromCtx(r.Context()); u != nil {
		w.Write([]byte(u.Username))
	}
})

// ---------------------------------------------------------------------------
// Authenticate
// ---------------------------------------------------------------------------

func TestAuthenticate_ValidToken(t *testing.T) {
	user := &models.User{ID: uuid.New(), Username: "carol", Role: models.RoleMember}
	mw := Authenticate(
		&stubValidator{userID: user.ID, role: user.Role},
		&stubUserLookup{user: user},
	)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer some-valid-jwt")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := rec.Body.String(); body != user.Username {
		t.Errorf("expected username %q in body, got %q", user.Username, body)
	}
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	mw := Authenticate(&stubValidator{}, &stubUserLookup{})(okHandler)

	cases := []struct {
		name   string
		header string
	}{
		{"no header at all", ""},
		{"empty bearer", "Bearer "},
		{"wrong scheme", "Basic abc123"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			mw.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestAuthenticate_InvalidToken(t *testing.T) {
	mw := Authenticate(
		&stubValidator{err: errors.New("token expired")},
		&stubUserLookup{},
	)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer expired-jwt")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestAuthenticate_DeletedUser(t *testing.T) {
	// Token is valid but the account no longer exists.
	mw := Authenticate(
		&stubValidator{userID: uuid.New(), role: models.RoleMember},
		&stubUserLookup{err: models.ErrUserNotFound},
	)(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer stale-jwt")
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

// ---------------------------------------------------------------------------
// RequireAdmin
// ---------------------------------------------------------------------------

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name string
		user *models.User
		want int
	}{
		{"admin passes", &models.User{ID: uuid.New(), Role: models.RoleAdmin}, http.StatusOK},
		{"member forbidden", &models.User{ID: uuid.New(), Role: models.RoleMember}, http.StatusForbidden},
		{"unknown role forbidden", &models.User{ID: uuid.New(), Role: models.Role("Owner")}, http.StatusForbidden},
		{"no user unauthorized", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			if tc.user != nil {
				req = req.WithContext(WithUser(req.Context(), tc.user))
			}
			rec := httptest.NewRecorder()
			RequireAdmin(next).ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
