package auth

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/reedzbet/backend/internal/models"
)

// mockUserStore is an in-memory UserStore for service tests.
type mockUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newMockUserStore() *mockUserStore {
	return &mockUserStore{users: make(map[uuid.UUID]*models.User)}
}

func (m *mockUserStore) Create(ctx context.Context, username, email, passwordHash string, role models.Role) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username || u.Email == email {
			return nil, models.ErrDuplicateUser
		}
	}
	u := &models.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		ReedzBalance: 0,
		CreatedAt:    time.Now(),
	}
	m.users[u.ID] = u
	clone := *u
	return &clone, nil
}

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			clone := *u
			return &clone, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *mockUserStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, models.ErrUserNotFound
}

func (m *mockUserStore) SetResetCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			u.ResetCode = &code
			u.ResetCodeExpiresAt = &expiresAt
			return nil
		}
	}
	return models.ErrUserNotFound
}

func (m *mockUserStore) ClearResetCodeAndSetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return models.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	u.ResetCode = nil
	u.ResetCodeExpiresAt = nil
	return nil
}

func newTestService(store UserStore, enqueue EnqueueResetEmailFunc) *service {
	return NewService(store, "test-secret", "letmein", enqueue)
}

// ---- 1. Registration ----

func TestRegister_MemberStartsWithZeroBalance(t *testing.T) {
	store := newMockUserStore()
	svc := newTestService(store, nil)

	user, err := svc.Register(context.Background(), "alice", "alice@example.com", "hunter2", "Member", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != models.RoleMember {
		t.Errorf("role = %q, want Member", user.Role)
	}
	if user.ReedzBalance != 0 {
		t.Errorf("balance = %d, want 0", user.ReedzBalance)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("hunter2")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestRegister_DefaultsToMember(t *testing.T) {
	svc := newTestService(newMockUserStore(), nil)

	user, err := svc.Register(context.Background(), "bob", "bob@example.com", "pw", "", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Role != models.RoleMember {
		t.Errorf("role = %q, want Member", user.Role)
	}
}

func TestRegister_AdminRequiresCode(t *testing.T) {
	svc := newTestService(newMockUserStore(), nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "eve", "eve@example.com", "pw", "Admin", "wrong"); !errors.Is(err, ErrAdminCodeInvalid) {
		t.Fatalf("wrong code: err = %v, want ErrAdminCodeInvalid", err)
	}
	if _, err := svc.Register(ctx, "eve", "eve@example.com", "pw", "Admin", ""); !errors.Is(err, ErrAdminCodeInvalid) {
		t.Fatalf("empty code: err = %v, want ErrAdminCodeInvalid", err)
	}

	user, err := svc.Register(ctx, "root", "root@example.com", "pw", "Admin", "letmein")
	if err != nil {
		t.Fatalf("correct code: %v", err)
	}
	if user.Role != models.RoleAdmin {
		t.Errorf("role = %q, want Admin", user.Role)
	}
}

func TestRegister_AdminRejectedWhenNoCodeConfigured(t *testing.T) {
	svc := NewService(newMockUserStore(), "test-secret", "", nil)

	_, err := svc.Register(context.Background(), "eve", "eve@example.com", "pw", "Admin", "")
	if !errors.Is(err, ErrAdminCodeInvalid) {
		t.Fatalf("err = %v, want ErrAdminCodeInvalid", err)
	}
}

func TestRegister_RejectsBadUsernames(t *testing.T) {
	svc := newTestService(newMockUserStore(), nil)

	for _, name := range []string{"", "has space", "semi;colon", "dash-user", "ünïcode"} {
		if _, err := svc.Register(context.Background(), name, "x@example.com", "pw", "Member", ""); !errors.Is(err, ErrInvalidUsername) {
			t.Errorf("username %q: err = %v, want ErrInvalidUsername", name, err)
		}
	}
}

func TestRegister_RejectsUnknownRole(t *testing.T) {
	svc := newTestService(newMockUserStore(), nil)

	_, err := svc.Register(context.Background(), "carol", "carol@example.com", "pw", "Superuser", "")
	if !errors.Is(err, models.ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
}

func TestRegister_DuplicateUser(t *testing.T) {
	store := newMockUserStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice@example.com", "pw", "Member", ""); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "other@example.com", "pw", "Member", ""); !errors.Is(err, models.ErrDuplicateUser) {
		t.Fatalf("duplicate username: err = %v, want ErrDuplicateUser", err)
	}
	if _, err := svc.Register(ctx, "alice2", "alice@example.com", "pw", "Member", ""); !errors.Is(err, models.ErrDuplicateUser) {
		t.Fatalf("duplicate email: err = %v, want ErrDuplicateUser", err)
	}
}

// ---- 2. Login and tokens ----

func TestLogin_TokenRoundTrip(t *testing.T) {
	store := newMockUserStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2", "Member", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	token, loggedIn, err := svc.Login(ctx, "alice", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Errorf("logged in user id = %v, want %v", loggedIn.ID, user.ID)
	}

	id, role, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if id != user.ID {
		t.Errorf("token subject = %v, want %v", id, user.ID)
	}
	if role != models.RoleMember {
		t.Errorf("token role = %q, want Member", role)
	}
}

func TestLogin_InvalidCredentials(t *testing.T) {
	store := newMockUserStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice@example.com", "hunter2", "Member", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "alice", "wrong"); !errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("wrong password: err = %v, want ErrInvalidCredentials", err)
	}
	// Unknown usernames get the same error so login does not leak accounts.
	if _, _, err := svc.Login(ctx, "nobody", "hunter2"); !errors.Is(err, models.ErrInvalidCredentials) {
		t.Errorf("unknown user: err = %v, want ErrInvalidCredentials", err)
	}
}

func TestValidateToken_RejectsGarbage(t *testing.T) {
	svc := newTestService(newMockUserStore(), nil)

	if _, _, err := svc.ValidateToken(context.Background(), "not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed token")
	}
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	store := newMockUserStore()
	issuer := NewService(store, "secret-a", "", nil)
	verifier := NewService(store, "secret-b", "", nil)
	ctx := context.Background()

	if _, err := issuer.Register(ctx, "alice", "alice@example.com", "pw", "Member", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, _, err := issuer.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if _, _, err := verifier.ValidateToken(ctx, token); err == nil {
		t.Fatal("expected error for token signed with another secret")
	}
}

// ---- 3. Password reset ----

func TestRequestPasswordReset_StoresCodeAndEnqueuesEmail(t *testing.T) {
	store := newMockUserStore()
	var sentEmail, sentCode string
	enqueue := func(ctx context.Context, email, code string) error {
		sentEmail, sentCode = email, code
		return nil
	}
	svc := newTestService(store, enqueue)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "pw", "Member", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	before := time.Now()
	if err := svc.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}

	if sentEmail != "alice@example.com" {
		t.Errorf("enqueued email = %q, want alice@example.com", sentEmail)
	}
	if !regexp.MustCompile(`^\d{6}$`).MatchString(sentCode) {
		t.Errorf("enqueued code = %q, want six digits", sentCode)
	}

	stored := store.users[user.ID]
	if stored.ResetCode == nil || *stored.ResetCode != sentCode {
		t.Errorf("stored code = %v, want %q", stored.ResetCode, sentCode)
	}
	if stored.ResetCodeExpiresAt == nil {
		t.Fatal("expiry not stored")
	}
	ttl := stored.ResetCodeExpiresAt.Sub(before)
	if ttl < 4*time.Minute || ttl > 6*time.Minute {
		t.Errorf("code TTL = %v, want about %v", ttl, ResetCodeTTL)
	}
}

func TestRequestPasswordReset_UnknownEmail(t *testing.T) {
	called := false
	enqueue := func(ctx context.Context, email, code string) error {
		called = true
		return nil
	}
	svc := newTestService(newMockUserStore(), enqueue)

	err := svc.RequestPasswordReset(context.Background(), "ghost@example.com")
	if !errors.Is(err, models.ErrUserNotFound) {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
	if called {
		t.Error("no email should be enqueued for unknown accounts")
	}
}

func TestConfirmPasswordReset_UpdatesPasswordOnce(t *testing.T) {
	store := newMockUserStore()
	var sentCode string
	svc := newTestService(store, func(ctx context.Context, email, code string) error {
		sentCode = code
		return nil
	})
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice@example.com", "oldpw", "Member", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}

	if err := svc.ConfirmPasswordReset(ctx, "alice@example.com", sentCode, "newpw"); err != nil {
		t.Fatalf("ConfirmPasswordReset: %v", err)
	}

	if _, _, err := svc.Login(ctx, "alice", "oldpw"); !errors.Is(err, models.ErrInvalidCredentials) {
		t.Error("old password still accepted after reset")
	}
	if _, _, err := svc.Login(ctx, "alice", "newpw"); err != nil {
		t.Errorf("new password rejected: %v", err)
	}

	// Codes are single-use.
	if err := svc.ConfirmPasswordReset(ctx, "alice@example.com", sentCode, "another"); !errors.Is(err, models.ErrInvalidResetCode) {
		t.Errorf("reused code: err = %v, want ErrInvalidResetCode", err)
	}
}

func TestConfirmPasswordReset_WrongCode(t *testing.T) {
	store := newMockUserStore()
	svc := newTestService(store, func(ctx context.Context, email, code string) error { return nil })
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice@example.com", "pw", "Member", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("RequestPasswordReset: %v", err)
	}

	err := svc.ConfirmPasswordReset(ctx, "alice@example.com", "000000x", "newpw")
	if !errors.Is(err, models.ErrInvalidResetCode) {
		t.Fatalf("err = %v, want ErrInvalidResetCode", err)
	}
}

func TestConfirmPasswordReset_ExpiredCode(t *testing.T) {
	store := newMockUserStore()
	svc := newTestService(store, nil)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "pw", "Member", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	code := "123456"
	expired := time.Now().Add(-time.Minute)
	stored := store.users[user.ID]
	stored.ResetCode = &code
	stored.ResetCodeExpiresAt = &expired

	if err := svc.ConfirmPasswordReset(ctx, "alice@example.com", code, "newpw"); !errors.Is(err, models.ErrResetCodeExpired) {
		t.Fatalf("err = %v, want ErrResetCodeExpired", err)
	}
}
