package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/reedzbet/backend/internal/models"
)

var (
	// ErrAdminCodeInvalid is returned when registering as Admin without the
	// correct verification code.
	ErrAdminCodeInvalid = errors.New("incorrect admin verification code")

	// ErrInvalidUsername is returned for usernames outside [A-Za-z0-9]+.
	ErrInvalidUsername = errors.New("username must contain only letters and digits")
)

// ResetCodeTTL is how long an emailed password reset code stays valid.
const ResetCodeTTL = 5 * time.Minute

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)

// UserStore is the persistence surface the auth service depends on.
type UserStore interface {
	Create(ctx context.Context, username, email, passwordHash string, role models.Role) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	SetResetCode(ctx context.Context, email, code string, expiresAt time.Time) error
	ClearResetCodeAndSetPassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
}

// EnqueueResetEmailFunc schedules delivery of a password reset code. Wired to
// the river client in main so the SMTP call happens off the request path.
type EnqueueResetEmailFunc func(ctx context.Context, email, code string) error

type Service interface {
	Register(ctx context.Context, username, email, password, role, adminCode string) (*models.User, error)
	Login(ctx context.Context, username, password string) (string, *models.User, error)
	ValidateToken(ctx context.Context, token string) (uuid.UUID, models.Role, error)
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error
}

type service struct {
	store     UserStore
	secret    []byte
	adminCode string
	enqueue   EnqueueResetEmailFunc
}

func NewService(store UserStore, jwtSecret, adminCode string, enqueue EnqueueResetEmailFunc) *service {
	return &service{
		store:     store,
		secret:    []byte(jwtSecret),
		adminCode: adminCode,
		enqueue:   enqueue,
	}
}

// Ensure service implements Service at compile time.
var _ Service = (*service)(nil)

type claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Register creates a user with a zero Reedz balance. Requesting the Admin
// role requires the configured verification code.
func (s *service) Register(ctx context.Context, username, email, password, role, adminCode string) (*models.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if !usernamePattern.MatchString(username) {
		return nil, ErrInvalidUsername
	}

	if role == "" {
		role = string(models.RoleMember)
	}
	parsed, err := models.ParseRole(role)
	if err != nil {
		return nil, err
	}
	if parsed == models.RoleAdmin {
		if s.adminCode == "" || adminCode != s.adminCode {
			return nil, ErrAdminCodeInvalid
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.store.Create(ctx, username, email, string(hash), parsed)
}

// Login verifies credentials and issues a signed token. Unknown usernames and
// wrong passwords are indistinguishable to the caller.
func (s *service) Login(ctx context.Context, username, password string) (string, *models.User, error) {
	user, err := s.store.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return "", nil, models.ErrInvalidCredentials
		}
		return "", nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, models.ErrInvalidCredentials
	}
	token, err := s.issueToken(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}

func (s *service) issueToken(user *models.User) (string, error) {
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Username: user.Username,
		Role:     string(user.Role),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return tok.SignedString(s.secret)
}

func (s *service) ValidateToken(ctx context.Context, token string) (uuid.UUID, models.Role, error) {
	tok, err := jwt.ParseWithClaims(token, &claims{}, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return uuid.Nil, "", errors.New("invalid token")
	}
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, "", err
	}
	role, err := models.ParseRole(c.Role)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, role, nil
}

// RequestPasswordReset stores a short-lived 6-digit code for the account and
// schedules the email carrying it.
func (s *service) RequestPasswordReset(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if _, err := s.store.GetByEmail(ctx, email); err != nil {
		return err
	}

	code, err := generateResetCode()
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}
	expiresAt := time.Now().UTC().Add(ResetCodeTTL)
	if err := s.store.SetResetCode(ctx, email, code, expiresAt); err != nil {
		return err
	}
	if s.enqueue != nil {
		if err := s.enqueue(ctx, email, code); err != nil {
			return fmt.Errorf("enqueue reset email: %w", err)
		}
	}
	return nil
}

// ConfirmPasswordReset verifies the emailed code and replaces the password.
// Codes are single-use: the stored code is cleared on success.
func (s *service) ConfirmPasswordReset(ctx context.Context, email, code, newPassword string) error {
	user, err := s.store.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return err
	}
	if user.ResetCode == nil || *user.ResetCode != code {
		return models.ErrInvalidResetCode
	}
	if user.ResetCodeExpiresAt == nil || time.Now().After(*user.ResetCodeExpiresAt) {
		return models.ErrResetCodeExpired
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return s.store.ClearResetCodeAndSetPassword(ctx, user.ID, string(hash))
}

func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
