package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the closed set of account roles. Authorization checkpoints match
// exhaustively on it rather than comparing raw strings.
type Role string

const (
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
)

// ParseRole converts a stored or submitted role string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleMember:
		return RoleMember, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

// Valid reports whether r is one of the two defined roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMember
}

type User struct {
	ID                 uuid.UUID  `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	Role               Role       `json:"role"`
	ReedzBalance       int64      `json:"reedz_balance"`
	ResetCode          *string    `json:"-"`
	ResetCodeExpiresAt *time.Time `json:"-"`
	CreatedAt          time.Time  `json:"created_at"`
}

// IsAdmin reports whether the user may perform admin-only actions.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// LeaderboardEntry is one row of the Reedz standings, ranked by balance.
type LeaderboardEntry struct {
	Rank         int    `json:"rank"`
	Username     string `json:"username"`
	ReedzBalance int64  `json:"reedz_balance"`
}
