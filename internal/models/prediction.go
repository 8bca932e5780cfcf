package models

import (
	"time"

	"github.com/google/uuid"
)

// Prediction is a user's guess for one bet. Immutable once placed; a user
// holds at most one prediction per bet.
type Prediction struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	BetID     uuid.UUID `json:"bet_id"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}
