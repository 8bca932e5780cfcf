package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnswerType is the two-valued kind of answer a bet accepts.
type AnswerType string

const (
	AnswerTypeNumber AnswerType = "number"
	AnswerTypeText   AnswerType = "text"
)

// ParseAnswerType validates a submitted answer_type string.
func ParseAnswerType(s string) (AnswerType, error) {
	switch AnswerType(s) {
	case AnswerTypeNumber:
		return AnswerTypeNumber, nil
	case AnswerTypeText:
		return AnswerTypeText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAnswerType, s)
	}
}

// Bet status values used in listings and API filters.
const (
	BetStatusOpen     = "open"
	BetStatusClosed   = "closed"
	BetStatusResolved = "resolved"
)

// Bet is an admin-created prediction question. Exactly one of
// open / closed-not-resolved / resolved holds at a time, and transitions
// only move forward: open -> closed -> resolved.
type Bet struct {
	ID            uuid.UUID  `json:"id"`
	CreatorID     uuid.UUID  `json:"creator_id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	AnswerType    AnswerType `json:"answer_type"`
	IsOpen        bool       `json:"is_open"`
	IsClosed      bool       `json:"is_closed"`
	IsResolved    bool       `json:"is_resolved"`
	CloseAt       time.Time  `json:"close_at"`
	CorrectAnswer *string    `json:"correct_answer,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Status reports the lifecycle phase as a listing filter value.
func (b *Bet) Status() string {
	switch {
	case b.IsResolved:
		return BetStatusResolved
	case b.IsClosed:
		return BetStatusClosed
	default:
		return BetStatusOpen
	}
}
