package models

import "errors"

// Sentinel errors shared across services. Handlers map them to HTTP status
// codes with errors.Is; anything not listed here is a persistence or
// programming failure and surfaces as a 500.
var (
	ErrUnauthorized       = errors.New("caller role does not permit this action")
	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrUserNotFound  = errors.New("user not found")
	ErrDuplicateUser = errors.New("username or email already registered")
	ErrInvalidRole   = errors.New("unknown role")

	ErrBetNotFound        = errors.New("bet not found")
	ErrBetNotOpen         = errors.New("bet is not open")
	ErrBetNotClosed       = errors.New("bet is not closed")
	ErrBetNotResolved     = errors.New("bet is not resolved")
	ErrBetAlreadyResolved = errors.New("bet is already resolved")

	ErrDuplicatePrediction   = errors.New("user already has a prediction on this bet")
	ErrUnsupportedAnswerType = errors.New("unsupported answer type")
	ErrMalformedAnswer       = errors.New("answer is not parseable for this bet's answer type")

	ErrInvalidResetCode = errors.New("reset code is invalid")
	ErrResetCodeExpired = errors.New("reset code has expired")
)
