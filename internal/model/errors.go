package model

import "errors"

// Sentinel errors shared across services, storage adapters and the API
// layer. Handlers map these to HTTP status codes; the bot maps them to
// user-facing reply text.
var (
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrConflict      = errors.New("conflict")
	ErrQuotaExceeded = errors.New("quota exceeded")
	ErrForbidden     = errors.New("forbidden")
)
