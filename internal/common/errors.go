// Package common defines shared constants, helpers and sentinel errors used
// across bizdesk layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound    = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors.
	ErrorInternal  = errors.New("internal error")
	ErrPersistence = errors.New("persistence error")
	ErrValidation  = errors.New("validation error")

	// Auth errors.
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrAccountLocked    = errors.New("user locked")
	ErrSessionMismatch  = errors.New("session token does not match the stored one")
	ErrNotActivated     = errors.New("account is not activated")
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidPassword  = errors.New("invalid credentials")
	ErrPayloadTooLarge  = errors.New("payload too large")
	ErrExtensionDenied  = errors.New("file extension not allowed")
	ErrMailNotDelivered = errors.New("mail not delivered")
)
