package common

// BearerPrefix is the scheme prefix of the Authorization header.
const BearerPrefix = "Bearer "

// AuthorizationHeaderName carries session and password-reset tokens.
const AuthorizationHeaderName = "Authorization"

// ActivationTokenBytes and ResetTokenBytes are the random byte counts of the
// one-time tokens (hex encoded, so the strings are twice as long).
const (
	ActivationTokenBytes = 16
	ResetTokenBytes      = 16
)
