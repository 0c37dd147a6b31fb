// Package common defines shared constants and sentinel errors used across
// the session manager components. Callers should use errors.Is to match
// these values.
package common

import "errors"

var (
	// Transport errors, normalized from HTTP statuses and dial failures.
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrServer       = errors.New("server error")
	ErrTimeout      = errors.New("request timed out")
	ErrNetwork      = errors.New("network error")

	// Token lifecycle errors.
	ErrTokenMalformed = errors.New("malformed token")
	ErrSessionExpired = errors.New("session expired")
	ErrNoCredential   = errors.New("no stored credential")

	// Login guard errors.
	ErrRateLimited = errors.New("too many login attempts")
)
