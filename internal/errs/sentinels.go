// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across repo/service layers.
var (
	// ErrNotFound indicates the requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication/authorization.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller lacks the role required by the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrRateLimited indicates a temporary lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., email taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrSessionExpired indicates the verification session is missing, past its
	// expiry, or already consumed.
	ErrSessionExpired = errors.New("verification session expired")

	// ErrCodeMismatch indicates the submitted one-time code does not match.
	ErrCodeMismatch = errors.New("verification code mismatch")

	// ErrTooManyAttempts indicates the per-session verification attempt cap was
	// reached; the session is invalidated and a resend is required.
	ErrTooManyAttempts = errors.New("too many verification attempts")

	// ErrCaptchaMismatch indicates a wrong, reused or expired captcha answer.
	ErrCaptchaMismatch = errors.New("captcha mismatch")
)
