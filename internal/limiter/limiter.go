// Package limiter defines interfaces and implementations for OTP rate limiting.
package limiter

import (
	"context"
	"time"
)

// Limiter controls OTP sends and verification attempts per (email, ip) and
// applies temporary lockouts.
type Limiter interface {
	// Allow reports whether the action is currently allowed and optional retry-after.
	Allow(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful verification.
	Success(ctx context.Context, email string, ipHash []byte) error
	// Failure records a failed attempt or a send; may place a temporary block.
	Failure(ctx context.Context, email string, ipHash []byte) (bool, time.Duration, error)
}
