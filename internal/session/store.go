// Package session stores short-lived, single-use guest verification sessions.
package session

import (
	"context"
	"time"

	"github.com/openmunicipal/civicportal/internal/model"
)

// Store persists verification sessions until they expire or are consumed.
// Expiry is enforced here, server-side; client countdowns are advisory only.
type Store interface {
	// Save writes the session with a TTL and indexes it by email so resends
	// can find it. An existing session for the same email is replaced.
	Save(ctx context.Context, s *model.VerificationSession, ttl time.Duration) error
	// Get loads a session by ID; missing or expired sessions return
	// errs.ErrSessionExpired.
	Get(ctx context.Context, id string) (*model.VerificationSession, error)
	// GetByEmail loads the live session bound to an email.
	GetByEmail(ctx context.Context, email string) (*model.VerificationSession, error)
	// Delete consumes the session (single-use) and drops the email index.
	Delete(ctx context.Context, id string) error
}
