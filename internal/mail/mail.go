// Package mail delivers one-time verification codes to citizens.
package mail

import (
	"context"
	"time"
)

// Sender delivers an OTP email. Implementations must not log the code at
// info level in production paths.
type Sender interface {
	SendOTP(ctx context.Context, to, code string, expiresAt time.Time) error
}
