package httpapi

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/openmunicipal/civicportal/internal/model"
	"github.com/openmunicipal/civicportal/internal/service"
)

type ctxKey string

const (
	userIDKey ctxKey = "portal.userID"
	roleKey   ctxKey = "portal.role"
)

// WithIdentity stores the authenticated user ID and role in context.
func WithIdentity(ctx context.Context, id uuid.UUID, role model.Role) context.Context {
	ctx = context.WithValue(ctx, userIDKey, id)
	return context.WithValue(ctx, roleKey, role)
}

// IdentityFromCtx fetches the authenticated identity from context.
func IdentityFromCtx(ctx context.Context) (uuid.UUID, model.Role, bool) {
	id, okID := ctx.Value(userIDKey).(uuid.UUID)
	role, okRole := ctx.Value(roleKey).(model.Role)
	return id, role, okID && okRole
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging logs method, path, status, duration, and remote address.
// Payloads are never logged.
func Logging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("dur", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
		)
	})
}

// Recover converts handler panics into a 500 without crashing the server.
func Recover(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic",
					zap.Any("reason", rec),
					zap.ByteString("stack", debug.Stack()),
					zap.String("path", r.URL.Path),
				)
				fail(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireAuth validates the bearer token and injects identity into context.
func RequireAuth(signKey []byte, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			fail(w, http.StatusUnauthorized, "missing token")
			return
		}
		id, role, err := service.ParseAccessToken(signKey, tok)
		if err != nil {
			fail(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next(w, r.WithContext(WithIdentity(r.Context(), id, role)))
	}
}

// RequireRole wraps RequireAuth and additionally enforces a role.
func RequireRole(signKey []byte, role model.Role, next http.HandlerFunc) http.HandlerFunc {
	return RequireAuth(signKey, func(w http.ResponseWriter, r *http.Request) {
		if _, got, ok := IdentityFromCtx(r.Context()); !ok || got != role {
			fail(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r)
	})
}

// clientIP returns the caller address for rate limiting. The portal sits
// behind a reverse proxy in production, so X-Forwarded-For wins when set.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i > 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	return r.RemoteAddr
}
