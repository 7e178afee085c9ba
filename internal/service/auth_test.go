package service

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	pkgcrypto "github.com/openmunicipal/civicportal/internal/crypto"
	"github.com/openmunicipal/civicportal/internal/errs"
	"github.com/openmunicipal/civicportal/internal/model"
)

func seedUser(t *testing.T, users *fakeUsers, email, password string, role model.Role, active bool) *model.User {
	t.Helper()
	salt, err := pkgcrypto.RandBytes(16)
	require.NoError(t, err)
	u := &model.User{
		ID:       uuid.Must(uuid.NewV4()),
		FullName: "John Doe",
		Email:    email,
		Phone:    "+91-9876543210",
		PwdHash:  pkgcrypto.HashPassword([]byte(password), salt),
		SaltAuth: salt,
		Role:     role,
		Active:   active,
	}
	require.NoError(t, users.Create(context.Background(), u))
	return u
}

func TestLogin_Success(t *testing.T) {
	users := &fakeUsers{}
	lim := &fakeLimiter{allowOK: true}
	u := seedUser(t, users, "john@x.com", "s3cret-pw", model.RoleCitizen, true)
	svc := NewAuthService(users, []byte("k"), time.Hour, lim)

	tok, got, err := svc.LoginWithIP(context.Background(), "John@x.com ", "s3cret-pw", "1.2.3.4")
	require.NoError(t, err)
	require.Equal(t, u.ID, got.ID)
	require.NotEmpty(t, tok.AccessToken)
	require.Equal(t, 1, lim.successCalls)

	// token carries subject and role claims
	var claims Claims
	_, err = jwt.ParseWithClaims(tok.AccessToken, &claims, func(*jwt.Token) (any, error) { return []byte("k"), nil })
	require.NoError(t, err)
	require.Equal(t, u.ID.String(), claims.Subject)
	require.Equal(t, "CITIZEN", claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	users := &fakeUsers{}
	lim := &fakeLimiter{allowOK: true}
	seedUser(t, users, "john@x.com", "s3cret-pw", model.RoleCitizen, true)
	svc := NewAuthService(users, []byte("k"), time.Hour, lim)

	_, _, err := svc.LoginWithIP(context.Background(), "john@x.com", "wrong", "1.2.3.4")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
	require.Equal(t, 1, lim.failureCalls)
}

func TestLogin_UnknownUserMasked(t *testing.T) {
	users := &fakeUsers{}
	lim := &fakeLimiter{allowOK: true}
	svc := NewAuthService(users, []byte("k"), time.Hour, lim)

	_, _, err := svc.LoginWithIP(context.Background(), "ghost@x.com", "whatever", "1.2.3.4")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestLogin_RateLimited(t *testing.T) {
	users := &fakeUsers{}
	lim := &fakeLimiter{allowOK: false}
	seedUser(t, users, "john@x.com", "s3cret-pw", model.RoleCitizen, true)
	svc := NewAuthService(users, []byte("k"), time.Hour, lim)

	_, _, err := svc.LoginWithIP(context.Background(), "john@x.com", "s3cret-pw", "1.2.3.4")
	require.ErrorIs(t, err, errs.ErrRateLimited)
}

func TestLogin_BlockedAfterThreshold(t *testing.T) {
	users := &fakeUsers{}
	lim := &fakeLimiter{allowOK: true, failBlocked: true}
	seedUser(t, users, "john@x.com", "s3cret-pw", model.RoleCitizen, true)
	svc := NewAuthService(users, []byte("k"), time.Hour, lim)

	_, _, err := svc.LoginWithIP(context.Background(), "john@x.com", "wrong", "1.2.3.4")
	require.ErrorIs(t, err, errs.ErrRateLimited)
}

func TestLogin_InactiveAccount(t *testing.T) {
	users := &fakeUsers{}
	lim := &fakeLimiter{allowOK: true}
	seedUser(t, users, "john@x.com", "s3cret-pw", model.RoleAdmin, false)
	svc := NewAuthService(users, []byte("k"), time.Hour, lim)

	_, _, err := svc.LoginWithIP(context.Background(), "john@x.com", "s3cret-pw", "1.2.3.4")
	require.ErrorIs(t, err, errs.ErrUnauthorized)
}
