// Package service contains application services for authentication, the
// guest verification flow, complaints, and admin operations.
package service

import (
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/openmunicipal/civicportal/internal/model"
)

// Claims is the portal JWT payload: registered claims plus the account role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// IssueAccessToken creates a signed HS256 JWT for the given subject.
func IssueAccessToken(signKey []byte, userID uuid.UUID, role model.Role, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Role: string(role),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(signKey)
	return signed, exp, err
}

// ParseAccessToken validates a signed token and returns its subject and role.
func ParseAccessToken(signKey []byte, token string) (uuid.UUID, model.Role, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return signKey, nil
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil {
		return uuid.Nil, "", err
	}
	return id, model.Role(claims.Role), nil
}

// MaskEmail hides the local part of an address for display: "john@x.com"
// becomes "j***@x.com". The unmasked address never leaves the server in the
// guest flow.
func MaskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
