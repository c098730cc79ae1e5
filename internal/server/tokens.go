// tokens.go - stateless session tokens (HS256 JWTs)
package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMissingToken indicates no token was presented at all.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken covers every verification failure: bad signature,
	// wrong algorithm, malformed payload, expired, non-UUID subject.
	ErrInvalidToken = errors.New("invalid token")
)

// TokenConfig holds the signing material and lifetime for session tokens.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// Issue signs a token whose subject claim is the user id. Each token gets a
// fresh jti so individual tokens can be revoked without a session table.
func (tc TokenConfig) Issue(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		ID:        uuid.NewString(),
		Issuer:    tc.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tc.TTL)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tc.Secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token and returns its claims. Only HMAC
// signatures are accepted: a token claiming any other algorithm is rejected
// before the signature is even checked. All failures collapse into
// ErrInvalidToken so callers cannot distinguish why a token was rejected.
func (tc TokenConfig) Verify(raw string) (*jwt.RegisteredClaims, error) {
	if raw == "" {
		return nil, ErrMissingToken
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tc.Secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SubjectID extracts the user id from verified claims.
func SubjectID(claims *jwt.RegisteredClaims) uuid.UUID {
	id, _ := uuid.Parse(claims.Subject)
	return id
}
