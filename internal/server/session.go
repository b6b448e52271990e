package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

var ErrInvalidSession = errors.New("invalid session token")

// SessionVerifier checks HS256 session tokens issued by the surrounding application.
// The subject claim carries the user id in either identifier namespace.
type SessionVerifier struct {
	secret []byte
}

func NewSessionVerifier(secret string) *SessionVerifier {
	return &SessionVerifier{secret: []byte(secret)}
}

func (v *SessionVerifier) Verify(tokenString string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	if err != nil {
		return "", errors.Wrap(ErrInvalidSession, err.Error())
	}
	if !token.Valid {
		return "", ErrInvalidSession
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", errors.Wrap(ErrInvalidSession, "token has no subject")
	}
	return subject, nil
}

// Sign issues a token for userID. Used by tooling and tests; regular sessions come from the login service.
func (v *SessionVerifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}
