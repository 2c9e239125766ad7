package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

const sessionIssuer = "wardline"

// SessionClaims is the JWT payload. Subject carries the user id.
type SessionClaims struct {
	jwtlib.RegisteredClaims
}

// SessionManager issues and parses bearer session credentials.
type SessionManager interface {
	Issue(userID int64) (string, time.Time, error)
	Parse(token string) (int64, error)
}

type jwtSessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTSessions returns HS256 sessions signed with secret.
func NewJWTSessions(secret string, ttl time.Duration) SessionManager {
	return &jwtSessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *jwtSessions) Issue(userID int64) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing session: %w", err)
	}
	return signed, expiresAt, nil
}

func (s *jwtSessions) Parse(token string) (int64, error) {
	parsed, err := jwtlib.ParseWithClaims(token, &SessionClaims{}, func(t *jwtlib.Token) (any, error) {
		return s.secret, nil
	},
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithIssuer(sessionIssuer),
		jwtlib.WithTimeFunc(s.now),
	)
	if err != nil {
		return 0, errors.Join(ErrInvalidSession, err)
	}
	claims, ok := parsed.Claims.(*SessionClaims)
	if !ok || !parsed.Valid {
		return 0, ErrInvalidSession
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidSession
	}
	return userID, nil
}
