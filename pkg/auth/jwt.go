// Package auth mints and verifies the HS256 bearer tokens that identify
// players. The token subject is the player id.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors.
var (
	ErrSecretEmpty  = errors.New("jwt secret is empty")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
	ErrNoSubject    = errors.New("token has no subject")
)

// DefaultTTL is the lifetime of minted tokens.
const DefaultTTL = 24 * time.Hour

// BearerPrefix precedes the token in the Authorization header.
const BearerPrefix = "Bearer "

// Manager signs and validates tokens with one shared secret.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithIssuer sets the iss claim written and required.
func WithIssuer(iss string) Option {
	return func(m *Manager) { m.issuer = iss }
}

// WithTTL sets the token lifetime.
func WithTTL(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager for secret.
func NewManager(secret string, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, ErrSecretEmpty
	}
	m := &Manager{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Mint issues a token whose subject is playerID.
func (m *Manager) Mint(playerID string) (string, error) {
	if playerID == "" {
		return "", ErrNoSubject
	}
	now := m.now()
	claims := jwt.RegisteredClaims{
		Subject:   playerID,
		Issuer:    m.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify validates token and returns its subject. A "Bearer " prefix is
// accepted.
func (m *Manager) Verify(token string) (string, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, BearerPrefix))
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case err != nil:
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	case claims.Subject == "":
		return "", ErrNoSubject
	}
	return claims.Subject, nil
}
