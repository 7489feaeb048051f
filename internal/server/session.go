package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"mandi/internal/util"
	"mandi/pkg/domain"
)

const (
	sessionIssuer   = "mandi"
	sessionAudience = "mandi-api"
	sessionLeeway   = 30 * time.Second
)

type roleClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SessionSigner issues and validates HS256 tokens carrying the caller's
// role. A single-binary deployment has no key distribution problem, so a
// shared HMAC secret is enough.
type SessionSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewSessionSigner builds a signer from the shared secret.
func NewSessionSigner(secret string, ttl time.Duration) (*SessionSigner, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("session secret required")
	}
	if ttl <= 0 {
		return nil, errors.New("session ttl must be positive")
	}
	return &SessionSigner{secret: []byte(secret), ttl: ttl}, nil
}

// Issue creates a signed token for the role.
func (s *SessionSigner) Issue(role domain.Role) (string, error) {
	if !role.Valid() {
		return "", fmt.Errorf("invalid role %q", role)
	}
	now := time.Now().UTC()
	claims := roleClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(role),
			Issuer:    sessionIssuer,
			Audience:  jwt.ClaimStrings{sessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        util.NewID(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify validates a token and returns the role it carries.
func (s *SessionSigner) Verify(token string) (domain.Role, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("token required")
	}
	claims := roleClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithAudience(sessionAudience),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(sessionLeeway),
	)
	if err != nil || !parsed.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return "", err
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return "", errors.New("token role invalid")
	}
	return role, nil
}
