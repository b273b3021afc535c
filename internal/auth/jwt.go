// Package auth bridges GitHub sign-in to the rest of the service.
//
// SIGN-IN FLOW:
//  1. Visitor hits /auth/github/login → redirected to GitHub
//  2. GitHub calls back /auth/github/callback with a code
//  3. Server exchanges the code for the GitHub profile and upserts the user
//  4. Server issues a signed session token in an HttpOnly cookie
//  5. Later requests carry the cookie; middleware validates it and puts the
//     session identity in the request context
//
// The session token is a JWT whose payload is the whole session identity
// (external id, name, handle, avatar), so reading the session never needs a
// store lookup:
//
//	{"sub":"583231","name":"The Octocat","handle":"octocat","image":"https://...","exp":...}
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/repo-rater/internal/model"
)

const (
	issuer = "repo-rater"

	// DefaultSessionTTL is how long a session token stays valid.
	DefaultSessionTTL = 7 * 24 * time.Hour
)

// TokenService signs and verifies session tokens with an HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService. ttl <= 0 uses DefaultSessionTTL.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of tokens from Generate. Handlers use it as cookie Max-Age.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// claims is the JWT payload. "sub" holds the GitHub external id.
type claims struct {
	Name   string `json:"name"`
	Handle string `json:"handle"`
	Image  string `json:"image"`
	jwt.RegisteredClaims
}

// Generate signs a session token for sess valid for the service TTL.
func (s *TokenService) Generate(sess *model.Session) (string, error) {
	return s.GenerateWithDuration(sess, s.ttl)
}

// GenerateWithDuration signs a session token with a custom lifetime.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(sess *model.Session, d time.Duration) (string, error) {
	if sess == nil || sess.ExternalID == "" {
		return "", errors.New("auth: session must have an external id")
	}

	now := s.now()
	c := claims{
		Name:   sess.Name,
		Handle: sess.Handle,
		Image:  sess.Image,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sess.ExternalID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies tokenStr and returns the session it carries.
//
// Rejected: bad signature, expired, wrong issuer, any algorithm but HS256
// (blocks "alg":"none" confusion), or a missing subject.
func (s *TokenService) Validate(tokenStr string) (*model.Session, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: token expired")
		}
		return nil, fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: invalid token claims")
	}
	if c.Subject == "" {
		return nil, fmt.Errorf("auth: token has no subject")
	}

	return &model.Session{
		ExternalID: c.Subject,
		Name:       c.Name,
		Handle:     c.Handle,
		Image:      c.Image,
	}, nil
}
