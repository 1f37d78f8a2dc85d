package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for tokens that are malformed, tampered with or expired.
var ErrInvalidToken = errors.New("invalid token")

// Signer produces and verifies tamper-evident tokens wrapping a single value.
// Tokens are HS256 JWTs scoped to one purpose via the audience claim.
type Signer struct {
	secret  []byte
	purpose string
	ttl     time.Duration
	now     func() time.Time
}

// NewSigner builds a Signer. A ttl of zero issues tokens that never expire.
func NewSigner(secret, purpose string, ttl time.Duration) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("signing secret not configured")
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Signer{
		secret:  []byte(secret),
		purpose: purpose,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// Sign returns a token carrying value as its subject.
func (s *Signer) Sign(value string) (string, error) {
	if value == "" {
		return "", errors.New("value is required")
	}
	now := s.now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:  value,
		Audience: jwt.ClaimStrings{s.purpose},
		IssuedAt: jwt.NewNumericDate(now),
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Unsign verifies token and returns the value it carries.
func (s *Signer) Unsign(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithAudience(s.purpose),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
