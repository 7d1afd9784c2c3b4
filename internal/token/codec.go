// Package token issues and validates the signed, stateless tokens used for
// sessions, email verification, password reset, two-factor confirmation and
// invitations.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dukerupert/preppr/internal/apperr"
)

// Sub-kinds of an invalid token. They are wrapped in an apperr InvalidToken
// error, so use errors.Is to tell them apart.
var (
	ErrMalformed    = errors.New("token is malformed")
	ErrSignature    = errors.New("token signature is invalid")
	ErrExpired      = errors.New("token is expired")
	ErrIssuer       = errors.New("token issuer is invalid")
	ErrWrongKind    = errors.New("token is of the wrong kind")
	ErrMissingClaim = errors.New("token is missing a required claim")
)

const minSecretLen = 32

// Config configures a Codec.
type Config struct {
	Secret []byte
	Issuer string
	TTLs   TTLs
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Codec signs and verifies tokens with a single HMAC secret.
type Codec struct {
	secret []byte
	issuer string
	ttls   TTLs
	now    func() time.Time
}

func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) < minSecretLen {
		return nil, fmt.Errorf("token: secret must be at least %d bytes", minSecretLen)
	}
	if cfg.Issuer == "" {
		return nil, errors.New("token: issuer is required")
	}
	ttls := DefaultTTLs()
	for k, d := range cfg.TTLs {
		ttls[k] = d
	}
	if err := ttls.validate(); err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &Codec{secret: secret, issuer: cfg.Issuer, ttls: ttls, now: now}, nil
}

// TTL returns the validity window of a kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	return c.ttls[kind]
}

// Issue stamps the registered claims for kind and signs the token. The
// caller supplies the subject and the kind-specific claims.
func (c *Codec) Issue(kind Kind, claims Claims) (string, error) {
	if _, ok := c.ttls[kind]; !ok {
		return "", fmt.Errorf("token: unknown kind %q", kind)
	}
	if err := requireClaims(kind, &claims); err != nil {
		return "", fmt.Errorf("token: issue %s: %w", kind, err)
	}

	now := c.now()
	claims.Kind = kind
	claims.Issuer = c.issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(c.ttls[kind]))
	claims.ID = uuid.NewString()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: sign %s: %w", kind, err)
	}
	return signed, nil
}

// Validate checks signature, issuer, expiry, kind and the kind's required
// claims, in that order, before returning any claim.
func (c *Codec) Validate(kind Kind, tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, apperr.InvalidToken("token is required", ErrMalformed)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, classify(err)
	}

	if claims.Kind != kind {
		return nil, apperr.InvalidToken("invalid token", fmt.Errorf("%w: got %q, want %q", ErrWrongKind, claims.Kind, kind))
	}
	if err := requireClaims(kind, claims); err != nil {
		return nil, apperr.InvalidToken("invalid token", err)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return apperr.InvalidToken("token has expired", ErrExpired)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return apperr.InvalidToken("invalid token", ErrSignature)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return apperr.InvalidToken("invalid token", ErrIssuer)
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return apperr.InvalidToken("invalid token", fmt.Errorf("%w: exp", ErrMissingClaim))
	default:
		return apperr.InvalidToken("invalid token", fmt.Errorf("%w: %v", ErrMalformed, err))
	}
}
