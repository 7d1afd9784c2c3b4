// Package password hashes and verifies account passwords with bcrypt.
package password

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	MinLength = 8
	// MaxLength is bcrypt's input limit.
	MaxLength = 72
)

var (
	ErrTooShort = fmt.Errorf("password must be at least %d characters", MinLength)
	ErrTooLong  = fmt.Errorf("password must be at most %d bytes", MaxLength)
)

type Hasher struct {
	cost int
	// dummy is compared against when the account does not exist so that
	// unknown emails cost the same as wrong passwords.
	dummy []byte
}

type Option func(*Hasher)

// WithCost sets the bcrypt work factor. Out-of-range values are ignored.
func WithCost(cost int) Option {
	return func(h *Hasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

func NewHasher(opts ...Option) (*Hasher, error) {
	h := &Hasher{cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(h)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equaliser"), h.cost)
	if err != nil {
		return nil, fmt.Errorf("password: dummy hash: %w", err)
	}
	h.dummy = dummy
	return h, nil
}

// Validate applies the length policy without hashing.
func Validate(plain string) error {
	if len(plain) < MinLength {
		return ErrTooShort
	}
	if len(plain) > MaxLength {
		return ErrTooLong
	}
	return nil
}

// Hash returns a salted bcrypt hash of plain.
func (h *Hasher) Hash(plain string) (string, error) {
	if err := Validate(plain); err != nil {
		return "", err
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("password: hash: %w", err)
	}
	return string(out), nil
}

// Verify reports whether plain matches hash.
func (h *Hasher) Verify(plain, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	return err == nil
}

// VerifyMissing burns the same work as Verify for an account that does not
// exist. It always reports false.
func (h *Hasher) VerifyMissing(plain string) bool {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(plain))
	return false
}

// Fingerprint is a short digest of a stored hash. Reset tokens carry it so
// they stop validating once the password changes.
func Fingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}

// IsPolicyError reports whether err came from the length policy.
func IsPolicyError(err error) bool {
	return errors.Is(err, ErrTooShort) || errors.Is(err, ErrTooLong)
}
