package token

import (
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dukerupert/preppr/internal/auth"
)

// Claims is the payload shared by every kind. Which of the optional fields
// must be set depends on the kind; see requireClaims.
type Claims struct {
	jwt.RegisteredClaims
	Kind                Kind   `json:"kind"`
	Role                string `json:"role,omitempty"`
	HouseholdID         int64  `json:"hid,omitempty"`
	PasswordFingerprint string `json:"pwd,omitempty"`
}

// UserID parses the subject of auth and two-factor tokens.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("subject %q is not a user id", c.Subject)
	}
	return id, nil
}

// Principal converts validated auth claims into a request principal.
func (c *Claims) Principal() (auth.Principal, error) {
	id, err := c.UserID()
	if err != nil {
		return auth.Principal{}, err
	}
	role, err := auth.ParseRole(c.Role)
	if err != nil {
		return auth.Principal{}, err
	}
	return auth.Principal{UserID: id, Role: role}, nil
}

func AuthClaims(userID int64, role auth.Role) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(userID, 10)},
		Role:             role.String(),
	}
}

func EmailVerificationClaims(email string) Claims {
	return Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: email}}
}

func PasswordResetClaims(email, fingerprint string) Claims {
	return Claims{
		RegisteredClaims:    jwt.RegisteredClaims{Subject: email},
		PasswordFingerprint: fingerprint,
	}
}

func TwoFactorClaims(userID int64) Claims {
	return Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(userID, 10)}}
}

func HouseholdInviteClaims(email string, householdID int64) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: email},
		HouseholdID:      householdID,
	}
}

func AdminInviteClaims(username string) Claims {
	return Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: username}}
}

// requireClaims checks the kind-specific schema.
func requireClaims(kind Kind, c *Claims) error {
	if c.Subject == "" {
		return fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	switch kind {
	case KindAuth:
		if c.Role == "" {
			return fmt.Errorf("%w: role", ErrMissingClaim)
		}
		if _, err := c.Principal(); err != nil {
			return fmt.Errorf("%w: %v", ErrMissingClaim, err)
		}
	case KindTwoFactor:
		if _, err := c.UserID(); err != nil {
			return fmt.Errorf("%w: %v", ErrMissingClaim, err)
		}
	case KindHouseholdInvite:
		if c.HouseholdID <= 0 {
			return fmt.Errorf("%w: hid", ErrMissingClaim)
		}
	case KindPasswordReset:
		if c.PasswordFingerprint == "" {
			return fmt.Errorf("%w: pwd", ErrMissingClaim)
		}
	case KindEmailVerification, KindAdminInvite:
	default:
		return fmt.Errorf("unknown token kind %q", kind)
	}
	return nil
}
