package token

import (
	"fmt"
	"time"
)

// Kind names a class of token. Each kind has its own claim schema and
// validity window, and a token of one kind never validates as another.
type Kind string

const (
	KindAuth              Kind = "auth"
	KindEmailVerification Kind = "email_verification"
	KindPasswordReset     Kind = "password_reset"
	KindTwoFactor         Kind = "two_factor"
	KindHouseholdInvite   Kind = "household_invite"
	KindAdminInvite       Kind = "admin_invite"
)

// Kinds lists every supported kind.
var Kinds = []Kind{
	KindAuth,
	KindEmailVerification,
	KindPasswordReset,
	KindTwoFactor,
	KindHouseholdInvite,
	KindAdminInvite,
}

// TTLs holds the validity window per kind.
type TTLs map[Kind]time.Duration

// DefaultTTLs: a login session lasts a day, single-action tokens are short.
func DefaultTTLs() TTLs {
	return TTLs{
		KindAuth:              24 * time.Hour,
		KindEmailVerification: 24 * time.Hour,
		KindPasswordReset:     15 * time.Minute,
		KindTwoFactor:         5 * time.Minute,
		KindHouseholdInvite:   24 * time.Hour,
		KindAdminInvite:       24 * time.Hour,
	}
}

func (t TTLs) validate() error {
	for _, k := range Kinds {
		if t[k] <= 0 {
			return fmt.Errorf("ttl for %s must be positive", k)
		}
	}
	return nil
}
