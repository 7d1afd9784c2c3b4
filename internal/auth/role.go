package auth

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles. The zero value is RoleNormal.
type Role uint8

const (
	RoleNormal Role = iota
	RoleAdmin
	RoleSuperAdmin
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "ADMIN"
	case RoleSuperAdmin:
		return "SUPERADMIN"
	default:
		return "NORMAL"
	}
}

// ParseRole accepts the stored/claimed spelling of a role, case-insensitive.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NORMAL":
		return RoleNormal, nil
	case "ADMIN":
		return RoleAdmin, nil
	case "SUPERADMIN":
		return RoleSuperAdmin, nil
	default:
		return RoleNormal, fmt.Errorf("unknown role %q", s)
	}
}

// Privileged reports whether the role signs in through the two-factor flow.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Capability names an action gated by role.
type Capability uint8

const (
	// CapManageMembership covers household and emergency-group workflows.
	CapManageMembership Capability = iota
	CapInviteAdmin
	CapRemoveAdmin
)

func (c Capability) String() string {
	switch c {
	case CapManageMembership:
		return "manage_membership"
	case CapInviteAdmin:
		return "invite_admin"
	case CapRemoveAdmin:
		return "remove_admin"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

// Can is the single place role-to-capability policy is decided.
func (r Role) Can(c Capability) bool {
	switch c {
	case CapManageMembership:
		return true
	case CapInviteAdmin, CapRemoveAdmin:
		return r == RoleSuperAdmin
	default:
		return false
	}
}
