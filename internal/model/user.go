package model

import (
	"time"

	"github.com/dukerupert/preppr/internal/auth"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	HouseholdID  *int64    `json:"household_id"`
	Role         auth.Role `json:"-"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// InHousehold reports whether the user currently belongs to householdID.
func (u *User) InHousehold(householdID int64) bool {
	return u.HouseholdID != nil && *u.HouseholdID == householdID
}
