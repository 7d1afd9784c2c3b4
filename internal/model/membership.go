package model

import "time"

// JoinHouseholdRequest is pending for as long as the row exists.
type JoinHouseholdRequest struct {
	ID          int64     `json:"id"`
	HouseholdID int64     `json:"household_id"`
	UserID      int64     `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type HouseholdInvitation struct {
	ID              int64     `json:"id"`
	HouseholdID     int64     `json:"household_id"`
	InvitedByUserID *int64    `json:"invited_by_user_id"`
	InvitedEmail    string    `json:"invited_email"`
	InvitationToken string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// EmergencyGroupInvitation means household HouseholdID is invited to GroupID.
type EmergencyGroupInvitation struct {
	ID          int64     `json:"id"`
	GroupID     int64     `json:"group_id"`
	HouseholdID int64     `json:"household_id"`
	CreatedAt   time.Time `json:"created_at"`
}
