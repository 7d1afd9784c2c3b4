package model

import "time"

type Household struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Longitude        float64   `json:"longitude"`
	Latitude         float64   `json:"latitude"`
	EmergencyGroupID *int64    `json:"emergency_group_id"`
	CreatedAt        time.Time `json:"created_at"`
}

type EmergencyGroup struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
