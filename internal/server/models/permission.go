package models

import "time"

// Permission grants a sector to a user, or to everybody when UserID is nil.
type Permission struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	Sector    string    `json:"sector"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PermissionHistory struct {
	HistoryID    int64     `json:"history_id"`
	PermissionID int64     `json:"permission_id"`
	UserID       *int64    `json:"user_id"`
	Sector       string    `json:"sector"`
	ChangedBy    int64     `json:"changed_by"`
	ChangedAt    time.Time `json:"changed_at"`
	Operation    Operation `json:"operation_type"`
}
