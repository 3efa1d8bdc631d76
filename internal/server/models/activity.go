package models

import "time"

// ActivityEntry is one request recorded by the activity log.
type ActivityEntry struct {
	ID         int64     `json:"id"`
	UserID     *int64    `json:"user_id"`
	Route      string    `json:"route"`
	Method     string    `json:"method"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent"`
	StatusCode int       `json:"status_code"`
	Message    string    `json:"message"`
	ActionTime time.Time `json:"action_time"`
}
