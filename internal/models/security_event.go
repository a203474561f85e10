package models

import "time"

// SecurityEvent is a row of the per-business security timeline kept in Scylla,
// partitioned by (event_bucket, event_date).
type SecurityEvent struct {
	EventBucket int       `db:"event_bucket" json:"event_bucket"`
	EventDate   string    `db:"event_date" json:"event_date"`
	EventTime   time.Time `db:"event_time" json:"event_time"`
	EventID     string    `db:"event_id" json:"event_id"`
	BusinessID  string    `db:"business_id" json:"business_id"`
	EventType   string    `db:"event_type" json:"event_type"`
	Severity    string    `db:"severity" json:"severity"`
	StaffID     string    `db:"staff_id" json:"staff_id,omitempty"`
	AdminID     string    `db:"admin_id" json:"admin_id,omitempty"`
	IPAddress   string    `db:"ip_address" json:"ip_address,omitempty"`
	Details     string    `db:"details" json:"details,omitempty"`
}
