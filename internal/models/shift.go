package models

import "time"

// Shift is the window during which staff of one business may sign in.
// At most one shift per business is active at a time.
type Shift struct {
	ID               string     `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID       string     `gorm:"type:uuid;not null;index" json:"business_id"`
	AdminID          string     `gorm:"type:uuid;not null" json:"admin_id"`
	Name             string     `gorm:"size:100;not null" json:"name"`
	StartedAt        time.Time  `gorm:"not null" json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	IsActive         bool       `gorm:"not null;default:true" json:"is_active"`
	MaxStaffSessions int        `gorm:"not null;default:50" json:"max_staff_sessions"`
	AutoEndTime      *time.Time `json:"auto_end_time,omitempty"`
	CreatedAt        time.Time  `gorm:"not null" json:"created_at"`
}

func (Shift) TableName() string {
	return "shifts"
}

// IsDueForAutoEnd reports whether the shift's auto-end time has been reached.
func (s *Shift) IsDueForAutoEnd(now time.Time) bool {
	return s.IsActive && s.AutoEndTime != nil && !now.Before(*s.AutoEndTime)
}
