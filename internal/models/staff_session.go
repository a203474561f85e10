package models

import "time"

// StaffSession is one signed-in staff instance, bound to the shift that was
// active when it was created.
type StaffSession struct {
	ID              string     `gorm:"type:uuid;primaryKey" json:"id"`
	StaffID         string     `gorm:"type:uuid;not null;index" json:"staff_id"`
	BusinessID      string     `gorm:"type:uuid;not null;index" json:"business_id"`
	ShiftID         string     `gorm:"type:uuid;not null;index:idx_staff_sessions_shift_active,priority:1" json:"shift_id"`
	SessionToken    string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	SignedInBy      string     `gorm:"type:uuid;not null" json:"signed_in_by"`
	SignedInAt      time.Time  `gorm:"not null" json:"signed_in_at"`
	SignedOutAt     *time.Time `json:"signed_out_at,omitempty"`
	IsActive        bool       `gorm:"not null;default:true;index:idx_staff_sessions_shift_active,priority:2" json:"is_active"`
	ExpiresAt       time.Time  `gorm:"not null;index" json:"expires_at"`
	PINHashSnapshot string     `gorm:"type:text;not null" json:"-"`
	LastActivity    time.Time  `gorm:"not null" json:"last_activity"`
	IPAddress       *string    `gorm:"size:64" json:"ip_address,omitempty"`
	DeviceInfo      *string    `gorm:"type:text" json:"device_info,omitempty"`

	// Staff is populated by reads that need the role/permission set.
	Staff *Staff `gorm:"-" json:"staff,omitempty"`
}

func (StaffSession) TableName() string {
	return "staff_sessions"
}

func (s *StaffSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
