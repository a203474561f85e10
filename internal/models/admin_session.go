package models

import "time"

// AdminSession is an authenticated business owner/admin, scoped to one business
// and an action context (RequiredFor).
type AdminSession struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID   string    `gorm:"type:uuid;not null;index:idx_admin_sessions_business_active,priority:1" json:"business_id"`
	AdminID      string    `gorm:"type:uuid;not null" json:"admin_id"`
	SessionToken string    `gorm:"size:64;not null;uniqueIndex" json:"-"`
	RequiredFor  string    `gorm:"size:100;not null" json:"required_for"`
	IsActive     bool      `gorm:"not null;default:true;index:idx_admin_sessions_business_active,priority:2" json:"is_active"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	ExpiresAt    time.Time `gorm:"not null;index" json:"expires_at"`
	LastActivity time.Time `gorm:"not null" json:"last_activity"`
	IPAddress    *string   `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent    *string   `gorm:"type:text" json:"user_agent,omitempty"`
}

func (AdminSession) TableName() string {
	return "admin_sessions"
}

// IsExpired reports whether the session is past its expiry at now.
func (s *AdminSession) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}
