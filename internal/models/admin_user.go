package models

import (
	"time"
)

type AdminRole string

const (
	AdminRoleOwner   AdminRole = "owner"
	AdminRoleManager AdminRole = "manager"
)

func (r AdminRole) IsValid() bool {
	return r == AdminRoleOwner || r == AdminRoleManager
}

// AdminUser is a business administrator. Admin sessions are only issued after
// the admin's PIN checks out against PINHash.
type AdminUser struct {
	ID                  string     `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID          string     `gorm:"type:uuid;not null;index" json:"business_id"`
	Name                string     `gorm:"size:100;not null" json:"name"`
	PINHash             string     `gorm:"type:text;not null" json:"-"`
	Role                AdminRole  `gorm:"size:32;not null" json:"role"`
	IsActive            bool       `gorm:"not null;default:true" json:"is_active"`
	FailedLoginAttempts int        `gorm:"not null;default:0" json:"failed_login_attempts"`
	LockedUntil         *time.Time `json:"locked_until,omitempty"`
	LastLogin           *time.Time `json:"last_login,omitempty"`
	LoginCount          int        `gorm:"not null;default:0" json:"login_count"`
	CreatedBy           *string    `gorm:"type:uuid" json:"created_by,omitempty"`
	CreatedAt           time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time  `gorm:"not null" json:"updated_at"`
}

func (AdminUser) TableName() string {
	return "admin_users"
}

func (a *AdminUser) IsLocked(now time.Time) bool {
	return a.LockedUntil != nil && now.Before(*a.LockedUntil)
}
