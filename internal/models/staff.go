package models

import (
	"slices"
	"time"

	"github.com/lib/pq"
)

type StaffRole string

const (
	RoleManager   StaffRole = "manager"
	RoleServer    StaffRole = "server"
	RoleBartender StaffRole = "bartender"
	RoleHost      StaffRole = "host"
	RoleKitchen   StaffRole = "kitchen"
)

// Permission names checked by AuthorizeStaffAction.
const (
	PermOrdersCreate       = "orders:create"
	PermOrdersVoid         = "orders:void"
	PermPaymentsProcess    = "payments:process"
	PermPaymentsRefund     = "payments:refund"
	PermReservationsManage = "reservations:manage"
	PermTablesManage       = "tables:manage"
	PermCashDrawer         = "cash_drawer:open"
	PermReportsView        = "reports:view"
	PermInventoryManage    = "inventory:manage"
)

var allPermissions = []string{
	PermOrdersCreate, PermOrdersVoid, PermPaymentsProcess, PermPaymentsRefund,
	PermReservationsManage, PermTablesManage, PermCashDrawer, PermReportsView,
	PermInventoryManage,
}

func IsKnownPermission(permission string) bool {
	return slices.Contains(allPermissions, permission)
}

// rolePermissions are granted on top of a staff member's explicit permissions.
var rolePermissions = map[StaffRole][]string{
	RoleServer:    {PermOrdersCreate, PermPaymentsProcess, PermTablesManage},
	RoleBartender: {PermOrdersCreate, PermPaymentsProcess, PermCashDrawer},
	RoleHost:      {PermReservationsManage, PermTablesManage},
	RoleKitchen:   {PermInventoryManage},
}

func (r StaffRole) IsValid() bool {
	switch r {
	case RoleManager, RoleServer, RoleBartender, RoleHost, RoleKitchen:
		return true
	}
	return false
}

// Staff is a business employee who signs in with a PIN.
type Staff struct {
	ID                  string         `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID          string         `gorm:"type:uuid;not null;index" json:"business_id"`
	FirstName           string         `gorm:"size:100;not null" json:"first_name"`
	LastName            string         `gorm:"size:100;not null" json:"last_name"`
	EmailEncrypted      *string        `gorm:"type:text" json:"-"`
	PhoneEncrypted      *string        `gorm:"type:text" json:"-"`
	PINHash             string         `gorm:"type:text;not null" json:"-"`
	Role                StaffRole      `gorm:"size:32;not null" json:"role"`
	Permissions         pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"permissions"`
	IsActive            bool           `gorm:"not null;default:true" json:"is_active"`
	FailedLoginAttempts int            `gorm:"not null;default:0" json:"failed_login_attempts"`
	LockedUntil         *time.Time     `json:"locked_until,omitempty"`
	LastLogin           *time.Time     `json:"last_login,omitempty"`
	LoginCount          int            `gorm:"not null;default:0" json:"login_count"`
	CreatedAt           time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null" json:"updated_at"`
}

func (Staff) TableName() string {
	return "staff"
}

// IsLocked reports whether the account is inside its lockout window at now.
func (s *Staff) IsLocked(now time.Time) bool {
	return s.LockedUntil != nil && now.Before(*s.LockedUntil)
}

// HasPermission checks explicit permissions first, then the role defaults.
// Managers hold every permission.
func (s *Staff) HasPermission(permission string) bool {
	if s.Role == RoleManager {
		return true
	}
	if slices.Contains(s.Permissions, permission) {
		return true
	}
	return slices.Contains(rolePermissions[s.Role], permission)
}

func (s *Staff) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}
