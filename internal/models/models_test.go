package models

import (
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestStaff_HasPermission(t *testing.T) {
	tests := []struct {
		name       string
		staff      Staff
		permission string
		want       bool
	}{
		{"manager has everything", Staff{Role: RoleManager}, PermPaymentsRefund, true},
		{"role default", Staff{Role: RoleHost}, PermReservationsManage, true},
		{"outside role", Staff{Role: RoleHost}, PermCashDrawer, false},
		{"explicit grant", Staff{Role: RoleKitchen, Permissions: pq.StringArray{PermReportsView}}, PermReportsView, true},
		{"unknown role with nothing", Staff{Role: "dishwasher"}, PermOrdersCreate, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.staff.HasPermission(tt.permission))
		})
	}
}

func TestStaff_IsLocked(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(time.Minute)
	past := now.Add(-time.Minute)

	assert.False(t, (&Staff{}).IsLocked(now))
	assert.True(t, (&Staff{LockedUntil: &future}).IsLocked(now))
	assert.False(t, (&Staff{LockedUntil: &past}).IsLocked(now))
	assert.False(t, (&Staff{LockedUntil: &now}).IsLocked(now))
}

func TestSessions_IsExpiredAtBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	admin := &AdminSession{ExpiresAt: now}
	assert.True(t, admin.IsExpired(now))
	assert.False(t, admin.IsExpired(now.Add(-time.Nanosecond)))

	staff := &StaffSession{ExpiresAt: now.Add(time.Hour)}
	assert.False(t, staff.IsExpired(now))
	assert.True(t, staff.IsExpired(now.Add(2*time.Hour)))
}

func TestShift_IsDueForAutoEnd(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(-time.Second)

	assert.False(t, (&Shift{IsActive: true}).IsDueForAutoEnd(now))
	assert.True(t, (&Shift{IsActive: true, AutoEndTime: &due}).IsDueForAutoEnd(now))
	assert.False(t, (&Shift{IsActive: false, AutoEndTime: &due}).IsDueForAutoEnd(now))
}

func TestStaffRole_IsValid(t *testing.T) {
	assert.True(t, RoleBartender.IsValid())
	assert.False(t, StaffRole("owner").IsValid())
}

func TestIsKnownPermission(t *testing.T) {
	assert.True(t, IsKnownPermission(PermCashDrawer))
	assert.False(t, IsKnownPermission("orders:delete_everything"))
}

func TestStaff_FullName(t *testing.T) {
	assert.Equal(t, "Sam Rivera", (&Staff{FirstName: "Sam", LastName: "Rivera"}).FullName())
	assert.Equal(t, "Sam", (&Staff{FirstName: "Sam"}).FullName())
}

func TestAdminUser_LockAndRole(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	until := now.Add(time.Minute)

	assert.True(t, (&AdminUser{LockedUntil: &until}).IsLocked(now))
	assert.False(t, (&AdminUser{LockedUntil: &until}).IsLocked(until))
	assert.True(t, AdminRoleOwner.IsValid())
	assert.False(t, AdminRole("root").IsValid())

	assert.True(t, (&AuditLog{Action: AuditActionAdminPINFailed, Severity: SeverityHigh}).IsSecurityEvent())
	assert.True(t, (&AuditLog{Action: AuditActionAdminLockedAttempt}).IsSecurityEvent())
}
