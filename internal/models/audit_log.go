package models

import (
	"encoding/json"
	"time"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Audit action constants
const (
	AuditActionAdminSessionCreated     = "admin_session_created"
	AuditActionAdminSessionInvalidated = "admin_session_invalidated"
	AuditActionAdminPINFailed          = "admin_pin_failed"
	AuditActionAdminLockedOut          = "admin_locked_out"
	AuditActionAdminLockedAttempt      = "admin_locked_attempt"
	AuditActionAdminCreated            = "admin_created"
	AuditActionShiftStarted            = "shift_started"
	AuditActionShiftEnded              = "shift_ended"
	AuditActionShiftAutoEnded          = "shift_auto_ended"
	AuditActionStaffAuthenticated      = "staff_authenticated"
	AuditActionStaffPINFailed          = "staff_pin_failed"
	AuditActionStaffLockedOut          = "staff_locked_out"
	AuditActionStaffLockedAttempt      = "staff_locked_attempt"
	AuditActionStaffSignedOut          = "staff_signed_out"
	AuditActionStaffCreated            = "staff_created"
	AuditActionPermissionViolation     = "permission_violation"
)

// AuditLog is an append-only security event. Rows are only ever removed by
// the retention purge.
type AuditLog struct {
	ID         string          `gorm:"type:uuid;primaryKey" json:"id"`
	BusinessID string          `gorm:"type:uuid;not null;index:idx_audit_business_created,priority:1" json:"business_id"`
	AdminID    *string         `gorm:"type:uuid" json:"admin_id,omitempty"`
	StaffID    *string         `gorm:"type:uuid" json:"staff_id,omitempty"`
	Action     string          `gorm:"size:64;not null;index" json:"action"`
	Severity   Severity        `gorm:"size:16;not null" json:"severity"`
	Details    json.RawMessage `gorm:"type:jsonb" json:"details,omitempty"`
	IPAddress  *string         `gorm:"size:64" json:"ip_address,omitempty"`
	CreatedAt  time.Time       `gorm:"not null;index:idx_audit_business_created,priority:2" json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// IsSecurityEvent reports whether the action is mirrored to the security timeline.
func (a *AuditLog) IsSecurityEvent() bool {
	switch a.Action {
	case AuditActionAdminPINFailed,
		AuditActionAdminLockedOut,
		AuditActionAdminLockedAttempt,
		AuditActionStaffPINFailed,
		AuditActionStaffLockedOut,
		AuditActionStaffLockedAttempt,
		AuditActionPermissionViolation:
		return true
	}
	return a.Severity == SeverityHigh || a.Severity == SeverityCritical
}
