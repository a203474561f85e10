// Package repository defines the persistence contracts used by the auth services.
package repository

import (
	"context"
	"errors"
	"time"

	"hybrid-auth-service/internal/models"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record conflicts with existing data")
	// ErrLocked is returned by RecordFailedLogin when the account is inside its lockout window.
	ErrLocked = errors.New("account is locked")
	// ErrLockHeld is returned by distributed locks already held by another caller.
	ErrLockHeld = errors.New("lock is held by another caller")
)

type contextKey string

// TxContextKey carries the active transaction handle through a context.
const TxContextKey contextKey = "tx"

// Transactor runs fn inside one transaction. Repositories called with the
// context handed to fn take part in that transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type AdminSessionRepository interface {
	Create(ctx context.Context, session *models.AdminSession) error
	// GetActiveByToken returns the session with this token only while it is flagged active.
	GetActiveByToken(ctx context.Context, token string) (*models.AdminSession, error)
	// Deactivate flips an active session off and reports whether this call did the flip.
	Deactivate(ctx context.Context, id string) (bool, error)
	Touch(ctx context.Context, id string, at time.Time) error
	ListActiveByBusiness(ctx context.Context, businessID string, now time.Time) ([]*models.AdminSession, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type ShiftRepository interface {
	GetActiveByBusiness(ctx context.Context, businessID string) (*models.Shift, error)
	// LockActiveByBusiness reads the active shift with a row lock held until the
	// surrounding transaction ends.
	LockActiveByBusiness(ctx context.Context, businessID string) (*models.Shift, error)
	// DeactivateActiveByBusiness ends every active shift of the business and returns their ids.
	DeactivateActiveByBusiness(ctx context.Context, businessID string, endedAt time.Time) ([]string, error)
	Create(ctx context.Context, shift *models.Shift) error
	// EndOwned deactivates the shift when it belongs to adminID.
	EndOwned(ctx context.Context, shiftID, adminID string, endedAt time.Time) (*models.Shift, error)
	ListDueForAutoEnd(ctx context.Context, now time.Time) ([]*models.Shift, error)
}

type StaffRepository interface {
	Create(ctx context.Context, staff *models.Staff) error
	// GetActive returns an active staff member of the business.
	GetActive(ctx context.Context, businessID, staffID string) (*models.Staff, error)
	GetByID(ctx context.Context, staffID string) (*models.Staff, error)
	// RecordFailedLogin atomically increments the failure counter and sets
	// locked_until to lockUntil once the counter reaches threshold. It returns
	// ErrLocked without touching the row if the account is locked at now.
	RecordFailedLogin(ctx context.Context, staffID string, now time.Time, threshold int, lockUntil time.Time) (*models.Staff, error)
	// RecordSuccessfulLogin clears the counter and lock, stamps last login and bumps the login count.
	RecordSuccessfulLogin(ctx context.Context, staffID string, at time.Time) error
	UpdatePINHash(ctx context.Context, staffID, pinHash string, at time.Time) error
}

// AdminUserRepository holds admin credentials. The failure counter follows
// the same contract as StaffRepository.RecordFailedLogin.
type AdminUserRepository interface {
	Create(ctx context.Context, admin *models.AdminUser) error
	GetActive(ctx context.Context, businessID, adminID string) (*models.AdminUser, error)
	RecordFailedLogin(ctx context.Context, adminID string, now time.Time, threshold int, lockUntil time.Time) (*models.AdminUser, error)
	RecordSuccessfulLogin(ctx context.Context, adminID string, at time.Time) error
	UpdatePINHash(ctx context.Context, adminID, pinHash string, at time.Time) error
}

type StaffSessionRepository interface {
	Create(ctx context.Context, session *models.StaffSession) error
	GetActiveByToken(ctx context.Context, token string) (*models.StaffSession, error)
	// Close flips an active session off, stamping signed_out_at, and reports whether this call did the flip.
	Close(ctx context.Context, id string, at time.Time) (bool, error)
	Touch(ctx context.Context, id string, at time.Time) error
	// CountActiveByShift counts sessions that are active and unexpired at now.
	CountActiveByShift(ctx context.Context, shiftID string, now time.Time) (int64, error)
	CloseByShifts(ctx context.Context, shiftIDs []string, at time.Time) (int64, error)
	ListActiveByBusiness(ctx context.Context, businessID string, now time.Time) ([]*models.StaffSession, error)
	CloseExpired(ctx context.Context, now time.Time) (int64, error)
}

// AuditFilter narrows audit log listings. Zero values mean "no constraint".
type AuditFilter struct {
	Action   string
	Severity models.Severity
	StaffID  string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

type AuditLogRepository interface {
	Append(ctx context.Context, entry *models.AuditLog) error
	// ListByBusiness returns entries newest first.
	ListByBusiness(ctx context.Context, businessID string, filter AuditFilter) ([]*models.AuditLog, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store bundles the repositories of one backend.
type Store struct {
	Transactor    Transactor
	AdminUsers    AdminUserRepository
	AdminSessions AdminSessionRepository
	Shifts        ShiftRepository
	Staff         StaffRepository
	StaffSessions StaffSessionRepository
	AuditLogs     AuditLogRepository
}
