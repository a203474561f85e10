// Package memory is an in-process implementation of the repository contracts,
// used for local development and tests. Every operation is serialised, and a
// transaction holds the store for its whole duration and is rolled back from a
// snapshot when its function fails.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

type txKey struct{}

type DB struct {
	mu sync.Mutex

	adminUsers    map[string]*models.AdminUser
	adminSessions map[string]*models.AdminSession
	shifts        map[string]*models.Shift
	staff         map[string]*models.Staff
	staffSessions map[string]*models.StaffSession
	auditLogs     []*models.AuditLog
}

func NewDB() *DB {
	return &DB{
		adminUsers:    make(map[string]*models.AdminUser),
		adminSessions: make(map[string]*models.AdminSession),
		shifts:        make(map[string]*models.Shift),
		staff:         make(map[string]*models.Staff),
		staffSessions: make(map[string]*models.StaffSession),
	}
}

// NewStore wires every repository to one shared in-memory database.
func NewStore() *repository.Store {
	return NewStoreFromDB(NewDB())
}

func NewStoreFromDB(db *DB) *repository.Store {
	return &repository.Store{
		Transactor:    db,
		AdminUsers:    &adminUserRepo{db: db},
		AdminSessions: &adminSessionRepo{db: db},
		Shifts:        &shiftRepo{db: db},
		Staff:         &staffRepo{db: db},
		StaffSessions: &staffSessionRepo{db: db},
		AuditLogs:     &auditLogRepo{db: db},
	}
}

func (db *DB) inTx(ctx context.Context) bool {
	owner, _ := ctx.Value(txKey{}).(*DB)
	return owner == db
}

// run executes fn holding the store lock unless ctx already belongs to a transaction on db.
func (db *DB) run(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if db.inTx(ctx) {
		return fn()
	}
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn()
}

func (db *DB) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snap := db.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		db.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	adminUsers    map[string]*models.AdminUser
	adminSessions map[string]*models.AdminSession
	shifts        map[string]*models.Shift
	staff         map[string]*models.Staff
	staffSessions map[string]*models.StaffSession
	auditLogs     []*models.AuditLog
}

// snapshot copies the maps only. Rows are never mutated in place, every write
// stores a fresh copy, so the old pointers stay valid.
func (db *DB) snapshot() snapshot {
	return snapshot{
		adminUsers:    maps.Clone(db.adminUsers),
		adminSessions: maps.Clone(db.adminSessions),
		shifts:        maps.Clone(db.shifts),
		staff:         maps.Clone(db.staff),
		staffSessions: maps.Clone(db.staffSessions),
		auditLogs:     slices.Clone(db.auditLogs),
	}
}

func (db *DB) restore(s snapshot) {
	db.adminUsers = s.adminUsers
	db.adminSessions = s.adminSessions
	db.shifts = s.shifts
	db.staff = s.staff
	db.staffSessions = s.staffSessions
	db.auditLogs = s.auditLogs
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneAdminUser(a *models.AdminUser) *models.AdminUser {
	c := *a
	c.LockedUntil = clonePtr(a.LockedUntil)
	c.LastLogin = clonePtr(a.LastLogin)
	c.CreatedBy = clonePtr(a.CreatedBy)
	return &c
}

func cloneAdminSession(s *models.AdminSession) *models.AdminSession {
	c := *s
	c.IPAddress = clonePtr(s.IPAddress)
	c.UserAgent = clonePtr(s.UserAgent)
	return &c
}

func cloneShift(s *models.Shift) *models.Shift {
	c := *s
	c.EndedAt = clonePtr(s.EndedAt)
	c.AutoEndTime = clonePtr(s.AutoEndTime)
	return &c
}

func cloneStaff(s *models.Staff) *models.Staff {
	c := *s
	c.EmailEncrypted = clonePtr(s.EmailEncrypted)
	c.PhoneEncrypted = clonePtr(s.PhoneEncrypted)
	c.Permissions = slices.Clone(s.Permissions)
	c.LockedUntil = clonePtr(s.LockedUntil)
	c.LastLogin = clonePtr(s.LastLogin)
	return &c
}

func cloneStaffSession(s *models.StaffSession) *models.StaffSession {
	c := *s
	c.SignedOutAt = clonePtr(s.SignedOutAt)
	c.IPAddress = clonePtr(s.IPAddress)
	c.DeviceInfo = clonePtr(s.DeviceInfo)
	c.Staff = nil
	return &c
}

func cloneAuditLog(a *models.AuditLog) *models.AuditLog {
	c := *a
	c.AdminID = clonePtr(a.AdminID)
	c.StaffID = clonePtr(a.StaffID)
	c.IPAddress = clonePtr(a.IPAddress)
	c.Details = slices.Clone(a.Details)
	return &c
}
