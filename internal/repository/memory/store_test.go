package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

var t0 = time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

func TestShiftCreate_OneActivePerBusiness(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.Shifts.Create(ctx, &models.Shift{BusinessID: "b1", AdminID: "a", IsActive: true, StartedAt: t0}))
	err := store.Shifts.Create(ctx, &models.Shift{BusinessID: "b1", AdminID: "a", IsActive: true, StartedAt: t0})
	assert.ErrorIs(t, err, repository.ErrConflict)

	// other businesses are independent
	assert.NoError(t, store.Shifts.Create(ctx, &models.Shift{BusinessID: "b2", AdminID: "a", IsActive: true, StartedAt: t0}))
}

func TestWithinTransaction_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	shift := &models.Shift{BusinessID: "b1", AdminID: "a", IsActive: true, StartedAt: t0}
	require.NoError(t, store.Shifts.Create(ctx, shift))

	boom := errors.New("boom")
	err := store.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		ids, err := store.Shifts.DeactivateActiveByBusiness(ctx, "b1", t0)
		require.NoError(t, err)
		assert.Equal(t, []string{shift.ID}, ids)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	active, err := store.Shifts.GetActiveByBusiness(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, shift.ID, active.ID)
}

func TestWithinTransaction_NestedJoinsOuter(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	err := store.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		return store.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
			return store.Shifts.Create(ctx, &models.Shift{BusinessID: "b1", AdminID: "a", IsActive: true})
		})
	})
	require.NoError(t, err)

	_, err = store.Shifts.GetActiveByBusiness(ctx, "b1")
	assert.NoError(t, err)
}

func TestWithinTransaction_Serialises(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
				if _, err := store.Shifts.GetActiveByBusiness(ctx, "b1"); err == nil {
					return nil
				}
				return store.Shifts.Create(ctx, &models.Shift{BusinessID: "b1", AdminID: "a", IsActive: true})
			})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	ids, err := store.Shifts.DeactivateActiveByBusiness(ctx, "b1", t0)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.Equal(t, 20, created)
}

func TestRecordFailedLogin_LocksAtThreshold(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	staff := &models.Staff{BusinessID: "b1", FirstName: "Sam", IsActive: true, PINHash: "x"}
	require.NoError(t, store.Staff.Create(ctx, staff))
	lockUntil := t0.Add(15 * time.Minute)

	for i := 1; i <= 4; i++ {
		s, err := store.Staff.RecordFailedLogin(ctx, staff.ID, t0, 5, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, i, s.FailedLoginAttempts)
		assert.Nil(t, s.LockedUntil)
	}

	s, err := store.Staff.RecordFailedLogin(ctx, staff.ID, t0, 5, lockUntil)
	require.NoError(t, err)
	assert.Equal(t, 5, s.FailedLoginAttempts)
	require.NotNil(t, s.LockedUntil)
	assert.Equal(t, lockUntil, *s.LockedUntil)

	_, err = store.Staff.RecordFailedLogin(ctx, staff.ID, t0.Add(time.Minute), 5, lockUntil)
	assert.ErrorIs(t, err, repository.ErrLocked)

	got, err := store.Staff.GetByID(ctx, staff.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.FailedLoginAttempts)

	require.NoError(t, store.Staff.RecordSuccessfulLogin(ctx, staff.ID, t0.Add(time.Hour)))
	got, err = store.Staff.GetByID(ctx, staff.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginAttempts)
	assert.Nil(t, got.LockedUntil)
	assert.Equal(t, 1, got.LoginCount)
}

func TestStaffGetActive_ScopedToBusiness(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	staff := &models.Staff{BusinessID: "b1", IsActive: true}
	inactive := &models.Staff{BusinessID: "b1", IsActive: false}
	require.NoError(t, store.Staff.Create(ctx, staff))
	require.NoError(t, store.Staff.Create(ctx, inactive))

	_, err := store.Staff.GetActive(ctx, "b1", staff.ID)
	assert.NoError(t, err)
	_, err = store.Staff.GetActive(ctx, "b2", staff.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.Staff.GetActive(ctx, "b1", inactive.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAdminUsers_LockoutAndScope(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	admin := &models.AdminUser{BusinessID: "b1", Name: "Owner", PINHash: "x", Role: models.AdminRoleOwner, IsActive: true}
	require.NoError(t, store.AdminUsers.Create(ctx, admin))
	assert.ErrorIs(t, store.AdminUsers.Create(ctx, admin), repository.ErrConflict)

	_, err := store.AdminUsers.GetActive(ctx, "b2", admin.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	lockUntil := t0.Add(15 * time.Minute)
	for i := 1; i <= 3; i++ {
		a, err := store.AdminUsers.RecordFailedLogin(ctx, admin.ID, t0, 3, lockUntil)
		require.NoError(t, err)
		assert.Equal(t, i, a.FailedLoginAttempts)
	}
	_, err = store.AdminUsers.RecordFailedLogin(ctx, admin.ID, t0, 3, lockUntil)
	assert.ErrorIs(t, err, repository.ErrLocked)

	got, err := store.AdminUsers.GetActive(ctx, "b1", admin.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLocked(t0))
	assert.False(t, got.IsLocked(lockUntil))

	require.NoError(t, store.AdminUsers.RecordSuccessfulLogin(ctx, admin.ID, lockUntil))
	got, err = store.AdminUsers.GetActive(ctx, "b1", admin.ID)
	require.NoError(t, err)
	assert.Zero(t, got.FailedLoginAttempts)
	assert.Nil(t, got.LockedUntil)
	assert.Equal(t, 1, got.LoginCount)
}

func TestAdminUsers_RollBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	admin := &models.AdminUser{BusinessID: "b1", IsActive: true}

	boom := errors.New("boom")
	err := store.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, store.AdminUsers.Create(ctx, admin))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.AdminUsers.GetActive(ctx, "b1", admin.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStaffSessions_CountAndClose(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	live := &models.StaffSession{ShiftID: "s1", BusinessID: "b1", SessionToken: "t1", IsActive: true, ExpiresAt: t0.Add(time.Hour)}
	stale := &models.StaffSession{ShiftID: "s1", BusinessID: "b1", SessionToken: "t2", IsActive: true, ExpiresAt: t0.Add(-time.Minute)}
	other := &models.StaffSession{ShiftID: "s2", BusinessID: "b1", SessionToken: "t3", IsActive: true, ExpiresAt: t0.Add(time.Hour)}
	for _, s := range []*models.StaffSession{live, stale, other} {
		require.NoError(t, store.StaffSessions.Create(ctx, s))
	}

	n, err := store.StaffSessions.CountActiveByShift(ctx, "s1", t0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	closed, err := store.StaffSessions.CloseByShifts(ctx, []string{"s1"}, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, closed)

	_, err = store.StaffSessions.GetActiveByToken(ctx, "t1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	flipped, err := store.StaffSessions.Close(ctx, other.ID, t0)
	require.NoError(t, err)
	assert.True(t, flipped)
	flipped, err = store.StaffSessions.Close(ctx, other.ID, t0)
	require.NoError(t, err)
	assert.False(t, flipped)
}

func TestSessionTokens_Unique(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.AdminSessions.Create(ctx, &models.AdminSession{SessionToken: "dup", IsActive: true}))
	err := store.AdminSessions.Create(ctx, &models.AdminSession{SessionToken: "dup", IsActive: true})
	assert.ErrorIs(t, err, repository.ErrConflict)
}

func TestExpiredSweeps(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	require.NoError(t, store.AdminSessions.Create(ctx, &models.AdminSession{SessionToken: "a1", IsActive: true, ExpiresAt: t0.Add(-time.Second)}))
	require.NoError(t, store.AdminSessions.Create(ctx, &models.AdminSession{SessionToken: "a2", IsActive: true, ExpiresAt: t0.Add(time.Hour)}))
	require.NoError(t, store.StaffSessions.Create(ctx, &models.StaffSession{SessionToken: "s1", IsActive: true, ExpiresAt: t0}))

	n, err := store.AdminSessions.DeactivateExpired(ctx, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = store.StaffSessions.CloseExpired(ctx, t0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	n, err = store.StaffSessions.CloseExpired(ctx, t0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAuditLogs_ListAndPurge(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	staffID := "st1"

	entries := []*models.AuditLog{
		{BusinessID: "b1", Action: models.AuditActionShiftStarted, Severity: models.SeverityLow, CreatedAt: t0},
		{BusinessID: "b1", Action: models.AuditActionStaffPINFailed, Severity: models.SeverityMedium, StaffID: &staffID, CreatedAt: t0.Add(time.Minute)},
		{BusinessID: "b1", Action: models.AuditActionStaffLockedOut, Severity: models.SeverityHigh, StaffID: &staffID, CreatedAt: t0.Add(2 * time.Minute)},
		{BusinessID: "b2", Action: models.AuditActionShiftStarted, Severity: models.SeverityLow, CreatedAt: t0},
	}
	for _, e := range entries {
		require.NoError(t, store.AuditLogs.Append(ctx, e))
	}

	all, err := store.AuditLogs.ListByBusiness(ctx, "b1", repository.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.AuditActionStaffLockedOut, all[0].Action)

	page, err := store.AuditLogs.ListByBusiness(ctx, "b1", repository.AuditFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, models.AuditActionStaffPINFailed, page[0].Action)

	bySeverity, err := store.AuditLogs.ListByBusiness(ctx, "b1", repository.AuditFilter{Severity: models.SeverityHigh})
	require.NoError(t, err)
	assert.Len(t, bySeverity, 1)

	byStaff, err := store.AuditLogs.ListByBusiness(ctx, "b1", repository.AuditFilter{StaffID: staffID})
	require.NoError(t, err)
	assert.Len(t, byStaff, 2)

	purged, err := store.AuditLogs.DeleteOlderThan(ctx, t0.Add(30*time.Second))
	require.NoError(t, err)
	assert.EqualValues(t, 2, purged)

	rest, err := store.AuditLogs.ListByBusiness(ctx, "b1", repository.AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewStore()

	_, err := store.Shifts.GetActiveByBusiness(ctx, "b1")
	assert.ErrorIs(t, err, context.Canceled)
}
