package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"hybrid-auth-service/internal/audit"
	"hybrid-auth-service/internal/config"
	"hybrid-auth-service/internal/hashing"
	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
	"hybrid-auth-service/internal/repository/memory"
	"hybrid-auth-service/internal/token"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type outcomeCounter struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (o *outcomeCounter) ObserveAuthOutcome(operation, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[operation+"/"+result]++
}

func (o *outcomeCounter) count(key string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.outcomes[key]
}

func testPolicy() config.AuthConfig {
	return config.AuthConfig{
		AdminSessionTTL:         24 * time.Hour,
		StaffSessionTTL:         8 * time.Hour,
		MaxFailedAttempts:       5,
		LockoutDuration:         15 * time.Minute,
		DefaultMaxStaffSessions: 50,
	}
}

func testHashingConfig(version int) config.HashingConfig {
	return config.HashingConfig{
		Argon2MemoryCost:  4 * 1024,
		Argon2TimeCost:    1,
		Argon2Parallelism: 1,
		Peppers:           map[int]string{1: "pepper-one", 2: "pepper-two"},
		PepperVersion:     version,
	}
}

type fixture struct {
	mgr      *HybridAuthManager
	store    *repository.Store
	clock    *testClock
	hasher   *hashing.Hasher
	recorder *audit.Recorder
	observer *outcomeCounter

	businessID string
	adminID    string
}

func newFixture(t *testing.T, opts ...ManagerOption) *fixture {
	t.Helper()
	return newFixtureWithStore(t, memory.NewStore(), opts...)
}

func newFixtureWithStore(t *testing.T, store *repository.Store, opts ...ManagerOption) *fixture {
	t.Helper()

	hasher, err := hashing.NewHasher(testHashingConfig(2))
	require.NoError(t, err)

	clock := newTestClock()
	observer := &outcomeCounter{}
	recorder := audit.NewRecorder(store.AuditLogs, zap.NewNop(), audit.WithClock(clock.Now))

	opts = append([]ManagerOption{WithClock(clock.Now), WithOutcomeObserver(observer)}, opts...)
	mgr := NewHybridAuthManager(store, token.NewGenerator(nil), hasher, recorder, testPolicy(), zap.NewNop(), opts...)

	f := &fixture{
		mgr:        mgr,
		store:      store,
		clock:      clock,
		hasher:     hasher,
		recorder:   recorder,
		observer:   observer,
		businessID: uuid.NewString(),
	}
	f.adminID = f.addAdmin(t, adminPIN, models.AdminRoleOwner).ID
	return f
}

const adminPIN = "975310"

// addAdmin inserts an active admin of the fixture's business.
func (f *fixture) addAdmin(t *testing.T, pin string, role models.AdminRole) *models.AdminUser {
	t.Helper()
	hash, err := f.hasher.HashPIN(pin)
	require.NoError(t, err)

	now := f.clock.Now()
	admin := &models.AdminUser{
		BusinessID: f.businessID,
		Name:       "Alex Morgan",
		PINHash:    hash,
		Role:       role,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, f.store.AdminUsers.Create(context.Background(), admin))
	return admin
}

// addStaff inserts an active staff member of the fixture's business.
func (f *fixture) addStaff(t *testing.T, pin string, role models.StaffRole) *models.Staff {
	t.Helper()
	hash, err := f.hasher.HashPIN(pin)
	require.NoError(t, err)

	now := f.clock.Now()
	staff := &models.Staff{
		BusinessID: f.businessID,
		FirstName:  "Sam",
		LastName:   "Rivera",
		PINHash:    hash,
		Role:       role,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, f.store.Staff.Create(context.Background(), staff))
	return staff
}

func (f *fixture) startShift(t *testing.T, maxSessions int) *models.Shift {
	t.Helper()
	shift, err := f.mgr.StartShift(context.Background(), StartShiftRequest{
		BusinessID:       f.businessID,
		AdminID:          f.adminID,
		Name:             "Morning",
		MaxStaffSessions: maxSessions,
	})
	require.NoError(t, err)
	return shift
}

func (f *fixture) authRequest(staffID, pin string) StaffAuthRequest {
	return StaffAuthRequest{
		BusinessID: f.businessID,
		StaffID:    staffID,
		PIN:        pin,
		SignedInBy: f.adminID,
		IPAddress:  "10.1.2.3",
		DeviceInfo: "pos-terminal-2",
	}
}

func (f *fixture) auditEntries(t *testing.T, action string) []*models.AuditLog {
	t.Helper()
	entries, err := f.recorder.List(context.Background(), f.businessID, repository.AuditFilter{Action: action})
	require.NoError(t, err)
	return entries
}

func (f *fixture) reloadStaff(t *testing.T, id string) *models.Staff {
	t.Helper()
	staff, err := f.store.Staff.GetByID(context.Background(), id)
	require.NoError(t, err)
	return staff
}

// requireAuthError asserts err is an *AuthError of the given kind and message.
func requireAuthError(t *testing.T, err error, kind ErrorKind, message string) {
	t.Helper()
	require.Error(t, err)
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	require.Equal(t, kind, authErr.Kind, "message: %s", authErr.Message)
	require.Equal(t, message, authErr.Message)
}
