package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hybrid-auth-service/internal/audit"
	"hybrid-auth-service/internal/config"
	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

type TokenGenerator interface {
	Generate() (string, error)
}

type PINHasher interface {
	HashPIN(pin string) (string, error)
	VerifyPIN(pin, encoded string) (bool, error)
	NeedsRehash(encoded string) bool
}

type AuditRecorder interface {
	Record(ctx context.Context, event audit.Event)
}

// ShiftLocker serialises shift starts per business across instances.
type ShiftLocker interface {
	Acquire(ctx context.Context, businessID string) (func(context.Context), error)
}

// OutcomeObserver receives one call per manager operation with "success" or
// the error kind.
type OutcomeObserver interface {
	ObserveAuthOutcome(operation, result string)
}

type AdminSessionRequest struct {
	BusinessID  string `json:"business_id" validate:"required,uuid"`
	AdminID     string `json:"admin_id" validate:"required,uuid"`
	PIN         string `json:"pin" validate:"required,numeric,min=4,max=12"`
	RequiredFor string `json:"required_for" validate:"required,max=100"`
	IPAddress   string `json:"-"`
	UserAgent   string `json:"-"`
}

type StartShiftRequest struct {
	BusinessID       string   `json:"-"`
	AdminID          string   `json:"-"`
	Name             string   `json:"name" validate:"required,max=100"`
	MaxStaffSessions int      `json:"max_staff_sessions" validate:"gte=0,lte=1000"`
	AutoEndHours     *float64 `json:"auto_end_hours,omitempty" validate:"omitempty,gt=0,lte=48"`
}

type StaffAuthRequest struct {
	BusinessID string `json:"-"`
	StaffID    string `json:"staff_id" validate:"required,uuid"`
	PIN        string `json:"pin" validate:"required,numeric,min=4,max=8"`
	SignedInBy string `json:"-"`
	IPAddress  string `json:"-"`
	DeviceInfo string `json:"device_info,omitempty" validate:"max=500"`
}

type EndShiftResult struct {
	ShiftID        string `json:"shift_id"`
	SessionsClosed int64  `json:"sessions_closed"`
}

type ShiftStatus struct {
	IsActive         bool          `json:"is_active"`
	Shift            *models.Shift `json:"shift,omitempty"`
	ActiveStaffCount int64         `json:"active_staff_count"`
	MaxStaffAllowed  int           `json:"max_staff_allowed"`
}

type ActiveSessions struct {
	AdminSessions []*models.AdminSession `json:"admin_sessions"`
	StaffSessions []*models.StaffSession `json:"staff_sessions"`
}

// HybridAuthManager owns the admin session, shift gate and staff PIN flows.
// Every method returns either a result or an *AuthError.
type HybridAuthManager struct {
	store     *repository.Store
	tokens    TokenGenerator
	hasher    PINHasher
	recorder  AuditRecorder
	policy    config.AuthConfig
	logger    *zap.Logger
	now       func() time.Time
	shiftLock ShiftLocker
	observer  OutcomeObserver
}

type ManagerOption func(*HybridAuthManager)

func WithClock(now func() time.Time) ManagerOption {
	return func(m *HybridAuthManager) { m.now = now }
}

func WithShiftLocker(locker ShiftLocker) ManagerOption {
	return func(m *HybridAuthManager) { m.shiftLock = locker }
}

func WithOutcomeObserver(observer OutcomeObserver) ManagerOption {
	return func(m *HybridAuthManager) { m.observer = observer }
}

func NewHybridAuthManager(
	store *repository.Store,
	tokens TokenGenerator,
	hasher PINHasher,
	recorder AuditRecorder,
	policy config.AuthConfig,
	logger *zap.Logger,
	opts ...ManagerOption,
) *HybridAuthManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &HybridAuthManager{
		store:    store,
		tokens:   tokens,
		hasher:   hasher,
		recorder: recorder,
		policy:   policy,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Admin sessions

// CreateAdminSession signs an admin in with their PIN. Unknown admins and
// wrong PINs both read as invalid credentials; every failure is audited at
// high severity or above.
func (m *HybridAuthManager) CreateAdminSession(ctx context.Context, req AdminSessionRequest) (session *models.AdminSession, err error) {
	defer m.observe("create_admin_session", &err)

	if req.BusinessID == "" || req.AdminID == "" || req.PIN == "" || req.RequiredFor == "" {
		return nil, invalidInput("business_id, admin_id, pin and required_for are required")
	}

	admin, err := m.store.AdminUsers.GetActive(ctx, req.BusinessID, req.AdminID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.recorder.Record(ctx, audit.Event{
				BusinessID: req.BusinessID,
				AdminID:    req.AdminID,
				Action:     models.AuditActionAdminPINFailed,
				Severity:   models.SeverityHigh,
				IPAddress:  req.IPAddress,
				Details:    map[string]interface{}{"reason": "unknown_admin"},
			})
			return nil, newAuthError(KindInvalidCredentials, MsgInvalidCredentials)
		}
		return nil, m.fail("Admin session creation", err)
	}

	now := m.now()
	if admin.IsLocked(now) {
		m.recordAdminLockedAttempt(ctx, req, admin)
		return nil, newAuthError(KindLocked, MsgAccountLocked)
	}

	ok, err := m.hasher.VerifyPIN(req.PIN, admin.PINHash)
	if err != nil {
		return nil, m.fail("Admin session creation", err)
	}
	if !ok {
		return nil, m.recordAdminPINFailure(ctx, req, admin, now)
	}

	if err := m.store.AdminUsers.RecordSuccessfulLogin(ctx, admin.ID, now); err != nil {
		return nil, m.fail("Admin session creation", err)
	}
	m.rehashAdminIfNeeded(ctx, admin, req.PIN)

	token, err := m.tokens.Generate()
	if err != nil {
		return nil, m.fail("Admin session creation", err)
	}

	session = &models.AdminSession{
		BusinessID:   req.BusinessID,
		AdminID:      req.AdminID,
		SessionToken: token,
		RequiredFor:  req.RequiredFor,
		IsActive:     true,
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.policy.AdminSessionTTL),
		LastActivity: now,
		IPAddress:    optional(req.IPAddress),
		UserAgent:    optional(req.UserAgent),
	}
	if err := m.store.AdminSessions.Create(ctx, session); err != nil {
		return nil, m.fail("Admin session creation", err)
	}

	m.recorder.Record(ctx, audit.Event{
		BusinessID: req.BusinessID,
		AdminID:    req.AdminID,
		Action:     models.AuditActionAdminSessionCreated,
		Severity:   models.SeverityLow,
		IPAddress:  req.IPAddress,
		Details: map[string]interface{}{
			"session_id":   session.ID,
			"required_for": req.RequiredFor,
			"role":         string(admin.Role),
		},
	})
	return session, nil
}

func (m *HybridAuthManager) recordAdminPINFailure(ctx context.Context, req AdminSessionRequest, admin *models.AdminUser, now time.Time) error {
	threshold := m.policy.MaxFailedAttempts
	updated, err := m.store.AdminUsers.RecordFailedLogin(ctx, admin.ID, now, threshold, now.Add(m.policy.LockoutDuration))
	if err != nil {
		if errors.Is(err, repository.ErrLocked) {
			m.recordAdminLockedAttempt(ctx, req, admin)
			return newAuthError(KindLocked, MsgAccountLocked)
		}
		return m.fail("Admin session creation", err)
	}

	severity := audit.AdminPINFailureSeverity(updated.FailedLoginAttempts, threshold)
	m.recorder.Record(ctx, audit.Event{
		BusinessID: req.BusinessID,
		AdminID:    admin.ID,
		Action:     models.AuditActionAdminPINFailed,
		Severity:   severity,
		IPAddress:  req.IPAddress,
		Details:    map[string]interface{}{"failed_attempts": updated.FailedLoginAttempts},
	})

	if updated.IsLocked(now) {
		m.logger.Warn("Admin account locked",
			zap.String("business_id", req.BusinessID),
			zap.String("admin_id", admin.ID),
			zap.Int("failed_attempts", updated.FailedLoginAttempts))
		m.recorder.Record(ctx, audit.Event{
			BusinessID: req.BusinessID,
			AdminID:    admin.ID,
			Action:     models.AuditActionAdminLockedOut,
			Severity:   models.SeverityCritical,
			IPAddress:  req.IPAddress,
			Details: map[string]interface{}{
				"failed_attempts": updated.FailedLoginAttempts,
				"locked_until":    updated.LockedUntil,
			},
		})
	}

	return newAuthError(KindInvalidCredentials, MsgInvalidCredentials)
}

func (m *HybridAuthManager) recordAdminLockedAttempt(ctx context.Context, req AdminSessionRequest, admin *models.AdminUser) {
	m.recorder.Record(ctx, audit.Event{
		BusinessID: req.BusinessID,
		AdminID:    admin.ID,
		Action:     models.AuditActionAdminLockedAttempt,
		Severity:   models.SeverityCritical,
		IPAddress:  req.IPAddress,
		Details:    map[string]interface{}{"locked_until": admin.LockedUntil},
	})
}

func (m *HybridAuthManager) rehashAdminIfNeeded(ctx context.Context, admin *models.AdminUser, pin string) {
	if !m.hasher.NeedsRehash(admin.PINHash) {
		return
	}
	hash, err := m.hasher.HashPIN(pin)
	if err == nil {
		err = m.store.AdminUsers.UpdatePINHash(ctx, admin.ID, hash, m.now())
	}
	if err != nil {
		m.logger.Warn("Failed to rehash admin PIN",
			zap.String("admin_id", admin.ID),
			zap.Error(err))
	}
}

// ValidateAdminSession is the only check for "is this admin authenticated".
// An expired session is flipped inactive on the first call after expiry and
// reads as not found afterwards.
func (m *HybridAuthManager) ValidateAdminSession(ctx context.Context, token string) (session *models.AdminSession, err error) {
	defer m.observe("validate_admin_session", &err)

	if token == "" {
		return nil, newAuthError(KindNotFound, MsgInvalidSession)
	}

	session, err = m.store.AdminSessions.GetActiveByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newAuthError(KindNotFound, MsgInvalidSession)
		}
		return nil, m.fail("Session validation", err)
	}

	now := m.now()
	if session.IsExpired(now) {
		if _, err := m.store.AdminSessions.Deactivate(ctx, session.ID); err != nil {
			return nil, m.fail("Session validation", err)
		}
		return nil, newAuthError(KindExpired, MsgSessionExpired)
	}

	if err := m.store.AdminSessions.Touch(ctx, session.ID, now); err != nil {
		return nil, m.fail("Session validation", err)
	}
	session.LastActivity = now
	return session, nil
}

func (m *HybridAuthManager) InvalidateAdminSession(ctx context.Context, token string) (err error) {
	defer m.observe("invalidate_admin_session", &err)

	session, err := m.store.AdminSessions.GetActiveByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newAuthError(KindNotFound, MsgInvalidSession)
		}
		return m.fail("Session invalidation", err)
	}

	flipped, err := m.store.AdminSessions.Deactivate(ctx, session.ID)
	if err != nil {
		return m.fail("Session invalidation", err)
	}
	if flipped {
		m.recorder.Record(ctx, audit.Event{
			BusinessID: session.BusinessID,
			AdminID:    session.AdminID,
			Action:     models.AuditActionAdminSessionInvalidated,
			Severity:   models.SeverityLow,
			Details:    map[string]interface{}{"session_id": session.ID},
		})
	}
	return nil
}

// Shift gate

// StartShift replaces any active shift of the business with a new one. The
// replaced shifts are ended and their staff sessions closed in the same
// transaction as the insert.
func (m *HybridAuthManager) StartShift(ctx context.Context, req StartShiftRequest) (shift *models.Shift, err error) {
	defer m.observe("start_shift", &err)

	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.BusinessID == "" || req.AdminID == "" || req.Name == "":
		return nil, invalidInput("business_id, admin_id and name are required")
	case req.MaxStaffSessions < 0:
		return nil, invalidInput("max_staff_sessions must not be negative")
	case req.AutoEndHours != nil && *req.AutoEndHours <= 0:
		return nil, invalidInput("auto_end_hours must be positive")
	}

	maxSessions := req.MaxStaffSessions
	if maxSessions == 0 {
		maxSessions = m.policy.DefaultMaxStaffSessions
	}

	if m.shiftLock != nil {
		release, err := m.shiftLock.Acquire(ctx, req.BusinessID)
		if err != nil {
			if errors.Is(err, repository.ErrLockHeld) {
				return nil, newAuthError(KindConflict, MsgShiftStartConflict)
			}
			return nil, m.fail("Shift start", err)
		}
		defer release(context.WithoutCancel(ctx))
	}

	now := m.now()
	shift = &models.Shift{
		BusinessID:       req.BusinessID,
		AdminID:          req.AdminID,
		Name:             req.Name,
		StartedAt:        now,
		IsActive:         true,
		MaxStaffSessions: maxSessions,
		CreatedAt:        now,
	}
	if req.AutoEndHours != nil {
		autoEnd := now.Add(time.Duration(*req.AutoEndHours * float64(time.Hour)))
		shift.AutoEndTime = &autoEnd
	}

	var (
		replaced       []string
		sessionsClosed int64
	)
	err = m.store.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		ids, err := m.store.Shifts.DeactivateActiveByBusiness(ctx, req.BusinessID, now)
		if err != nil {
			return err
		}
		closed, err := m.store.StaffSessions.CloseByShifts(ctx, ids, now)
		if err != nil {
			return err
		}
		if err := m.store.Shifts.Create(ctx, shift); err != nil {
			return err
		}
		replaced, sessionsClosed = ids, closed
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, newAuthError(KindConflict, MsgShiftStartConflict)
		}
		return nil, m.fail("Shift start", err)
	}

	m.recorder.Record(ctx, audit.Event{
		BusinessID: req.BusinessID,
		AdminID:    req.AdminID,
		Action:     models.AuditActionShiftStarted,
		Severity:   models.SeverityLow,
		Details: map[string]interface{}{
			"shift_id":           shift.ID,
			"name":               shift.Name,
			"max_staff_sessions": shift.MaxStaffSessions,
			"replaced_shifts":    replaced,
			"sessions_closed":    sessionsClosed,
		},
	})
	return shift, nil
}

// EndShift ends a shift owned by adminID and signs out every staff session
// bound to it. Ending an already ended shift succeeds with nothing closed.
func (m *HybridAuthManager) EndShift(ctx context.Context, shiftID, adminID string) (result *EndShiftResult, err error) {
	defer m.observe("end_shift", &err)
	return m.endShift(ctx, shiftID, adminID, models.AuditActionShiftEnded)
}

func (m *HybridAuthManager) endShift(ctx context.Context, shiftID, adminID, action string) (*EndShiftResult, error) {
	if shiftID == "" || adminID == "" {
		return nil, newAuthError(KindNotFound, MsgShiftNotFound)
	}

	now := m.now()
	var (
		shift  *models.Shift
		closed int64
	)
	err := m.store.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		shift, err = m.store.Shifts.EndOwned(ctx, shiftID, adminID, now)
		if err != nil {
			return err
		}
		closed, err = m.store.StaffSessions.CloseByShifts(ctx, []string{shift.ID}, now)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newAuthError(KindNotFound, MsgShiftNotFound)
		}
		return nil, m.fail("Shift end", err)
	}

	m.recorder.Record(ctx, audit.Event{
		BusinessID: shift.BusinessID,
		AdminID:    adminID,
		Action:     action,
		Severity:   models.SeverityLow,
		Details:    map[string]interface{}{"shift_id": shift.ID, "sessions_closed": closed},
	})
	return &EndShiftResult{ShiftID: shift.ID, SessionsClosed: closed}, nil
}

func (m *HybridAuthManager) GetShiftStatus(ctx context.Context, businessID string) (status *ShiftStatus, err error) {
	defer m.observe("shift_status", &err)

	shift, err := m.store.Shifts.GetActiveByBusiness(ctx, businessID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ShiftStatus{IsActive: false}, nil
		}
		return nil, m.fail("Shift status", err)
	}

	count, err := m.store.StaffSessions.CountActiveByShift(ctx, shift.ID, m.now())
	if err != nil {
		return nil, m.fail("Shift status", err)
	}

	return &ShiftStatus{
		IsActive:         true,
		Shift:            shift,
		ActiveStaffCount: count,
		MaxStaffAllowed:  shift.MaxStaffSessions,
	}, nil
}

// Staff PIN authentication

// AuthenticateStaff checks, in order: active shift, staff membership, lock
// state, PIN, capacity. The first failing check decides the error.
func (m *HybridAuthManager) AuthenticateStaff(ctx context.Context, req StaffAuthRequest) (session *models.StaffSession, err error) {
	defer m.observe("authenticate_staff", &err)

	if req.BusinessID == "" || req.StaffID == "" || req.PIN == "" || req.SignedInBy == "" {
		return nil, invalidInput("business_id, staff_id, pin and signed_in_by are required")
	}

	if _, err := m.store.Shifts.GetActiveByBusiness(ctx, req.BusinessID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newAuthError(KindNotFound, MsgNoActiveShift)
		}
		return nil, m.fail("Staff authentication", err)
	}

	staff, err := m.store.Staff.GetActive(ctx, req.BusinessID, req.StaffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newAuthError(KindNotFound, MsgStaffNotFound)
		}
		return nil, m.fail("Staff authentication", err)
	}

	now := m.now()
	if staff.IsLocked(now) {
		m.recordLockedAttempt(ctx, req, staff)
		return nil, newAuthError(KindLocked, MsgAccountLocked)
	}

	ok, err := m.hasher.VerifyPIN(req.PIN, staff.PINHash)
	if err != nil {
		return nil, m.fail("Staff authentication", err)
	}
	if !ok {
		return nil, m.recordPINFailure(ctx, req, staff, now)
	}

	token, err := m.tokens.Generate()
	if err != nil {
		return nil, m.fail("Staff authentication", err)
	}

	session = &models.StaffSession{
		StaffID:         staff.ID,
		BusinessID:      req.BusinessID,
		SessionToken:    token,
		SignedInBy:      req.SignedInBy,
		SignedInAt:      now,
		IsActive:        true,
		ExpiresAt:       now.Add(m.policy.StaffSessionTTL),
		PINHashSnapshot: staff.PINHash,
		LastActivity:    now,
		IPAddress:       optional(req.IPAddress),
		DeviceInfo:      optional(req.DeviceInfo),
	}

	// The shift row lock makes count-then-insert atomic per business.
	err = m.store.Transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		shift, err := m.store.Shifts.LockActiveByBusiness(ctx, req.BusinessID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return newAuthError(KindNotFound, MsgNoActiveShift)
			}
			return err
		}

		active, err := m.store.StaffSessions.CountActiveByShift(ctx, shift.ID, now)
		if err != nil {
			return err
		}
		if active >= int64(shift.MaxStaffSessions) {
			return newAuthError(KindCapacityExceeded, MsgCapacityReached)
		}

		session.ShiftID = shift.ID
		if err := m.store.StaffSessions.Create(ctx, session); err != nil {
			return err
		}
		return m.store.Staff.RecordSuccessfulLogin(ctx, staff.ID, now)
	})
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return nil, authErr
		}
		return nil, m.fail("Staff authentication", err)
	}

	m.rehashIfNeeded(ctx, staff, req.PIN)

	staff.FailedLoginAttempts = 0
	staff.LockedUntil = nil
	staff.LastLogin = &now
	staff.LoginCount++
	session.Staff = staff

	m.recorder.Record(ctx, audit.Event{
		BusinessID: req.BusinessID,
		AdminID:    req.SignedInBy,
		StaffID:    staff.ID,
		Action:     models.AuditActionStaffAuthenticated,
		Severity:   models.SeverityLow,
		IPAddress:  req.IPAddress,
		Details: map[string]interface{}{
			"session_id": session.ID,
			"shift_id":   session.ShiftID,
			"staff_name": staff.FullName(),
		},
	})
	return session, nil
}

// recordPINFailure bumps the failure counter atomically. A lock taken by a
// concurrent attempt in the meantime turns this into a locked attempt.
func (m *HybridAuthManager) recordPINFailure(ctx context.Context, req StaffAuthRequest, staff *models.Staff, now time.Time) error {
	threshold := m.policy.MaxFailedAttempts
	updated, err := m.store.Staff.RecordFailedLogin(ctx, staff.ID, now, threshold, now.Add(m.policy.LockoutDuration))
	if err != nil {
		if errors.Is(err, repository.ErrLocked) {
			m.recordLockedAttempt(ctx, req, staff)
			return newAuthError(KindLocked, MsgAccountLocked)
		}
		return m.fail("Staff authentication", err)
	}

	m.recorder.Record(ctx, audit.Event{
		BusinessID: req.BusinessID,
		StaffID:    staff.ID,
		Action:     models.AuditActionStaffPINFailed,
		Severity:   audit.PINFailureSeverity(updated.FailedLoginAttempts, threshold),
		IPAddress:  req.IPAddress,
		Details:    map[string]interface{}{"failed_attempts": updated.FailedLoginAttempts},
	})

	if updated.IsLocked(now) {
		m.logger.Warn("Staff account locked",
			zap.String("business_id", req.BusinessID),
			zap.String("staff_id", staff.ID),
			zap.Int("failed_attempts", updated.FailedLoginAttempts))
		m.recorder.Record(ctx, audit.Event{
			BusinessID: req.BusinessID,
			StaffID:    staff.ID,
			Action:     models.AuditActionStaffLockedOut,
			Severity:   audit.PINFailureSeverity(updated.FailedLoginAttempts, threshold),
			IPAddress:  req.IPAddress,
			Details: map[string]interface{}{
				"failed_attempts": updated.FailedLoginAttempts,
				"locked_until":    updated.LockedUntil,
			},
		})
	}

	return newAuthError(KindInvalidCredentials, MsgInvalidPIN)
}

func (m *HybridAuthManager) recordLockedAttempt(ctx context.Context, req StaffAuthRequest, staff *models.Staff) {
	m.recorder.Record(ctx, audit.Event{
		BusinessID: req.BusinessID,
		StaffID:    staff.ID,
		Action:     models.AuditActionStaffLockedAttempt,
		Severity:   models.SeverityHigh,
		IPAddress:  req.IPAddress,
		Details:    map[string]interface{}{"locked_until": staff.LockedUntil},
	})
}

// rehashIfNeeded moves the stored hash to the current pepper and parameters
// after a successful verification. Failures only cost a future retry.
func (m *HybridAuthManager) rehashIfNeeded(ctx context.Context, staff *models.Staff, pin string) {
	if !m.hasher.NeedsRehash(staff.PINHash) {
		return
	}
	hash, err := m.hasher.HashPIN(pin)
	if err == nil {
		err = m.store.Staff.UpdatePINHash(ctx, staff.ID, hash, m.now())
	}
	if err != nil {
		m.logger.Warn("Failed to rehash staff PIN",
			zap.String("staff_id", staff.ID),
			zap.Error(err))
		return
	}
	staff.PINHash = hash
}

// Staff sessions

func (m *HybridAuthManager) ValidateStaffSession(ctx context.Context, token string) (session *models.StaffSession, err error) {
	defer m.observe("validate_staff_session", &err)

	if token == "" {
		return nil, newAuthError(KindNotFound, MsgInvalidSession)
	}

	session, err = m.store.StaffSessions.GetActiveByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newAuthError(KindNotFound, MsgInvalidSession)
		}
		return nil, m.fail("Session validation", err)
	}

	now := m.now()
	if session.IsExpired(now) {
		if _, err := m.store.StaffSessions.Close(ctx, session.ID, now); err != nil {
			return nil, m.fail("Session validation", err)
		}
		return nil, newAuthError(KindExpired, MsgSessionExpired)
	}

	if err := m.store.StaffSessions.Touch(ctx, session.ID, now); err != nil {
		return nil, m.fail("Session validation", err)
	}
	session.LastActivity = now

	staff, err := m.store.Staff.GetByID(ctx, session.StaffID)
	switch {
	case err == nil:
		session.Staff = staff
	case !errors.Is(err, repository.ErrNotFound):
		return nil, m.fail("Session validation", err)
	}
	return session, nil
}

func (m *HybridAuthManager) InvalidateStaffSession(ctx context.Context, token string) (err error) {
	defer m.observe("invalidate_staff_session", &err)

	session, err := m.store.StaffSessions.GetActiveByToken(ctx, token)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return newAuthError(KindNotFound, MsgInvalidSession)
		}
		return m.fail("Staff sign-out", err)
	}

	return m.closeStaffSession(ctx, session)
}

// EndStaffSession signs out a session the caller has already validated.
func (m *HybridAuthManager) EndStaffSession(ctx context.Context, session *models.StaffSession) (err error) {
	defer m.observe("invalidate_staff_session", &err)

	if session == nil {
		return newAuthError(KindNotFound, MsgInvalidSession)
	}
	return m.closeStaffSession(ctx, session)
}

func (m *HybridAuthManager) closeStaffSession(ctx context.Context, session *models.StaffSession) error {
	flipped, err := m.store.StaffSessions.Close(ctx, session.ID, m.now())
	if err != nil {
		return m.fail("Staff sign-out", err)
	}
	if flipped {
		m.recorder.Record(ctx, audit.Event{
			BusinessID: session.BusinessID,
			StaffID:    session.StaffID,
			Action:     models.AuditActionStaffSignedOut,
			Severity:   models.SeverityLow,
			Details:    map[string]interface{}{"session_id": session.ID, "shift_id": session.ShiftID},
		})
	}
	return nil
}

func (m *HybridAuthManager) GetActiveSessions(ctx context.Context, businessID string) (result *ActiveSessions, err error) {
	defer m.observe("active_sessions", &err)

	now := m.now()
	result = &ActiveSessions{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sessions, err := m.store.AdminSessions.ListActiveByBusiness(gctx, businessID, now)
		result.AdminSessions = sessions
		return err
	})
	g.Go(func() error {
		sessions, err := m.store.StaffSessions.ListActiveByBusiness(gctx, businessID, now)
		result.StaffSessions = sessions
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, m.fail("Active session lookup", err)
	}

	if result.AdminSessions == nil {
		result.AdminSessions = []*models.AdminSession{}
	}
	if result.StaffSessions == nil {
		result.StaffSessions = []*models.StaffSession{}
	}
	return result, nil
}

// AuthorizeStaffAction validates the staff session and checks that the staff
// member holds permission. Denials are audited as permission violations.
func (m *HybridAuthManager) AuthorizeStaffAction(ctx context.Context, token, permission string) (session *models.StaffSession, err error) {
	defer m.observe("authorize_staff_action", &err)

	if permission == "" {
		return nil, invalidInput("permission is required")
	}

	session, err = m.ValidateStaffSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := m.authorize(ctx, session, permission); err != nil {
		return nil, err
	}
	return session, nil
}

// AuthorizeSession is AuthorizeStaffAction for a session the caller has
// already validated.
func (m *HybridAuthManager) AuthorizeSession(ctx context.Context, session *models.StaffSession, permission string) (err error) {
	defer m.observe("authorize_staff_action", &err)

	if permission == "" {
		return invalidInput("permission is required")
	}
	if session == nil {
		return newAuthError(KindNotFound, MsgInvalidSession)
	}
	return m.authorize(ctx, session, permission)
}

func (m *HybridAuthManager) authorize(ctx context.Context, session *models.StaffSession, permission string) error {
	if session.Staff == nil || !session.Staff.IsActive || !session.Staff.HasPermission(permission) {
		m.recorder.Record(ctx, audit.Event{
			BusinessID: session.BusinessID,
			StaffID:    session.StaffID,
			Action:     models.AuditActionPermissionViolation,
			Severity:   models.SeverityHigh,
			Details:    map[string]interface{}{"permission": permission, "session_id": session.ID},
		})
		return newAuthError(KindPermissionDenied, MsgPermissionDenied)
	}
	return nil
}

// Maintenance

// EndDueShifts ends every active shift whose auto-end time has passed. One
// failing shift does not stop the rest.
func (m *HybridAuthManager) EndDueShifts(ctx context.Context) (int, error) {
	due, err := m.store.Shifts.ListDueForAutoEnd(ctx, m.now())
	if err != nil {
		return 0, m.fail("Shift auto-end", err)
	}

	var (
		ended int
		errs  []error
	)
	for _, shift := range due {
		if _, err := m.endShift(ctx, shift.ID, shift.AdminID, models.AuditActionShiftAutoEnded); err != nil {
			errs = append(errs, err)
			continue
		}
		ended++
	}
	return ended, errors.Join(errs...)
}

// ExpireStaleSessions flips every session past its expiry, in bulk.
func (m *HybridAuthManager) ExpireStaleSessions(ctx context.Context) (admin, staff int64, err error) {
	now := m.now()

	admin, err = m.store.AdminSessions.DeactivateExpired(ctx, now)
	if err != nil {
		return 0, 0, m.fail("Session expiry", err)
	}
	staff, err = m.store.StaffSessions.CloseExpired(ctx, now)
	if err != nil {
		return admin, 0, m.fail("Session expiry", err)
	}
	return admin, staff, nil
}

func (m *HybridAuthManager) fail(operation string, err error) *AuthError {
	m.logger.Error(operation+" failed", zap.Error(err))
	return storeError(operation, err)
}

func (m *HybridAuthManager) observe(operation string, errp *error) {
	if m.observer == nil {
		return
	}
	result := "success"
	if *errp != nil {
		result = KindOf(*errp).String()
	}
	m.observer.ObserveAuthOutcome(operation, result)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
