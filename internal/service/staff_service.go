package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"hybrid-auth-service/internal/audit"
	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

const (
	purposeStaffEmail = "staff_email"
	purposeStaffPhone = "staff_phone"
)

// FieldSealer encrypts values into a self-contained string for storage.
type FieldSealer interface {
	Seal(ctx context.Context, plaintext, purpose string) (string, error)
	Open(ctx context.Context, sealed string) (string, error)
}

type CreateStaffRequest struct {
	BusinessID  string   `json:"-"`
	CreatedBy   string   `json:"-"`
	FirstName   string   `json:"first_name" validate:"required,max=100"`
	LastName    string   `json:"last_name" validate:"max=100"`
	Email       string   `json:"email,omitempty" validate:"omitempty,email"`
	Phone       string   `json:"phone,omitempty" validate:"omitempty,e164"`
	PIN         string   `json:"pin" validate:"required,numeric,min=4,max=8"`
	Role        string   `json:"role" validate:"required,oneof=manager server bartender host kitchen"`
	Permissions []string `json:"permissions,omitempty" validate:"dive,required"`
}

type StaffContact struct {
	StaffID string `json:"staff_id"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// StaffService manages staff records. Contact fields are stored sealed and
// the PIN only as a hash.
type StaffService struct {
	staff    repository.StaffRepository
	hasher   PINHasher
	sealer   FieldSealer
	recorder AuditRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewStaffService(
	staff repository.StaffRepository,
	hasher PINHasher,
	sealer FieldSealer,
	recorder AuditRecorder,
	logger *zap.Logger,
) *StaffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{
		staff:    staff,
		hasher:   hasher,
		sealer:   sealer,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *StaffService) CreateStaff(ctx context.Context, req CreateStaffRequest) (*models.Staff, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	role := models.StaffRole(req.Role)
	switch {
	case req.BusinessID == "" || req.FirstName == "" || req.PIN == "":
		return nil, invalidInput("business_id, first_name and pin are required")
	case !role.IsValid():
		return nil, invalidInput(fmt.Sprintf("unknown role %q", req.Role))
	}
	for _, p := range req.Permissions {
		if !models.IsKnownPermission(p) {
			return nil, invalidInput(fmt.Sprintf("unknown permission %q", p))
		}
	}

	pinHash, err := s.hasher.HashPIN(req.PIN)
	if err != nil {
		return nil, s.fail("Staff creation", err)
	}

	now := s.now()
	staff := &models.Staff{
		BusinessID:  req.BusinessID,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PINHash:     pinHash,
		Role:        role,
		Permissions: append([]string{}, req.Permissions...),
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if staff.EmailEncrypted, err = s.seal(ctx, req.Email, purposeStaffEmail); err != nil {
		return nil, s.fail("Staff creation", err)
	}
	if staff.PhoneEncrypted, err = s.seal(ctx, req.Phone, purposeStaffPhone); err != nil {
		return nil, s.fail("Staff creation", err)
	}

	if err := s.staff.Create(ctx, staff); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &AuthError{Kind: KindConflict, Message: "Staff member already exists", Err: err}
		}
		return nil, s.fail("Staff creation", err)
	}

	s.recorder.Record(ctx, audit.Event{
		BusinessID: req.BusinessID,
		AdminID:    req.CreatedBy,
		StaffID:    staff.ID,
		Action:     models.AuditActionStaffCreated,
		Severity:   models.SeverityLow,
		Details:    map[string]interface{}{"role": req.Role},
	})
	return staff, nil
}

// StaffContact decrypts the contact fields of an active staff member.
func (s *StaffService) StaffContact(ctx context.Context, businessID, staffID string) (*StaffContact, error) {
	staff, err := s.staff.GetActive(ctx, businessID, staffID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, newAuthError(KindNotFound, MsgStaffNotFound)
		}
		return nil, s.fail("Staff contact lookup", err)
	}

	contact := &StaffContact{StaffID: staff.ID}
	if contact.Email, err = s.open(ctx, staff.EmailEncrypted); err != nil {
		return nil, s.fail("Staff contact lookup", err)
	}
	if contact.Phone, err = s.open(ctx, staff.PhoneEncrypted); err != nil {
		return nil, s.fail("Staff contact lookup", err)
	}
	return contact, nil
}

func (s *StaffService) seal(ctx context.Context, value, purpose string) (*string, error) {
	if value == "" {
		return nil, nil
	}
	sealed, err := s.sealer.Seal(ctx, value, purpose)
	if err != nil {
		return nil, err
	}
	return &sealed, nil
}

func (s *StaffService) open(ctx context.Context, sealed *string) (string, error) {
	if sealed == nil {
		return "", nil
	}
	return s.sealer.Open(ctx, *sealed)
}

func (s *StaffService) fail(operation string, err error) *AuthError {
	s.logger.Error(operation+" failed", zap.Error(err))
	return storeError(operation, err)
}
