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

type CreateAdminRequest struct {
	BusinessID string `json:"-"`
	// CreatedBy is the signed-in owner. Empty only for the configured bootstrap admin.
	CreatedBy string `json:"-"`
	// ID pins the new admin's id; generated when empty.
	ID   string `json:"-"`
	Name string `json:"name" validate:"required,max=100"`
	PIN  string `json:"pin" validate:"required,numeric,min=4,max=12"`
	Role string `json:"role" validate:"required,oneof=owner manager"`
}

// AdminService provisions admin credentials. Only owners may add admins to
// their own business.
type AdminService struct {
	admins   repository.AdminUserRepository
	hasher   PINHasher
	recorder AuditRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewAdminService(
	admins repository.AdminUserRepository,
	hasher PINHasher,
	recorder AuditRecorder,
	logger *zap.Logger,
) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminService{
		admins:   admins,
		hasher:   hasher,
		recorder: recorder,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *AdminService) CreateAdmin(ctx context.Context, req CreateAdminRequest) (*models.AdminUser, error) {
	req.Name = strings.TrimSpace(req.Name)

	role := models.AdminRole(req.Role)
	switch {
	case req.BusinessID == "" || req.Name == "" || req.PIN == "":
		return nil, invalidInput("business_id, name and pin are required")
	case !role.IsValid():
		return nil, invalidInput(fmt.Sprintf("unknown role %q", req.Role))
	}

	if req.CreatedBy != "" {
		if err := s.requireOwner(ctx, req.BusinessID, req.CreatedBy); err != nil {
			return nil, err
		}
	}

	pinHash, err := s.hasher.HashPIN(req.PIN)
	if err != nil {
		return nil, s.fail("Admin creation", err)
	}

	now := s.now()
	admin := &models.AdminUser{
		ID:         req.ID,
		BusinessID: req.BusinessID,
		Name:       req.Name,
		PINHash:    pinHash,
		Role:       role,
		IsActive:   true,
		CreatedBy:  optional(req.CreatedBy),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &AuthError{Kind: KindConflict, Message: "Admin already exists", Err: err}
		}
		return nil, s.fail("Admin creation", err)
	}

	s.recorder.Record(ctx, audit.Event{
		BusinessID: req.BusinessID,
		AdminID:    req.CreatedBy,
		Action:     models.AuditActionAdminCreated,
		Severity:   models.SeverityMedium,
		Details:    map[string]interface{}{"new_admin_id": admin.ID, "role": req.Role},
	})
	return admin, nil
}

// EnsureAdmin creates the admin unless an active one with req.ID already
// exists in the business. It reports whether a row was created.
func (s *AdminService) EnsureAdmin(ctx context.Context, req CreateAdminRequest) (*models.AdminUser, bool, error) {
	if req.ID == "" {
		return nil, false, invalidInput("id is required")
	}
	existing, err := s.admins.GetActive(ctx, req.BusinessID, req.ID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, s.fail("Admin bootstrap", err)
	}

	admin, err := s.CreateAdmin(ctx, req)
	if err != nil {
		return nil, false, err
	}
	return admin, true, nil
}

func (s *AdminService) requireOwner(ctx context.Context, businessID, adminID string) error {
	creator, err := s.admins.GetActive(ctx, businessID, adminID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return s.fail("Admin creation", err)
	}
	if err != nil || creator.Role != models.AdminRoleOwner {
		s.recorder.Record(ctx, audit.Event{
			BusinessID: businessID,
			AdminID:    adminID,
			Action:     models.AuditActionPermissionViolation,
			Severity:   models.SeverityHigh,
			Details:    map[string]interface{}{"permission": "admins:create"},
		})
		return newAuthError(KindPermissionDenied, MsgPermissionDenied)
	}
	return nil
}

func (s *AdminService) fail(operation string, err error) *AuthError {
	s.logger.Error(operation+" failed", zap.Error(err))
	return storeError(operation, err)
}
