package service

import (
	"go.uber.org/zap"

	"hybrid-auth-service/internal/config"
	"hybrid-auth-service/internal/repository"
)

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	store    *repository.Store
	tokens   TokenGenerator
	hasher   PINHasher
	sealer   FieldSealer
	recorder AuditRecorder
	policy   config.AuthConfig
	logger   *zap.Logger
	options  []ManagerOption

	authManager  *HybridAuthManager
	staffService *StaffService
	adminService *AdminService
}

// NewServiceFactory creates a new service factory
func NewServiceFactory(
	store *repository.Store,
	tokens TokenGenerator,
	hasher PINHasher,
	sealer FieldSealer,
	recorder AuditRecorder,
	policy config.AuthConfig,
	logger *zap.Logger,
	options ...ManagerOption,
) *ServiceFactory {
	return &ServiceFactory{
		store:    store,
		tokens:   tokens,
		hasher:   hasher,
		sealer:   sealer,
		recorder: recorder,
		policy:   policy,
		logger:   logger,
		options:  options,
	}
}

// AuthManager returns the hybrid auth manager instance (singleton)
func (f *ServiceFactory) AuthManager() *HybridAuthManager {
	if f.authManager == nil {
		f.authManager = NewHybridAuthManager(
			f.store,
			f.tokens,
			f.hasher,
			f.recorder,
			f.policy,
			f.logger.Named("auth"),
			f.options...,
		)
	}
	return f.authManager
}

// StaffService returns the staff service instance (singleton)
func (f *ServiceFactory) StaffService() *StaffService {
	if f.staffService == nil {
		f.staffService = NewStaffService(
			f.store.Staff,
			f.hasher,
			f.sealer,
			f.recorder,
			f.logger.Named("staff"),
		)
	}
	return f.staffService
}

// AdminService returns the admin provisioning service instance (singleton)
func (f *ServiceFactory) AdminService() *AdminService {
	if f.adminService == nil {
		f.adminService = NewAdminService(
			f.store.AdminUsers,
			f.hasher,
			f.recorder,
			f.logger.Named("admin"),
		)
	}
	return f.adminService
}
