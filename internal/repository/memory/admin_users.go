package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

type adminUserRepo struct {
	db *DB
}

func (r *adminUserRepo) Create(ctx context.Context, admin *models.AdminUser) error {
	return r.db.run(ctx, func() error {
		if admin.ID == "" {
			admin.ID = uuid.NewString()
		}
		if _, ok := r.db.adminUsers[admin.ID]; ok {
			return fmt.Errorf("admin %s: %w", admin.ID, repository.ErrConflict)
		}
		r.db.adminUsers[admin.ID] = cloneAdminUser(admin)
		return nil
	})
}

func (r *adminUserRepo) GetActive(ctx context.Context, businessID, adminID string) (*models.AdminUser, error) {
	var out *models.AdminUser
	err := r.db.run(ctx, func() error {
		a, ok := r.db.adminUsers[adminID]
		if !ok || a.BusinessID != businessID || !a.IsActive {
			return repository.ErrNotFound
		}
		out = cloneAdminUser(a)
		return nil
	})
	return out, err
}

func (r *adminUserRepo) RecordFailedLogin(ctx context.Context, adminID string, now time.Time, threshold int, lockUntil time.Time) (*models.AdminUser, error) {
	var out *models.AdminUser
	err := r.db.run(ctx, func() error {
		a, ok := r.db.adminUsers[adminID]
		if !ok {
			return repository.ErrNotFound
		}
		if a.IsLocked(now) {
			return repository.ErrLocked
		}
		c := cloneAdminUser(a)
		c.FailedLoginAttempts++
		if c.FailedLoginAttempts >= threshold {
			c.LockedUntil = &lockUntil
		}
		c.UpdatedAt = now
		r.db.adminUsers[adminID] = c
		out = cloneAdminUser(c)
		return nil
	})
	return out, err
}

func (r *adminUserRepo) RecordSuccessfulLogin(ctx context.Context, adminID string, at time.Time) error {
	return r.db.run(ctx, func() error {
		a, ok := r.db.adminUsers[adminID]
		if !ok {
			return repository.ErrNotFound
		}
		c := cloneAdminUser(a)
		c.FailedLoginAttempts = 0
		c.LockedUntil = nil
		c.LastLogin = &at
		c.LoginCount++
		c.UpdatedAt = at
		r.db.adminUsers[adminID] = c
		return nil
	})
}

func (r *adminUserRepo) UpdatePINHash(ctx context.Context, adminID, pinHash string, at time.Time) error {
	return r.db.run(ctx, func() error {
		a, ok := r.db.adminUsers[adminID]
		if !ok {
			return repository.ErrNotFound
		}
		c := cloneAdminUser(a)
		c.PINHash = pinHash
		c.UpdatedAt = at
		r.db.adminUsers[adminID] = c
		return nil
	})
}
