package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

type staffRepo struct {
	db *DB
}

func (r *staffRepo) Create(ctx context.Context, staff *models.Staff) error {
	return r.db.run(ctx, func() error {
		if staff.ID == "" {
			staff.ID = uuid.NewString()
		}
		if _, ok := r.db.staff[staff.ID]; ok {
			return fmt.Errorf("staff %s: %w", staff.ID, repository.ErrConflict)
		}
		r.db.staff[staff.ID] = cloneStaff(staff)
		return nil
	})
}

func (r *staffRepo) GetActive(ctx context.Context, businessID, staffID string) (*models.Staff, error) {
	var out *models.Staff
	err := r.db.run(ctx, func() error {
		s, ok := r.db.staff[staffID]
		if !ok || s.BusinessID != businessID || !s.IsActive {
			return repository.ErrNotFound
		}
		out = cloneStaff(s)
		return nil
	})
	return out, err
}

func (r *staffRepo) GetByID(ctx context.Context, staffID string) (*models.Staff, error) {
	var out *models.Staff
	err := r.db.run(ctx, func() error {
		s, ok := r.db.staff[staffID]
		if !ok {
			return repository.ErrNotFound
		}
		out = cloneStaff(s)
		return nil
	})
	return out, err
}

func (r *staffRepo) RecordFailedLogin(ctx context.Context, staffID string, now time.Time, threshold int, lockUntil time.Time) (*models.Staff, error) {
	var out *models.Staff
	err := r.db.run(ctx, func() error {
		s, ok := r.db.staff[staffID]
		if !ok {
			return repository.ErrNotFound
		}
		if s.IsLocked(now) {
			return repository.ErrLocked
		}
		c := cloneStaff(s)
		c.FailedLoginAttempts++
		if c.FailedLoginAttempts >= threshold {
			c.LockedUntil = &lockUntil
		}
		c.UpdatedAt = now
		r.db.staff[staffID] = c
		out = cloneStaff(c)
		return nil
	})
	return out, err
}

func (r *staffRepo) RecordSuccessfulLogin(ctx context.Context, staffID string, at time.Time) error {
	return r.db.run(ctx, func() error {
		s, ok := r.db.staff[staffID]
		if !ok {
			return repository.ErrNotFound
		}
		c := cloneStaff(s)
		c.FailedLoginAttempts = 0
		c.LockedUntil = nil
		c.LastLogin = &at
		c.LoginCount++
		c.UpdatedAt = at
		r.db.staff[staffID] = c
		return nil
	})
}

func (r *staffRepo) UpdatePINHash(ctx context.Context, staffID, pinHash string, at time.Time) error {
	return r.db.run(ctx, func() error {
		s, ok := r.db.staff[staffID]
		if !ok {
			return repository.ErrNotFound
		}
		c := cloneStaff(s)
		c.PINHash = pinHash
		c.UpdatedAt = at
		r.db.staff[staffID] = c
		return nil
	})
}
