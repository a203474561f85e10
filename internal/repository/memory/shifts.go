package memory

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

type shiftRepo struct {
	db *DB
}

func (r *shiftRepo) activeFor(businessID string) *models.Shift {
	for _, s := range r.db.shifts {
		if s.BusinessID == businessID && s.IsActive {
			return s
		}
	}
	return nil
}

func (r *shiftRepo) GetActiveByBusiness(ctx context.Context, businessID string) (*models.Shift, error) {
	var out *models.Shift
	err := r.db.run(ctx, func() error {
		s := r.activeFor(businessID)
		if s == nil {
			return repository.ErrNotFound
		}
		out = cloneShift(s)
		return nil
	})
	return out, err
}

// LockActiveByBusiness needs no extra locking here: a transaction already owns the whole store.
func (r *shiftRepo) LockActiveByBusiness(ctx context.Context, businessID string) (*models.Shift, error) {
	return r.GetActiveByBusiness(ctx, businessID)
}

func (r *shiftRepo) DeactivateActiveByBusiness(ctx context.Context, businessID string, endedAt time.Time) ([]string, error) {
	var ids []string
	err := r.db.run(ctx, func() error {
		for id, s := range r.db.shifts {
			if s.BusinessID != businessID || !s.IsActive {
				continue
			}
			c := cloneShift(s)
			c.IsActive = false
			c.EndedAt = &endedAt
			r.db.shifts[id] = c
			ids = append(ids, id)
		}
		return nil
	})
	slices.Sort(ids)
	return ids, err
}

// Create enforces the same rule as the partial unique index on shifts(business_id) WHERE is_active.
func (r *shiftRepo) Create(ctx context.Context, shift *models.Shift) error {
	return r.db.run(ctx, func() error {
		if shift.ID == "" {
			shift.ID = uuid.NewString()
		}
		if shift.IsActive && r.activeFor(shift.BusinessID) != nil {
			return fmt.Errorf("active shift for business %s: %w", shift.BusinessID, repository.ErrConflict)
		}
		r.db.shifts[shift.ID] = cloneShift(shift)
		return nil
	})
}

func (r *shiftRepo) EndOwned(ctx context.Context, shiftID, adminID string, endedAt time.Time) (*models.Shift, error) {
	var out *models.Shift
	err := r.db.run(ctx, func() error {
		s, ok := r.db.shifts[shiftID]
		if !ok || s.AdminID != adminID {
			return repository.ErrNotFound
		}
		c := cloneShift(s)
		if c.IsActive {
			c.IsActive = false
			c.EndedAt = &endedAt
			r.db.shifts[shiftID] = c
		}
		out = cloneShift(c)
		return nil
	})
	return out, err
}

func (r *shiftRepo) ListDueForAutoEnd(ctx context.Context, now time.Time) ([]*models.Shift, error) {
	var out []*models.Shift
	err := r.db.run(ctx, func() error {
		for _, s := range r.db.shifts {
			if s.IsDueForAutoEnd(now) {
				out = append(out, cloneShift(s))
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *models.Shift) int {
		return a.AutoEndTime.Compare(*b.AutoEndTime)
	})
	return out, err
}
