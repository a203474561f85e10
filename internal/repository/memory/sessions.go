package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

type adminSessionRepo struct {
	db *DB
}

func (r *adminSessionRepo) Create(ctx context.Context, session *models.AdminSession) error {
	return r.db.run(ctx, func() error {
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		for _, existing := range r.db.adminSessions {
			if existing.SessionToken == session.SessionToken {
				return fmt.Errorf("admin session token: %w", repository.ErrConflict)
			}
		}
		if _, ok := r.db.adminSessions[session.ID]; ok {
			return fmt.Errorf("admin session id: %w", repository.ErrConflict)
		}
		r.db.adminSessions[session.ID] = cloneAdminSession(session)
		return nil
	})
}

func (r *adminSessionRepo) GetActiveByToken(ctx context.Context, token string) (*models.AdminSession, error) {
	var out *models.AdminSession
	err := r.db.run(ctx, func() error {
		for _, s := range r.db.adminSessions {
			if s.SessionToken == token && s.IsActive {
				out = cloneAdminSession(s)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *adminSessionRepo) Deactivate(ctx context.Context, id string) (bool, error) {
	var flipped bool
	err := r.db.run(ctx, func() error {
		s, ok := r.db.adminSessions[id]
		if !ok || !s.IsActive {
			return nil
		}
		c := cloneAdminSession(s)
		c.IsActive = false
		r.db.adminSessions[id] = c
		flipped = true
		return nil
	})
	return flipped, err
}

func (r *adminSessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.run(ctx, func() error {
		s, ok := r.db.adminSessions[id]
		if !ok {
			return repository.ErrNotFound
		}
		c := cloneAdminSession(s)
		c.LastActivity = at
		r.db.adminSessions[id] = c
		return nil
	})
}

func (r *adminSessionRepo) ListActiveByBusiness(ctx context.Context, businessID string, now time.Time) ([]*models.AdminSession, error) {
	var out []*models.AdminSession
	err := r.db.run(ctx, func() error {
		for _, s := range r.db.adminSessions {
			if s.BusinessID == businessID && s.IsActive && now.Before(s.ExpiresAt) {
				out = append(out, cloneAdminSession(s))
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *models.AdminSession) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, err
}

func (r *adminSessionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.run(ctx, func() error {
		for id, s := range r.db.adminSessions {
			if s.IsActive && !now.Before(s.ExpiresAt) {
				c := cloneAdminSession(s)
				c.IsActive = false
				r.db.adminSessions[id] = c
				n++
			}
		}
		return nil
	})
	return n, err
}

type staffSessionRepo struct {
	db *DB
}

func (r *staffSessionRepo) Create(ctx context.Context, session *models.StaffSession) error {
	return r.db.run(ctx, func() error {
		if session.ID == "" {
			session.ID = uuid.NewString()
		}
		for _, existing := range r.db.staffSessions {
			if existing.SessionToken == session.SessionToken {
				return fmt.Errorf("staff session token: %w", repository.ErrConflict)
			}
		}
		r.db.staffSessions[session.ID] = cloneStaffSession(session)
		return nil
	})
}

func (r *staffSessionRepo) GetActiveByToken(ctx context.Context, token string) (*models.StaffSession, error) {
	var out *models.StaffSession
	err := r.db.run(ctx, func() error {
		for _, s := range r.db.staffSessions {
			if s.SessionToken == token && s.IsActive {
				out = cloneStaffSession(s)
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r *staffSessionRepo) Close(ctx context.Context, id string, at time.Time) (bool, error) {
	var flipped bool
	err := r.db.run(ctx, func() error {
		s, ok := r.db.staffSessions[id]
		if !ok || !s.IsActive {
			return nil
		}
		r.db.staffSessions[id] = closedCopy(s, at)
		flipped = true
		return nil
	})
	return flipped, err
}

func (r *staffSessionRepo) Touch(ctx context.Context, id string, at time.Time) error {
	return r.db.run(ctx, func() error {
		s, ok := r.db.staffSessions[id]
		if !ok {
			return repository.ErrNotFound
		}
		c := cloneStaffSession(s)
		c.LastActivity = at
		r.db.staffSessions[id] = c
		return nil
	})
}

func (r *staffSessionRepo) CountActiveByShift(ctx context.Context, shiftID string, now time.Time) (int64, error) {
	var n int64
	err := r.db.run(ctx, func() error {
		for _, s := range r.db.staffSessions {
			if s.ShiftID == shiftID && s.IsActive && now.Before(s.ExpiresAt) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *staffSessionRepo) CloseByShifts(ctx context.Context, shiftIDs []string, at time.Time) (int64, error) {
	if len(shiftIDs) == 0 {
		return 0, nil
	}
	var n int64
	err := r.db.run(ctx, func() error {
		for id, s := range r.db.staffSessions {
			if s.IsActive && slices.Contains(shiftIDs, s.ShiftID) {
				r.db.staffSessions[id] = closedCopy(s, at)
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *staffSessionRepo) ListActiveByBusiness(ctx context.Context, businessID string, now time.Time) ([]*models.StaffSession, error) {
	var out []*models.StaffSession
	err := r.db.run(ctx, func() error {
		for _, s := range r.db.staffSessions {
			if s.BusinessID == businessID && s.IsActive && now.Before(s.ExpiresAt) {
				out = append(out, cloneStaffSession(s))
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *models.StaffSession) int {
		if c := b.SignedInAt.Compare(a.SignedInAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, err
}

func (r *staffSessionRepo) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	err := r.db.run(ctx, func() error {
		for id, s := range r.db.staffSessions {
			if s.IsActive && !now.Before(s.ExpiresAt) {
				r.db.staffSessions[id] = closedCopy(s, now)
				n++
			}
		}
		return nil
	})
	return n, err
}

func closedCopy(s *models.StaffSession, at time.Time) *models.StaffSession {
	c := cloneStaffSession(s)
	c.IsActive = false
	c.SignedOutAt = &at
	return c
}
