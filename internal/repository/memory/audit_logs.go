package memory

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

type auditLogRepo struct {
	db *DB
}

func (r *auditLogRepo) Append(ctx context.Context, entry *models.AuditLog) error {
	return r.db.run(ctx, func() error {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		r.db.auditLogs = append(r.db.auditLogs, cloneAuditLog(entry))
		return nil
	})
}

func (r *auditLogRepo) ListByBusiness(ctx context.Context, businessID string, filter repository.AuditFilter) ([]*models.AuditLog, error) {
	var matched []*models.AuditLog
	err := r.db.run(ctx, func() error {
		for _, e := range r.db.auditLogs {
			if e.BusinessID != businessID || !matches(e, filter) {
				continue
			}
			matched = append(matched, cloneAuditLog(e))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// newest first; the slice is append-ordered so reverse keeps ties stable
	slices.Reverse(matched)
	slices.SortStableFunc(matched, func(a, b *models.AuditLog) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*models.AuditLog{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func matches(e *models.AuditLog, f repository.AuditFilter) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.StaffID != "" && (e.StaffID == nil || *e.StaffID != f.StaffID) {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}

func (r *auditLogRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.run(ctx, func() error {
		kept := make([]*models.AuditLog, 0, len(r.db.auditLogs))
		for _, e := range r.db.auditLogs {
			if e.CreatedAt.Before(cutoff) {
				n++
				continue
			}
			kept = append(kept, e)
		}
		r.db.auditLogs = kept
		return nil
	})
	return n, err
}
