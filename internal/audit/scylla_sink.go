package audit

import (
	"context"
	"time"

	"hybrid-auth-service/internal/models"
)

type timelineStore interface {
	Insert(ctx context.Context, event *models.SecurityEvent) error
	ListByBusiness(ctx context.Context, businessID string, since, until time.Time, limit int) ([]*models.SecurityEvent, error)
}

// ScyllaSink keeps the security timeline. Routine events such as sign-ins
// are skipped; only entries flagged as security events are written.
type ScyllaSink struct {
	store timelineStore
}

func NewScyllaSink(store timelineStore) *ScyllaSink {
	return &ScyllaSink{store: store}
}

func (s *ScyllaSink) Name() string { return "scylla" }

func (s *ScyllaSink) Write(ctx context.Context, entry *models.AuditLog) error {
	if !entry.IsSecurityEvent() {
		return nil
	}
	return s.store.Insert(ctx, &models.SecurityEvent{
		EventTime:  entry.CreatedAt,
		EventID:    entry.ID,
		BusinessID: entry.BusinessID,
		EventType:  entry.Action,
		Severity:   string(entry.Severity),
		StaffID:    deref(entry.StaffID),
		AdminID:    deref(entry.AdminID),
		IPAddress:  deref(entry.IPAddress),
		Details:    string(entry.Details),
	})
}

func (s *ScyllaSink) Timeline(ctx context.Context, businessID string, since, until time.Time, limit int) ([]*models.SecurityEvent, error) {
	return s.store.ListByBusiness(ctx, businessID, since, until, limit)
}
