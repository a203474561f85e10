package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

const maxAuditPage = 500

type AuditLogRepository struct {
	baseRepository
}

func NewAuditLogRepository(db *gorm.DB) *AuditLogRepository {
	return &AuditLogRepository{baseRepository{DB: db}}
}

func (r *AuditLogRepository) Append(ctx context.Context, entry *models.AuditLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return translate(r.getDB(ctx).Create(entry).Error, "append audit log")
}

func (r *AuditLogRepository) ListByBusiness(ctx context.Context, businessID string, filter repository.AuditFilter) ([]*models.AuditLog, error) {
	query := r.getDB(ctx).Where("business_id = ?", businessID)

	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Severity != "" {
		query = query.Where("severity = ?", filter.Severity)
	}
	if filter.StaffID != "" {
		query = query.Where("staff_id = ?", filter.StaffID)
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}
	if !filter.Until.IsZero() {
		query = query.Where("created_at < ?", filter.Until)
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxAuditPage {
		limit = maxAuditPage
	}

	var entries []*models.AuditLog
	err := query.
		Order("created_at DESC").
		Limit(limit).
		Offset(filter.Offset).
		Find(&entries).Error
	if err != nil {
		return nil, translate(err, "list audit logs")
	}
	return entries, nil
}

func (r *AuditLogRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.getDB(ctx).Where("created_at < ?", cutoff).Delete(&models.AuditLog{})
	if res.Error != nil {
		return 0, translate(res.Error, "purge audit logs")
	}
	return res.RowsAffected, nil
}
