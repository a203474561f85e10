package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"hybrid-auth-service/internal/models"
)

type AdminSessionRepository struct {
	baseRepository
}

func NewAdminSessionRepository(db *gorm.DB) *AdminSessionRepository {
	return &AdminSessionRepository{baseRepository{DB: db}}
}

func (r *AdminSessionRepository) Create(ctx context.Context, session *models.AdminSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	return translate(r.getDB(ctx).Create(session).Error, "create admin session")
}

func (r *AdminSessionRepository) GetActiveByToken(ctx context.Context, token string) (*models.AdminSession, error) {
	var session models.AdminSession
	err := r.getDB(ctx).
		Where("session_token = ? AND is_active", token).
		Take(&session).Error
	if err != nil {
		return nil, translate(err, "get admin session")
	}
	return &session, nil
}

func (r *AdminSessionRepository) Deactivate(ctx context.Context, id string) (bool, error) {
	res := r.getDB(ctx).
		Model(&models.AdminSession{}).
		Where("id = ? AND is_active", id).
		Update("is_active", false)
	if res.Error != nil {
		return false, translate(res.Error, "deactivate admin session")
	}
	return res.RowsAffected == 1, nil
}

func (r *AdminSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	err := r.getDB(ctx).
		Model(&models.AdminSession{}).
		Where("id = ?", id).
		Update("last_activity", at).Error
	return translate(err, "touch admin session")
}

func (r *AdminSessionRepository) ListActiveByBusiness(ctx context.Context, businessID string, now time.Time) ([]*models.AdminSession, error) {
	var sessions []*models.AdminSession
	err := r.getDB(ctx).
		Where("business_id = ? AND is_active AND expires_at > ?", businessID, now).
		Order("created_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, translate(err, "list admin sessions")
	}
	return sessions, nil
}

func (r *AdminSessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.getDB(ctx).
		Model(&models.AdminSession{}).
		Where("is_active AND expires_at <= ?", now).
		Update("is_active", false)
	if res.Error != nil {
		return 0, translate(res.Error, "deactivate expired admin sessions")
	}
	return res.RowsAffected, nil
}

type StaffSessionRepository struct {
	baseRepository
}

func NewStaffSessionRepository(db *gorm.DB) *StaffSessionRepository {
	return &StaffSessionRepository{baseRepository{DB: db}}
}

func (r *StaffSessionRepository) Create(ctx context.Context, session *models.StaffSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	return translate(r.getDB(ctx).Create(session).Error, "create staff session")
}

func (r *StaffSessionRepository) GetActiveByToken(ctx context.Context, token string) (*models.StaffSession, error) {
	var session models.StaffSession
	err := r.getDB(ctx).
		Where("session_token = ? AND is_active", token).
		Take(&session).Error
	if err != nil {
		return nil, translate(err, "get staff session")
	}
	return &session, nil
}

func (r *StaffSessionRepository) Close(ctx context.Context, id string, at time.Time) (bool, error) {
	res := r.getDB(ctx).
		Model(&models.StaffSession{}).
		Where("id = ? AND is_active", id).
		Updates(map[string]interface{}{
			"is_active":     false,
			"signed_out_at": at,
		})
	if res.Error != nil {
		return false, translate(res.Error, "close staff session")
	}
	return res.RowsAffected == 1, nil
}

func (r *StaffSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	err := r.getDB(ctx).
		Model(&models.StaffSession{}).
		Where("id = ?", id).
		Update("last_activity", at).Error
	return translate(err, "touch staff session")
}

func (r *StaffSessionRepository) CountActiveByShift(ctx context.Context, shiftID string, now time.Time) (int64, error) {
	var count int64
	err := r.getDB(ctx).
		Model(&models.StaffSession{}).
		Where("shift_id = ? AND is_active AND expires_at > ?", shiftID, now).
		Count(&count).Error
	if err != nil {
		return 0, translate(err, "count staff sessions")
	}
	return count, nil
}

func (r *StaffSessionRepository) CloseByShifts(ctx context.Context, shiftIDs []string, at time.Time) (int64, error) {
	if len(shiftIDs) == 0 {
		return 0, nil
	}
	res := r.getDB(ctx).
		Model(&models.StaffSession{}).
		Where("shift_id IN ? AND is_active", shiftIDs).
		Updates(map[string]interface{}{
			"is_active":     false,
			"signed_out_at": at,
		})
	if res.Error != nil {
		return 0, translate(res.Error, "close shift sessions")
	}
	return res.RowsAffected, nil
}

func (r *StaffSessionRepository) ListActiveByBusiness(ctx context.Context, businessID string, now time.Time) ([]*models.StaffSession, error) {
	var sessions []*models.StaffSession
	err := r.getDB(ctx).
		Where("business_id = ? AND is_active AND expires_at > ?", businessID, now).
		Order("signed_in_at DESC").
		Find(&sessions).Error
	if err != nil {
		return nil, translate(err, "list staff sessions")
	}
	return sessions, nil
}

func (r *StaffSessionRepository) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.getDB(ctx).
		Model(&models.StaffSession{}).
		Where("is_active AND expires_at <= ?", now).
		Updates(map[string]interface{}{
			"is_active":     false,
			"signed_out_at": now,
		})
	if res.Error != nil {
		return 0, translate(res.Error, "close expired staff sessions")
	}
	return res.RowsAffected, nil
}
