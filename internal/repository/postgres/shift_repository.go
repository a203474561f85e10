package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hybrid-auth-service/internal/models"
)

type ShiftRepository struct {
	baseRepository
}

func NewShiftRepository(db *gorm.DB) *ShiftRepository {
	return &ShiftRepository{baseRepository{DB: db}}
}

func (r *ShiftRepository) GetActiveByBusiness(ctx context.Context, businessID string) (*models.Shift, error) {
	var shift models.Shift
	err := r.getDB(ctx).
		Where("business_id = ? AND is_active", businessID).
		Take(&shift).Error
	if err != nil {
		return nil, translate(err, "get active shift")
	}
	return &shift, nil
}

// LockActiveByBusiness takes SELECT ... FOR UPDATE on the active shift row.
// Concurrent staff sign-ins for the business queue behind it, which keeps the
// capacity count and the session insert consistent.
func (r *ShiftRepository) LockActiveByBusiness(ctx context.Context, businessID string) (*models.Shift, error) {
	var shift models.Shift
	err := r.getDB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND is_active", businessID).
		Take(&shift).Error
	if err != nil {
		return nil, translate(err, "lock active shift")
	}
	return &shift, nil
}

func (r *ShiftRepository) DeactivateActiveByBusiness(ctx context.Context, businessID string, endedAt time.Time) ([]string, error) {
	var ended []models.Shift
	err := r.getDB(ctx).
		Model(&ended).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "id"}}}).
		Where("business_id = ? AND is_active", businessID).
		Updates(map[string]interface{}{
			"is_active": false,
			"ended_at":  endedAt,
		}).Error
	if err != nil {
		return nil, translate(err, "deactivate shifts")
	}

	ids := make([]string, 0, len(ended))
	for _, s := range ended {
		ids = append(ids, s.ID)
	}
	return ids, nil
}

// Create relies on idx_shifts_one_active_per_business; a second active shift
// surfaces as repository.ErrConflict.
func (r *ShiftRepository) Create(ctx context.Context, shift *models.Shift) error {
	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}
	return translate(r.getDB(ctx).Create(shift).Error, "create shift")
}

func (r *ShiftRepository) EndOwned(ctx context.Context, shiftID, adminID string, endedAt time.Time) (*models.Shift, error) {
	db := r.getDB(ctx)

	var shift models.Shift
	err := db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND admin_id = ?", shiftID, adminID).
		Take(&shift).Error
	if err != nil {
		return nil, translate(err, "get shift")
	}

	if !shift.IsActive {
		return &shift, nil
	}

	err = db.Model(&shift).Updates(map[string]interface{}{
		"is_active": false,
		"ended_at":  endedAt,
	}).Error
	if err != nil {
		return nil, translate(err, "end shift")
	}

	shift.IsActive = false
	shift.EndedAt = &endedAt
	return &shift, nil
}

func (r *ShiftRepository) ListDueForAutoEnd(ctx context.Context, now time.Time) ([]*models.Shift, error) {
	var shifts []*models.Shift
	err := r.getDB(ctx).
		Where("is_active AND auto_end_time IS NOT NULL AND auto_end_time <= ?", now).
		Order("auto_end_time ASC").
		Find(&shifts).Error
	if err != nil {
		return nil, translate(err, "list due shifts")
	}
	return shifts, nil
}
