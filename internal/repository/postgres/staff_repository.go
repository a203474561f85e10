package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hybrid-auth-service/internal/models"
	"hybrid-auth-service/internal/repository"
)

type StaffRepository struct {
	baseRepository
}

func NewStaffRepository(db *gorm.DB) *StaffRepository {
	return &StaffRepository{baseRepository{DB: db}}
}

func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	if staff.Permissions == nil {
		staff.Permissions = []string{}
	}
	return translate(r.getDB(ctx).Create(staff).Error, "create staff")
}

func (r *StaffRepository) GetActive(ctx context.Context, businessID, staffID string) (*models.Staff, error) {
	var staff models.Staff
	err := r.getDB(ctx).
		Where("id = ? AND business_id = ? AND is_active", staffID, businessID).
		Take(&staff).Error
	if err != nil {
		return nil, translate(err, "get staff")
	}
	return &staff, nil
}

func (r *StaffRepository) GetByID(ctx context.Context, staffID string) (*models.Staff, error) {
	var staff models.Staff
	if err := r.getDB(ctx).Where("id = ?", staffID).Take(&staff).Error; err != nil {
		return nil, translate(err, "get staff")
	}
	return &staff, nil
}

// RecordFailedLogin is a single UPDATE ... RETURNING so concurrent failures
// never lose an increment. Both SET expressions see the pre-update row.
func (r *StaffRepository) RecordFailedLogin(ctx context.Context, staffID string, now time.Time, threshold int, lockUntil time.Time) (*models.Staff, error) {
	db := r.getDB(ctx)

	var staff models.Staff
	res := db.
		Model(&staff).
		Clauses(clause.Returning{}).
		Where("id = ? AND (locked_until IS NULL OR locked_until <= ?)", staffID, now).
		Updates(map[string]interface{}{
			"failed_login_attempts": gorm.Expr("failed_login_attempts + 1"),
			"locked_until": gorm.Expr(
				"CASE WHEN failed_login_attempts + 1 >= ? THEN ?::timestamptz ELSE locked_until END",
				threshold, lockUntil,
			),
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, translate(res.Error, "record failed login")
	}

	if res.RowsAffected == 0 {
		var exists int64
		if err := db.Model(&models.Staff{}).Where("id = ?", staffID).Count(&exists).Error; err != nil {
			return nil, translate(err, "record failed login")
		}
		if exists == 0 {
			return nil, repository.ErrNotFound
		}
		return nil, repository.ErrLocked
	}

	return &staff, nil
}

func (r *StaffRepository) RecordSuccessfulLogin(ctx context.Context, staffID string, at time.Time) error {
	res := r.getDB(ctx).
		Model(&models.Staff{}).
		Where("id = ?", staffID).
		Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"last_login":            at,
			"login_count":           gorm.Expr("login_count + 1"),
			"updated_at":            at,
		})
	if res.Error != nil {
		return translate(res.Error, "record successful login")
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *StaffRepository) UpdatePINHash(ctx context.Context, staffID, pinHash string, at time.Time) error {
	res := r.getDB(ctx).
		Model(&models.Staff{}).
		Where("id = ?", staffID).
		Updates(map[string]interface{}{
			"pin_hash":   pinHash,
			"updated_at": at,
		})
	if res.Error != nil {
		return translate(res.Error, "update pin hash")
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
