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

type AdminUserRepository struct {
	baseRepository
}

func NewAdminUserRepository(db *gorm.DB) *AdminUserRepository {
	return &AdminUserRepository{baseRepository{DB: db}}
}

func (r *AdminUserRepository) Create(ctx context.Context, admin *models.AdminUser) error {
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	return translate(r.getDB(ctx).Create(admin).Error, "create admin")
}

func (r *AdminUserRepository) GetActive(ctx context.Context, businessID, adminID string) (*models.AdminUser, error) {
	var admin models.AdminUser
	err := r.getDB(ctx).
		Where("id = ? AND business_id = ? AND is_active", adminID, businessID).
		Take(&admin).Error
	if err != nil {
		return nil, translate(err, "get admin")
	}
	return &admin, nil
}

// RecordFailedLogin mirrors StaffRepository.RecordFailedLogin on admin_users.
func (r *AdminUserRepository) RecordFailedLogin(ctx context.Context, adminID string, now time.Time, threshold int, lockUntil time.Time) (*models.AdminUser, error) {
	db := r.getDB(ctx)

	var admin models.AdminUser
	res := db.
		Model(&admin).
		Clauses(clause.Returning{}).
		Where("id = ? AND (locked_until IS NULL OR locked_until <= ?)", adminID, now).
		Updates(map[string]interface{}{
			"failed_login_attempts": gorm.Expr("failed_login_attempts + 1"),
			"locked_until": gorm.Expr(
				"CASE WHEN failed_login_attempts + 1 >= ? THEN ?::timestamptz ELSE locked_until END",
				threshold, lockUntil,
			),
			"updated_at": now,
		})
	if res.Error != nil {
		return nil, translate(res.Error, "record admin failed login")
	}

	if res.RowsAffected == 0 {
		var exists int64
		if err := db.Model(&models.AdminUser{}).Where("id = ?", adminID).Count(&exists).Error; err != nil {
			return nil, translate(err, "record admin failed login")
		}
		if exists == 0 {
			return nil, repository.ErrNotFound
		}
		return nil, repository.ErrLocked
	}

	return &admin, nil
}

func (r *AdminUserRepository) RecordSuccessfulLogin(ctx context.Context, adminID string, at time.Time) error {
	res := r.getDB(ctx).
		Model(&models.AdminUser{}).
		Where("id = ?", adminID).
		Updates(map[string]interface{}{
			"failed_login_attempts": 0,
			"locked_until":          nil,
			"last_login":            at,
			"login_count":           gorm.Expr("login_count + 1"),
			"updated_at":            at,
		})
	if res.Error != nil {
		return translate(res.Error, "record admin login")
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *AdminUserRepository) UpdatePINHash(ctx context.Context, adminID, pinHash string, at time.Time) error {
	res := r.getDB(ctx).
		Model(&models.AdminUser{}).
		Where("id = ?", adminID).
		Updates(map[string]interface{}{
			"pin_hash":   pinHash,
			"updated_at": at,
		})
	if res.Error != nil {
		return translate(res.Error, "update admin pin hash")
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
