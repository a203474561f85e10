package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"hybrid-auth-service/internal/repository"
)

type baseRepository struct {
	DB *gorm.DB
}

// getDB returns the transaction carried by ctx, or the pool.
func (r *baseRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(repository.TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB.WithContext(ctx)
}

type Transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

// WithinTransaction runs fn in a new transaction, or in the one already carried by ctx.
func (t *Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if tx, ok := ctx.Value(repository.TxContextKey).(*gorm.DB); ok && tx != nil {
		return fn(ctx)
	}

	tx := t.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()

	if err := fn(context.WithValue(ctx, repository.TxContextKey, tx)); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return translate(err, "commit transaction")
	}
	return nil
}
