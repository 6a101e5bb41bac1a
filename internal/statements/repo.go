package statements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardrail/backend/pkg/db/models"
)

// Repository manages persistence for generated statements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Replace(ctx context.Context, statement *models.Statement) error
	FindByAccountPeriod(ctx context.Context, accountID uuid.UUID, periodStart time.Time) (*models.Statement, error)
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Statement, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a statements repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Replace swaps out any prior statement for the same account and period.
func (r *repository) Replace(ctx context.Context, statement *models.Statement) error {
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND period_start = ?", statement.AccountID, statement.PeriodStart).
		Delete(&models.Statement{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(statement).Error
}

func (r *repository) FindByAccountPeriod(ctx context.Context, accountID uuid.UUID, periodStart time.Time) (*models.Statement, error) {
	var statement models.Statement
	if err := r.db.WithContext(ctx).
		Where("account_id = ? AND period_start = ?", accountID, periodStart).
		First(&statement).Error; err != nil {
		return nil, err
	}
	return &statement, nil
}

func (r *repository) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]models.Statement, error) {
	var statements []models.Statement
	if err := r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("period_start DESC").
		Find(&statements).Error; err != nil {
		return nil, err
	}
	return statements, nil
}
