package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardrail/backend/pkg/db/models"
)

// Repository manages settlement reports and their discrepancies.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateReport(ctx context.Context, report *models.SettlementReport) error
	FindReportByDate(ctx context.Context, date time.Time) (*models.SettlementReport, error)
	UpdateReport(ctx context.Context, report *models.SettlementReport) error
	DeleteDiscrepancies(ctx context.Context, reportID uuid.UUID) error
	CreateDiscrepancies(ctx context.Context, discrepancies []models.Discrepancy) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reconciliation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateReport(ctx context.Context, report *models.SettlementReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

func (r *repository) FindReportByDate(ctx context.Context, date time.Time) (*models.SettlementReport, error) {
	var report models.SettlementReport
	if err := r.db.WithContext(ctx).
		Preload("Discrepancies").
		Where("date = ?", date).
		First(&report).Error; err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *repository) UpdateReport(ctx context.Context, report *models.SettlementReport) error {
	return r.db.WithContext(ctx).
		Model(&models.SettlementReport{}).
		Where("id = ?", report.ID).
		Updates(map[string]any{
			"status":               report.Status,
			"total_amount_settled": report.TotalAmountSettled,
			"transactions_count":   report.TransactionsCount,
		}).Error
}

func (r *repository) DeleteDiscrepancies(ctx context.Context, reportID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("settlement_report_id = ?", reportID).
		Delete(&models.Discrepancy{}).Error
}

func (r *repository) CreateDiscrepancies(ctx context.Context, discrepancies []models.Discrepancy) error {
	if len(discrepancies) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&discrepancies).Error
}
