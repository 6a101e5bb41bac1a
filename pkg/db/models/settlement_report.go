package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardrail/backend/pkg/enums"
)

// SettlementReport is the result of one reconciliation run for a calendar
// date. Re-runs upsert the same row, keyed by date.
type SettlementReport struct {
	ID                 uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Date               time.Time              `gorm:"column:date;type:date;not null;unique"`
	Status             enums.SettlementStatus `gorm:"column:status;type:settlement_status;not null;default:'PROCESSING'"`
	TotalAmountSettled decimal.Decimal        `gorm:"column:total_amount_settled;type:numeric(20,4);not null;default:0"`
	TransactionsCount  int                    `gorm:"column:transactions_count;not null;default:0"`
	CreatedAt          time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time              `gorm:"column:updated_at;autoUpdateTime"`

	Discrepancies []Discrepancy `gorm:"foreignKey:SettlementReportID"`
}

func (SettlementReport) TableName() string {
	return "settlement_reports"
}
