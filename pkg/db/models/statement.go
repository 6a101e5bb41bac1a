package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Statement summarizes one account's activity over a closed period.
// Regenerating a period replaces the existing row.
type Statement struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID    uuid.UUID       `gorm:"column:account_id;type:uuid;not null;uniqueIndex:ux_statements_account_period"`
	PeriodStart  time.Time       `gorm:"column:period_start;type:date;not null;uniqueIndex:ux_statements_account_period"`
	PeriodEnd    time.Time       `gorm:"column:period_end;type:date;not null"`
	TotalDebits  decimal.Decimal `gorm:"column:total_debits;type:numeric(20,4);not null;default:0"`
	TotalCredits decimal.Decimal `gorm:"column:total_credits;type:numeric(20,4);not null;default:0"`
	LineCount    int             `gorm:"column:line_count;not null;default:0"`
	GeneratedAt  time.Time       `gorm:"column:generated_at;autoCreateTime"`
}

func (Statement) TableName() string {
	return "account_statements"
}
