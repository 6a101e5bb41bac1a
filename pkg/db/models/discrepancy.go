package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardrail/backend/pkg/enums"
)

// Discrepancy is one detected mismatch between the external settlement feed
// and the internal ledger. TransactionID is nil when the ledger has no
// transaction for the external token.
type Discrepancy struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SettlementReportID uuid.UUID               `gorm:"column:settlement_report_id;type:uuid;not null;index"`
	TransactionID      *uuid.UUID              `gorm:"column:transaction_id;type:uuid"`
	ExternalToken      string                  `gorm:"column:external_token;not null"`
	ExternalAmount     decimal.Decimal         `gorm:"column:external_amount;type:numeric(20,4);not null"`
	LedgerAmount       decimal.Decimal         `gorm:"column:ledger_amount;type:numeric(20,4);not null"`
	Reason             enums.DiscrepancyReason `gorm:"column:reason;type:discrepancy_reason;not null"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (Discrepancy) TableName() string {
	return "settlement_discrepancies"
}
