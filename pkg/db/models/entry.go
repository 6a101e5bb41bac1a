package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardrail/backend/pkg/enums"
)

// Entry is one debit or credit leg of a transaction, append-only.
type Entry struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID uuid.UUID       `gorm:"column:transaction_id;type:uuid;not null;index"`
	AccountID     uuid.UUID       `gorm:"column:account_id;type:uuid;not null;index"`
	Type          enums.EntryType `gorm:"column:type;type:ledger_entry_type;not null"`
	Amount        decimal.Decimal `gorm:"column:amount;type:numeric(20,4);not null"`
	Currency      enums.Currency  `gorm:"column:currency;not null;default:'USD'"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (Entry) TableName() string {
	return "ledger_entries"
}
