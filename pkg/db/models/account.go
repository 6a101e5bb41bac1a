package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardrail/backend/pkg/enums"
)

// Account is one row of the chart of accounts with its running balance.
// The balance is mutated only by the ledger engine, one atomic increment
// per posted entry; sandbox entries never touch it.
type Account struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string            `gorm:"column:name;not null"`
	Code      string            `gorm:"column:code;not null;unique"`
	Type      enums.AccountType `gorm:"column:type;type:ledger_account_type;not null"`
	OwnerID   *uuid.UUID        `gorm:"column:owner_id;type:uuid;index"`
	Currency  enums.Currency    `gorm:"column:currency;not null;default:'USD'"`
	Balance   decimal.Decimal   `gorm:"column:balance;type:numeric(20,4);not null;default:0"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Account) TableName() string {
	return "ledger_accounts"
}
