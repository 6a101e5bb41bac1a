package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/cardrail/backend/pkg/enums"
)

// Transaction is the immutable header of one atomic economic event.
// Corrections are posted as new reversing transactions, never as updates.
type Transaction struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReferenceType enums.ReferenceType `gorm:"column:reference_type;type:ledger_reference_type;not null"`
	ReferenceID   string              `gorm:"column:reference_id;index"`
	Description   string              `gorm:"column:description"`
	IsSandbox     bool                `gorm:"column:is_sandbox;not null;default:false"`
	PostedAt      time.Time           `gorm:"column:posted_at;autoCreateTime;index"`

	Entries []Entry `gorm:"foreignKey:TransactionID"`
}

func (Transaction) TableName() string {
	return "ledger_transactions"
}
