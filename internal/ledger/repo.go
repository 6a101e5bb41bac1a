package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardrail/backend/pkg/db/models"
	"github.com/cardrail/backend/pkg/enums"
)

// Repository manages persistence for transactions and their entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByReference(ctx context.Context, referenceType enums.ReferenceType, referenceID string) (*models.Transaction, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID, from, to time.Time, limit int) ([]models.Transaction, error)
	ListEntriesByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]models.Entry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Create persists the transaction header together with its entries.
func (r *repository) Create(ctx context.Context, txn *models.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Preload("Entries").
		Where("id = ?", id).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindByReference(ctx context.Context, referenceType enums.ReferenceType, referenceID string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).
		Preload("Entries").
		Where("reference_type = ? AND reference_id = ?", referenceType, referenceID).
		First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListByAccountID returns the transactions touching an account inside the
// posted_at window, newest first. Zero bounds leave that side of the window
// open.
func (r *repository) ListByAccountID(ctx context.Context, accountID uuid.UUID, from, to time.Time, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	query := r.db.WithContext(ctx).
		Preload("Entries").
		Joins("JOIN ledger_entries ON ledger_entries.transaction_id = ledger_transactions.id").
		Where("ledger_entries.account_id = ?", accountID)
	if !from.IsZero() {
		query = query.Where("ledger_transactions.posted_at >= ?", from)
	}
	if !to.IsZero() {
		query = query.Where("ledger_transactions.posted_at < ?", to)
	}
	var txns []models.Transaction
	if err := query.
		Group("ledger_transactions.id").
		Order("ledger_transactions.posted_at DESC").
		Limit(limit).
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) ListEntriesByAccount(ctx context.Context, accountID uuid.UUID, from, to time.Time) ([]models.Entry, error) {
	var entries []models.Entry
	if err := r.db.WithContext(ctx).
		Joins("JOIN ledger_transactions ON ledger_transactions.id = ledger_entries.transaction_id").
		Where("ledger_entries.account_id = ?", accountID).
		Where("ledger_transactions.is_sandbox = ?", false).
		Where("ledger_transactions.posted_at >= ? AND ledger_transactions.posted_at < ?", from, to).
		Order("ledger_entries.created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
