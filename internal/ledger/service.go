package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cardrail/backend/internal/accounts"
	"github.com/cardrail/backend/internal/notifications"
	"github.com/cardrail/backend/pkg/db/models"
	"github.com/cardrail/backend/pkg/enums"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
	"github.com/cardrail/backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service posts balanced transactions and reads account activity.
type Service interface {
	RecordTransaction(ctx context.Context, input RecordTransactionInput) (*models.Transaction, error)
	RecordWalletLoad(ctx context.Context, input WalletMovementInput) (*models.Transaction, error)
	RecordCardSpend(ctx context.Context, input WalletMovementInput) (*models.Transaction, error)
	RecordCommission(ctx context.Context, input WalletMovementInput) (*models.Transaction, error)
	ReverseTransaction(ctx context.Context, transactionID uuid.UUID, description string) (*models.Transaction, error)
	GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	GetAccountTransactions(ctx context.Context, accountID uuid.UUID, from, to time.Time, limit int) ([]models.Transaction, error)
}

type service struct {
	tx           txRunner
	repo         Repository
	accountsRepo accounts.Repository
	accountsSvc  accounts.Service
	notifier     notifications.Notifier
	metrics      *metrics.LedgerMetrics
}

// EntryInput is one leg of a transaction request.
type EntryInput struct {
	AccountID uuid.UUID
	Type      enums.EntryType
	Amount    decimal.Decimal
	Currency  enums.Currency
}

// RecordTransactionInput captures a full double-entry posting request.
type RecordTransactionInput struct {
	ReferenceType enums.ReferenceType
	ReferenceID   string
	Description   string
	IsSandbox     bool
	Entries       []EntryInput
}

// WalletMovementInput captures the wallet-centric convenience operations.
type WalletMovementInput struct {
	OwnerID     uuid.UUID
	Amount      decimal.Decimal
	Currency    enums.Currency
	ReferenceID string
	Description string
	IsSandbox   bool
}

// NewService wires a ledger service with its collaborators.
func NewService(tx txRunner, repo Repository, accountsRepo accounts.Repository, accountsSvc accounts.Service, notifier notifications.Notifier, ledgerMetrics *metrics.LedgerMetrics) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if accountsRepo == nil {
		return nil, fmt.Errorf("account repository required")
	}
	if accountsSvc == nil {
		return nil, fmt.Errorf("account service required")
	}
	if notifier == nil {
		notifier = notifications.NoopNotifier{}
	}
	return &service{
		tx:           tx,
		repo:         repo,
		accountsRepo: accountsRepo,
		accountsSvc:  accountsSvc,
		notifier:     notifier,
		metrics:      ledgerMetrics,
	}, nil
}

// RecordTransaction validates, persists and applies one balanced transaction.
// Validation happens before any write; a rejected transaction leaves no rows
// behind. Sandbox transactions persist entries but never move balances.
func (s *service) RecordTransaction(ctx context.Context, input RecordTransactionInput) (*models.Transaction, error) {
	start := time.Now()
	if err := validateInput(input); err != nil {
		s.metrics.IncRejected(string(input.ReferenceType), string(pkgerrors.As(err).Code()))
		return nil, err
	}

	txn := &models.Transaction{
		ReferenceType: input.ReferenceType,
		ReferenceID:   input.ReferenceID,
		Description:   input.Description,
		IsSandbox:     input.IsSandbox,
	}
	for _, entry := range input.Entries {
		txn.Entries = append(txn.Entries, models.Entry{
			AccountID: entry.AccountID,
			Type:      entry.Type,
			Amount:    entry.Amount,
			Currency:  entry.Currency,
		})
	}

	var touched []models.Account
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		accountsRepo := s.accountsRepo.WithTx(tx)

		loaded := map[uuid.UUID]*models.Account{}
		for _, entry := range input.Entries {
			if _, ok := loaded[entry.AccountID]; ok {
				continue
			}
			account, err := accountsRepo.FindByID(ctx, entry.AccountID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound,
						fmt.Sprintf("account %s not found", entry.AccountID))
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading account")
			}
			if account.Currency != entry.Currency {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("entry currency %s does not match account %s", entry.Currency, account.Code))
			}
			loaded[entry.AccountID] = account
		}

		if err := repo.Create(ctx, txn); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persisting transaction")
		}

		if input.IsSandbox {
			return nil
		}

		for _, entry := range input.Entries {
			account := loaded[entry.AccountID]
			delta := accounts.SignedDelta(account.Type, entry.Type, entry.Amount)
			if err := accountsRepo.ApplyDelta(ctx, entry.AccountID, delta); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "applying balance delta")
			}
		}

		for _, account := range loaded {
			touched = append(touched, *account)
		}
		return nil
	})
	if err != nil {
		if appErr := pkgerrors.As(err); appErr != nil {
			s.metrics.IncRejected(string(input.ReferenceType), string(appErr.Code()))
		} else {
			s.metrics.IncRejected(string(input.ReferenceType), string(pkgerrors.CodeInternal))
		}
		return nil, err
	}

	s.metrics.IncPosted(string(input.ReferenceType))
	s.metrics.ObservePostDuration(string(input.ReferenceType), time.Since(start))

	for _, account := range touched {
		// Platform accounts have no owner to notify.
		if account.OwnerID == nil {
			continue
		}
		s.notifier.BalanceChanged(ctx, notifications.BalanceEvent{
			AccountID:     account.ID,
			AccountCode:   account.Code,
			OwnerID:       account.OwnerID,
			TransactionID: txn.ID,
			ReferenceType: input.ReferenceType,
			OccurredAt:    time.Now().UTC(),
		})
	}
	return txn, nil
}

// RecordWalletLoad funds an owner's wallet from the operating account.
func (s *service) RecordWalletLoad(ctx context.Context, input WalletMovementInput) (*models.Transaction, error) {
	wallet, operating, err := s.resolveWalletPair(ctx, input, accounts.CodeOperating)
	if err != nil {
		return nil, err
	}
	return s.RecordTransaction(ctx, RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeWalletLoad,
		ReferenceID:   input.ReferenceID,
		Description:   describe(input.Description, "wallet load"),
		IsSandbox:     input.IsSandbox,
		Entries: []EntryInput{
			{AccountID: operating.ID, Type: enums.EntryTypeDebit, Amount: input.Amount, Currency: input.Currency},
			{AccountID: wallet.ID, Type: enums.EntryTypeCredit, Amount: input.Amount, Currency: input.Currency},
		},
	})
}

// RecordCardSpend moves funds from an owner's wallet into settlement clearing.
func (s *service) RecordCardSpend(ctx context.Context, input WalletMovementInput) (*models.Transaction, error) {
	wallet, settlement, err := s.resolveWalletPair(ctx, input, accounts.CodeSettlement)
	if err != nil {
		return nil, err
	}
	return s.RecordTransaction(ctx, RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeCardSpend,
		ReferenceID:   input.ReferenceID,
		Description:   describe(input.Description, "card spend"),
		IsSandbox:     input.IsSandbox,
		Entries: []EntryInput{
			{AccountID: wallet.ID, Type: enums.EntryTypeDebit, Amount: input.Amount, Currency: input.Currency},
			{AccountID: settlement.ID, Type: enums.EntryTypeCredit, Amount: input.Amount, Currency: input.Currency},
		},
	})
}

// RecordCommission charges platform fees against an owner's wallet.
func (s *service) RecordCommission(ctx context.Context, input WalletMovementInput) (*models.Transaction, error) {
	wallet, revenue, err := s.resolveWalletPair(ctx, input, accounts.CodeFeeRevenue)
	if err != nil {
		return nil, err
	}
	return s.RecordTransaction(ctx, RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeCommission,
		ReferenceID:   input.ReferenceID,
		Description:   describe(input.Description, "commission"),
		IsSandbox:     input.IsSandbox,
		Entries: []EntryInput{
			{AccountID: wallet.ID, Type: enums.EntryTypeDebit, Amount: input.Amount, Currency: input.Currency},
			{AccountID: revenue.ID, Type: enums.EntryTypeCredit, Amount: input.Amount, Currency: input.Currency},
		},
	})
}

// ReverseTransaction posts a compensating transaction with every entry
// flipped. The original rows are never touched.
func (s *service) ReverseTransaction(ctx context.Context, transactionID uuid.UUID, description string) (*models.Transaction, error) {
	if transactionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}

	original, err := s.repo.FindByID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading transaction")
	}
	if original.ReferenceType == enums.ReferenceTypeReversal {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "reversals cannot be reversed")
	}

	input := RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeReversal,
		ReferenceID:   original.ID.String(),
		Description:   describe(description, fmt.Sprintf("reversal of %s", original.ID)),
		IsSandbox:     original.IsSandbox,
	}
	for _, entry := range original.Entries {
		input.Entries = append(input.Entries, EntryInput{
			AccountID: entry.AccountID,
			Type:      flip(entry.Type),
			Amount:    entry.Amount,
			Currency:  entry.Currency,
		})
	}
	return s.RecordTransaction(ctx, input)
}

func (s *service) GetTransaction(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id is required")
	}
	txn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading transaction")
	}
	return txn, nil
}

// GetAccountTransactions lists the transactions touching an account inside
// the optional posted_at window. Zero bounds leave that side open.
func (s *service) GetAccountTransactions(ctx context.Context, accountID uuid.UUID, from, to time.Time, limit int) ([]models.Transaction, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end date must not be before start date")
	}
	txns, err := s.repo.ListByAccountID(ctx, accountID, from, to, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing transactions")
	}
	return txns, nil
}

func (s *service) resolveWalletPair(ctx context.Context, input WalletMovementInput, platformCode string) (*models.Account, *models.Account, error) {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	wallet, err := s.accountsSvc.GetOrCreateWalletAccount(ctx, input.OwnerID, input.Currency)
	if err != nil {
		return nil, nil, err
	}
	platform, err := s.accountsSvc.GetByCode(ctx, platformCode)
	if err != nil {
		return nil, nil, err
	}
	return wallet, platform, nil
}

// validateInput enforces the structural invariants before any row is written.
func validateInput(input RecordTransactionInput) error {
	if !input.ReferenceType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid reference type %q", input.ReferenceType))
	}
	if len(input.Entries) < 2 {
		return pkgerrors.New(pkgerrors.CodeUnbalanced, "a transaction requires at least two entries")
	}

	debits := map[enums.Currency]decimal.Decimal{}
	credits := map[enums.Currency]decimal.Decimal{}
	for _, entry := range input.Entries {
		if entry.AccountID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "entry account id is required")
		}
		if !entry.Type.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid entry type %q", entry.Type))
		}
		if !entry.Currency.IsValid() {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("invalid currency %q", entry.Currency))
		}
		if entry.Amount.LessThanOrEqual(decimal.Zero) {
			return pkgerrors.New(pkgerrors.CodeValidation, "entry amounts must be positive")
		}
		if entry.Type == enums.EntryTypeDebit {
			debits[entry.Currency] = debits[entry.Currency].Add(entry.Amount)
		} else {
			credits[entry.Currency] = credits[entry.Currency].Add(entry.Amount)
		}
	}

	for currency, debit := range debits {
		if !debit.Equal(credits[currency]) {
			return pkgerrors.New(pkgerrors.CodeUnbalanced,
				fmt.Sprintf("%s debits %s do not equal credits %s", currency, debit, credits[currency]))
		}
	}
	for currency, credit := range credits {
		if _, ok := debits[currency]; !ok {
			return pkgerrors.New(pkgerrors.CodeUnbalanced,
				fmt.Sprintf("%s credits %s have no matching debits", currency, credit))
		}
	}
	return nil
}

func flip(entryType enums.EntryType) enums.EntryType {
	if entryType == enums.EntryTypeDebit {
		return enums.EntryTypeCredit
	}
	return enums.EntryTypeDebit
}

func describe(provided, fallback string) string {
	if provided != "" {
		return provided
	}
	return fallback
}
