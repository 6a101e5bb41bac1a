package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/cardrail/backend/internal/accounts"
	"github.com/cardrail/backend/internal/notifications"
	"github.com/cardrail/backend/pkg/db/models"
	"github.com/cardrail/backend/pkg/enums"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
)

func setupLedgerTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schemas := []string{`
CREATE TABLE IF NOT EXISTS ledger_accounts (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  code TEXT NOT NULL UNIQUE,
  type TEXT NOT NULL,
  owner_id TEXT,
  currency TEXT NOT NULL DEFAULT 'USD',
  balance NUMERIC NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS ledger_transactions (
  id TEXT PRIMARY KEY,
  reference_type TEXT NOT NULL,
  reference_id TEXT,
  description TEXT,
  is_sandbox INTEGER NOT NULL DEFAULT 0,
  posted_at DATETIME
);`, `
CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  transaction_id TEXT NOT NULL,
  account_id TEXT NOT NULL,
  type TEXT NOT NULL,
  amount NUMERIC NOT NULL,
  currency TEXT NOT NULL DEFAULT 'USD',
  created_at DATETIME
);`}
	for _, schema := range schemas {
		require.NoError(t, db.Exec(schema).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := g.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return tx.Error
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit().Error
}

type recordingNotifier struct {
	events []notifications.BalanceEvent
}

func (r *recordingNotifier) BalanceChanged(_ context.Context, event notifications.BalanceEvent) {
	r.events = append(r.events, event)
}

type ledgerFixture struct {
	db       *gorm.DB
	svc      Service
	notifier *recordingNotifier
	accounts accounts.Repository
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	db := setupLedgerTestDB(t)
	accountsRepo := accounts.NewRepository(db)
	accountsSvc, err := accounts.NewService(accountsRepo)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	svc, err := NewService(gormTxRunner{db: db}, NewRepository(db), accountsRepo, accountsSvc, notifier, nil)
	require.NoError(t, err)

	return &ledgerFixture{db: db, svc: svc, notifier: notifier, accounts: accountsRepo}
}

func (f *ledgerFixture) seedAccount(t *testing.T, code string, accountType enums.AccountType) *models.Account {
	t.Helper()

	account := &models.Account{
		ID:       uuid.New(),
		Name:     code,
		Code:     code,
		Type:     accountType,
		Currency: enums.CurrencyUSD,
		Balance:  decimal.Zero,
	}
	require.NoError(t, f.db.Create(account).Error)
	return account
}

func (f *ledgerFixture) seedPlatformAccounts(t *testing.T) (operating, settlement, revenue *models.Account) {
	t.Helper()
	operating = f.seedAccount(t, accounts.CodeOperating, enums.AccountTypeAsset)
	settlement = f.seedAccount(t, accounts.CodeSettlement, enums.AccountTypeAsset)
	revenue = f.seedAccount(t, accounts.CodeFeeRevenue, enums.AccountTypeRevenue)
	return operating, settlement, revenue
}

func (f *ledgerFixture) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	account, err := f.accounts.FindByID(context.Background(), id)
	require.NoError(t, err)
	return account.Balance
}

func (f *ledgerFixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(model).Count(&count).Error)
	return count
}

func TestRecordTransactionMovesBalances(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	operating := f.seedAccount(t, accounts.CodeOperating, enums.AccountTypeAsset)
	ownerID := uuid.New()
	wallet := f.seedAccount(t, "2000-WALLET-TEST0001", enums.AccountTypeLiability)
	require.NoError(t, f.db.Model(wallet).Update("owner_id", ownerID).Error)

	amount := decimal.RequireFromString("100.00")
	txn, err := f.svc.RecordTransaction(ctx, RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeWalletLoad,
		ReferenceID:   "load-1",
		Entries: []EntryInput{
			{AccountID: operating.ID, Type: enums.EntryTypeDebit, Amount: amount, Currency: enums.CurrencyUSD},
			{AccountID: wallet.ID, Type: enums.EntryTypeCredit, Amount: amount, Currency: enums.CurrencyUSD},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, txn)
	assert.Len(t, txn.Entries, 2)

	assert.True(t, f.balance(t, operating.ID).Equal(amount), "asset account must grow on debit")
	assert.True(t, f.balance(t, wallet.ID).Equal(amount), "liability account must grow on credit")

	// Only the owner-backed wallet is notified; the platform account has
	// nobody to tell.
	require.Len(t, f.notifier.events, 1)
	assert.Equal(t, wallet.ID, f.notifier.events[0].AccountID)
	require.NotNil(t, f.notifier.events[0].OwnerID)
	assert.Equal(t, ownerID, *f.notifier.events[0].OwnerID)
}

func TestRecordTransactionRejectsUnbalancedEntries(t *testing.T) {
	f := newLedgerFixture(t)
	operating := f.seedAccount(t, accounts.CodeOperating, enums.AccountTypeAsset)
	wallet := f.seedAccount(t, "2000-WALLET-TEST0001", enums.AccountTypeLiability)

	_, err := f.svc.RecordTransaction(context.Background(), RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeWalletLoad,
		Entries: []EntryInput{
			{AccountID: operating.ID, Type: enums.EntryTypeDebit, Amount: decimal.RequireFromString("100.00"), Currency: enums.CurrencyUSD},
			{AccountID: wallet.ID, Type: enums.EntryTypeCredit, Amount: decimal.RequireFromString("99.99"), Currency: enums.CurrencyUSD},
		},
	})
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeUnbalanced, appErr.Code())

	assert.Zero(t, f.countRows(t, &models.Transaction{}), "rejected transaction must write nothing")
	assert.Zero(t, f.countRows(t, &models.Entry{}))
}

func TestRecordTransactionRequiresTwoEntries(t *testing.T) {
	f := newLedgerFixture(t)
	operating := f.seedAccount(t, accounts.CodeOperating, enums.AccountTypeAsset)

	_, err := f.svc.RecordTransaction(context.Background(), RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeAdjustment,
		Entries: []EntryInput{
			{AccountID: operating.ID, Type: enums.EntryTypeDebit, Amount: decimal.NewFromInt(10), Currency: enums.CurrencyUSD},
		},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnbalanced, pkgerrors.As(err).Code())
}

func TestRecordTransactionRejectsNonPositiveAmounts(t *testing.T) {
	f := newLedgerFixture(t)
	operating := f.seedAccount(t, accounts.CodeOperating, enums.AccountTypeAsset)
	wallet := f.seedAccount(t, "2000-WALLET-TEST0001", enums.AccountTypeLiability)

	_, err := f.svc.RecordTransaction(context.Background(), RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeAdjustment,
		Entries: []EntryInput{
			{AccountID: operating.ID, Type: enums.EntryTypeDebit, Amount: decimal.Zero, Currency: enums.CurrencyUSD},
			{AccountID: wallet.ID, Type: enums.EntryTypeCredit, Amount: decimal.Zero, Currency: enums.CurrencyUSD},
		},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestRecordTransactionBalancesPerCurrency(t *testing.T) {
	f := newLedgerFixture(t)
	usdA := f.seedAccount(t, "USD-A", enums.AccountTypeAsset)
	usdB := f.seedAccount(t, "USD-B", enums.AccountTypeLiability)

	eur := &models.Account{
		ID: uuid.New(), Name: "EUR-A", Code: "EUR-A",
		Type: enums.AccountTypeAsset, Currency: enums.CurrencyEUR, Balance: decimal.Zero,
	}
	require.NoError(t, f.db.Create(eur).Error)

	// USD legs balance but the EUR leg has no counterpart.
	_, err := f.svc.RecordTransaction(context.Background(), RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeAdjustment,
		Entries: []EntryInput{
			{AccountID: usdA.ID, Type: enums.EntryTypeDebit, Amount: decimal.NewFromInt(50), Currency: enums.CurrencyUSD},
			{AccountID: usdB.ID, Type: enums.EntryTypeCredit, Amount: decimal.NewFromInt(50), Currency: enums.CurrencyUSD},
			{AccountID: eur.ID, Type: enums.EntryTypeDebit, Amount: decimal.NewFromInt(10), Currency: enums.CurrencyEUR},
		},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnbalanced, pkgerrors.As(err).Code())
}

func TestRecordTransactionUnknownAccountLeavesNoRows(t *testing.T) {
	f := newLedgerFixture(t)
	operating := f.seedAccount(t, accounts.CodeOperating, enums.AccountTypeAsset)

	_, err := f.svc.RecordTransaction(context.Background(), RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeWalletLoad,
		Entries: []EntryInput{
			{AccountID: operating.ID, Type: enums.EntryTypeDebit, Amount: decimal.NewFromInt(10), Currency: enums.CurrencyUSD},
			{AccountID: uuid.New(), Type: enums.EntryTypeCredit, Amount: decimal.NewFromInt(10), Currency: enums.CurrencyUSD},
		},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	assert.Zero(t, f.countRows(t, &models.Transaction{}))
	assert.Zero(t, f.countRows(t, &models.Entry{}))
	assert.True(t, f.balance(t, operating.ID).IsZero())
}

type faultyAccountsRepo struct {
	accounts.Repository
	failAfter int
	calls     *int
}

func (f *faultyAccountsRepo) WithTx(tx *gorm.DB) accounts.Repository {
	return &faultyAccountsRepo{
		Repository: f.Repository.WithTx(tx),
		failAfter:  f.failAfter,
		calls:      f.calls,
	}
}

func (f *faultyAccountsRepo) ApplyDelta(ctx context.Context, id uuid.UUID, delta decimal.Decimal) error {
	*f.calls++
	if *f.calls > f.failAfter {
		return errors.New("simulated write failure")
	}
	return f.Repository.ApplyDelta(ctx, id, delta)
}

func TestRecordTransactionRollsBackOnPartialFailure(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	operating := f.seedAccount(t, accounts.CodeOperating, enums.AccountTypeAsset)
	wallet := f.seedAccount(t, "2000-WALLET-TEST0001", enums.AccountTypeLiability)

	accountsRepo := accounts.NewRepository(f.db)
	accountsSvc, err := accounts.NewService(accountsRepo)
	require.NoError(t, err)
	calls := 0
	faulty := &faultyAccountsRepo{Repository: accountsRepo, failAfter: 1, calls: &calls}

	svc, err := NewService(gormTxRunner{db: f.db}, NewRepository(f.db), faulty, accountsSvc, nil, nil)
	require.NoError(t, err)

	_, err = svc.RecordTransaction(ctx, RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeWalletLoad,
		Entries: []EntryInput{
			{AccountID: operating.ID, Type: enums.EntryTypeDebit, Amount: decimal.NewFromInt(25), Currency: enums.CurrencyUSD},
			{AccountID: wallet.ID, Type: enums.EntryTypeCredit, Amount: decimal.NewFromInt(25), Currency: enums.CurrencyUSD},
		},
	})
	require.Error(t, err)

	assert.Zero(t, f.countRows(t, &models.Transaction{}), "partial failure must roll back the header")
	assert.Zero(t, f.countRows(t, &models.Entry{}))
	assert.True(t, f.balance(t, operating.ID).IsZero(), "no balance may survive a rollback")
	assert.True(t, f.balance(t, wallet.ID).IsZero())
}

func TestSandboxTransactionsNeverTouchBalances(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	operating := f.seedAccount(t, accounts.CodeOperating, enums.AccountTypeAsset)
	wallet := f.seedAccount(t, "2000-WALLET-TEST0001", enums.AccountTypeLiability)

	txn, err := f.svc.RecordTransaction(ctx, RecordTransactionInput{
		ReferenceType: enums.ReferenceTypeWalletLoad,
		ReferenceID:   "sandbox-load",
		IsSandbox:     true,
		Entries: []EntryInput{
			{AccountID: operating.ID, Type: enums.EntryTypeDebit, Amount: decimal.NewFromInt(500), Currency: enums.CurrencyUSD},
			{AccountID: wallet.ID, Type: enums.EntryTypeCredit, Amount: decimal.NewFromInt(500), Currency: enums.CurrencyUSD},
		},
	})
	require.NoError(t, err)
	assert.True(t, txn.IsSandbox)

	assert.Equal(t, int64(1), f.countRows(t, &models.Transaction{}), "sandbox postings persist")
	assert.Equal(t, int64(2), f.countRows(t, &models.Entry{}))
	assert.True(t, f.balance(t, operating.ID).IsZero(), "sandbox postings never move balances")
	assert.True(t, f.balance(t, wallet.ID).IsZero())
	assert.Empty(t, f.notifier.events)
}

func TestRecordWalletLoadCreatesWalletAndMovesMoney(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	operating, _, _ := f.seedPlatformAccounts(t)
	ownerID := uuid.New()
	amount := decimal.RequireFromString("250.00")

	txn, err := f.svc.RecordWalletLoad(ctx, WalletMovementInput{
		OwnerID:     ownerID,
		Amount:      amount,
		Currency:    enums.CurrencyUSD,
		ReferenceID: "load-rail-1",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.ReferenceTypeWalletLoad, txn.ReferenceType)

	wallet, err := f.accounts.FindByCode(ctx, accounts.WalletCode(ownerID))
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(amount))
	assert.True(t, f.balance(t, operating.ID).Equal(amount))
}

func TestRecordCardSpendAndCommission(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	_, settlement, revenue := f.seedPlatformAccounts(t)
	ownerID := uuid.New()

	_, err := f.svc.RecordWalletLoad(ctx, WalletMovementInput{
		OwnerID: ownerID, Amount: decimal.RequireFromString("100.00"), Currency: enums.CurrencyUSD,
	})
	require.NoError(t, err)

	_, err = f.svc.RecordCardSpend(ctx, WalletMovementInput{
		OwnerID:     ownerID,
		Amount:      decimal.RequireFromString("60.00"),
		Currency:    enums.CurrencyUSD,
		ReferenceID: "TXN-900",
	})
	require.NoError(t, err)

	_, err = f.svc.RecordCommission(ctx, WalletMovementInput{
		OwnerID: ownerID, Amount: decimal.RequireFromString("1.50"), Currency: enums.CurrencyUSD,
	})
	require.NoError(t, err)

	wallet, err := f.accounts.FindByCode(ctx, accounts.WalletCode(ownerID))
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(decimal.RequireFromString("38.50")),
		"expected 38.50, got %s", wallet.Balance)
	assert.True(t, f.balance(t, settlement.ID).Equal(decimal.RequireFromString("60.00")))
	assert.True(t, f.balance(t, revenue.ID).Equal(decimal.RequireFromString("1.50")))
}

func TestReverseTransactionRestoresBalances(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.seedPlatformAccounts(t)
	ownerID := uuid.New()

	txn, err := f.svc.RecordWalletLoad(ctx, WalletMovementInput{
		OwnerID: ownerID, Amount: decimal.RequireFromString("80.00"), Currency: enums.CurrencyUSD,
	})
	require.NoError(t, err)

	reversal, err := f.svc.ReverseTransaction(ctx, txn.ID, "")
	require.NoError(t, err)
	assert.Equal(t, enums.ReferenceTypeReversal, reversal.ReferenceType)
	assert.Equal(t, txn.ID.String(), reversal.ReferenceID)

	wallet, err := f.accounts.FindByCode(ctx, accounts.WalletCode(ownerID))
	require.NoError(t, err)
	assert.True(t, wallet.Balance.IsZero(), "reversal must restore the balance, got %s", wallet.Balance)

	assert.Equal(t, int64(2), f.countRows(t, &models.Transaction{}), "the original rows stay untouched")

	_, err = f.svc.ReverseTransaction(ctx, reversal.ID, "")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
}

func TestGetAccountTransactions(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.seedPlatformAccounts(t)
	ownerID := uuid.New()

	for i := 0; i < 3; i++ {
		_, err := f.svc.RecordWalletLoad(ctx, WalletMovementInput{
			OwnerID: ownerID, Amount: decimal.NewFromInt(int64(i + 1)), Currency: enums.CurrencyUSD,
		})
		require.NoError(t, err)
	}

	wallet, err := f.accounts.FindByCode(ctx, accounts.WalletCode(ownerID))
	require.NoError(t, err)

	txns, err := f.svc.GetAccountTransactions(ctx, wallet.ID, time.Time{}, time.Time{}, 2)
	require.NoError(t, err)
	assert.Len(t, txns, 2)
	for _, txn := range txns {
		assert.NotEmpty(t, txn.Entries)
	}
}

func TestGetAccountTransactionsBoundedByPostedAtWindow(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	f.seedPlatformAccounts(t)
	ownerID := uuid.New()

	_, err := f.svc.RecordWalletLoad(ctx, WalletMovementInput{
		OwnerID: ownerID, Amount: decimal.RequireFromString("10.00"), Currency: enums.CurrencyUSD,
	})
	require.NoError(t, err)

	wallet, err := f.accounts.FindByCode(ctx, accounts.WalletCode(ownerID))
	require.NoError(t, err)

	now := time.Now().UTC()
	txns, err := f.svc.GetAccountTransactions(ctx, wallet.ID, now.Add(-time.Hour), now.Add(time.Hour), 0)
	require.NoError(t, err)
	assert.Len(t, txns, 1)

	txns, err = f.svc.GetAccountTransactions(ctx, wallet.ID, now.Add(time.Hour), now.Add(2*time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, txns)

	_, err = f.svc.GetAccountTransactions(ctx, wallet.ID, now, now.Add(-time.Hour), 0)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
