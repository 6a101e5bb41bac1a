package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/cardrail/backend/internal/ledger"
	"github.com/cardrail/backend/pkg/config"
	"github.com/cardrail/backend/pkg/db/models"
	"github.com/cardrail/backend/pkg/enums"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
	"github.com/cardrail/backend/pkg/logger"
	"github.com/cardrail/backend/pkg/retry"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SettlementRecord is one row of the external settlement feed.
type SettlementRecord struct {
	Token    string
	Amount   decimal.Decimal
	Currency enums.Currency
}

// SettlementFeed delivers the network's settled transactions for a date.
type SettlementFeed interface {
	FetchSettlements(ctx context.Context, date time.Time) ([]SettlementRecord, error)
}

// Service reconciles external settlement data against the ledger.
type Service interface {
	ReconcileDailySettlement(ctx context.Context, date time.Time) (*models.SettlementReport, error)
	ReportForDate(ctx context.Context, date time.Time) (*models.SettlementReport, error)
}

type service struct {
	tx         txRunner
	repo       Repository
	ledgerRepo ledger.Repository
	feed       SettlementFeed
	cfg        config.ReconciliationConfig
	logg       *logger.Logger
}

// NewService wires the reconciliation service with its collaborators.
func NewService(tx txRunner, repo Repository, ledgerRepo ledger.Repository, feed SettlementFeed, cfg config.ReconciliationConfig, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("reconciliation repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if feed == nil {
		return nil, fmt.Errorf("settlement feed required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:         tx,
		repo:       repo,
		ledgerRepo: ledgerRepo,
		feed:       feed,
		cfg:        cfg,
		logg:       logg,
	}, nil
}

// ReconcileDailySettlement matches the feed for one calendar date against the
// ledger and persists the outcome in a single transaction. Re-running a date
// replaces the previous result; the ledger itself is never written. Amounts
// compare by exact decimal equality, so a one-cent drift is a discrepancy.
func (s *service) ReconcileDailySettlement(ctx context.Context, date time.Time) (*models.SettlementReport, error) {
	day := truncateToDay(date)
	logCtx := s.logg.WithField(ctx, "settlement_date", day.Format("2006-01-02"))

	records, err := s.fetchFeed(ctx, day)
	if err != nil {
		return nil, err
	}
	s.logg.Info(logCtx, fmt.Sprintf("reconciling %d settled transactions", len(records)))

	var result *models.SettlementReport
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ledgerRepo := s.ledgerRepo.WithTx(tx)

		report, err := s.openReport(ctx, repo, day)
		if err != nil {
			return err
		}
		if err := repo.DeleteDiscrepancies(ctx, report.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clearing previous discrepancies")
		}

		total := decimal.Zero
		var found []models.Discrepancy
		for _, record := range records {
			total = total.Add(record.Amount)
			discrepancy, err := s.matchRecord(ctx, ledgerRepo, report.ID, record)
			if err != nil {
				return err
			}
			if discrepancy != nil {
				found = append(found, *discrepancy)
			}
		}
		if err := repo.CreateDiscrepancies(ctx, found); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing discrepancies")
		}

		report.Status = enums.SettlementStatusMatched
		if len(found) > 0 {
			report.Status = enums.SettlementStatusDiscrepancy
		}
		report.TotalAmountSettled = total
		report.TransactionsCount = len(records)
		if err := repo.UpdateReport(ctx, report); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "finalizing report")
		}

		report.Discrepancies = found
		result = report
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(logCtx, "status", string(result.Status)), "reconciliation finished")
	return result, nil
}

func (s *service) ReportForDate(ctx context.Context, date time.Time) (*models.SettlementReport, error) {
	report, err := s.repo.FindReportByDate(ctx, truncateToDay(date))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no settlement report for date")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading settlement report")
	}
	return report, nil
}

// fetchFeed pulls the external feed with bounded retries.
func (s *service) fetchFeed(ctx context.Context, day time.Time) ([]SettlementRecord, error) {
	policy := retry.DefaultPolicy()
	if s.cfg.FeedAttempts > 0 {
		policy.MaxAttempts = s.cfg.FeedAttempts
	}

	fetchCtx := ctx
	if s.cfg.FeedTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.FeedTimeout)
		defer cancel()
	}

	var records []SettlementRecord
	err := retry.Do(fetchCtx, policy, func(ctx context.Context) error {
		var fetchErr error
		records, fetchErr = s.feed.FetchSettlements(ctx, day)
		return fetchErr
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetching settlement feed")
	}
	return records, nil
}

// openReport loads the report for the date or creates a fresh one in
// PROCESSING state.
func (s *service) openReport(ctx context.Context, repo Repository, day time.Time) (*models.SettlementReport, error) {
	report, err := repo.FindReportByDate(ctx, day)
	if err == nil {
		report.Status = enums.SettlementStatusProcessing
		return report, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading settlement report")
	}

	report = &models.SettlementReport{
		Date:               day,
		Status:             enums.SettlementStatusProcessing,
		TotalAmountSettled: decimal.Zero,
	}
	if err := repo.CreateReport(ctx, report); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating settlement report")
	}
	return report, nil
}

// matchRecord compares one feed row against the ledger. A nil discrepancy
// means the row matched.
func (s *service) matchRecord(ctx context.Context, ledgerRepo ledger.Repository, reportID uuid.UUID, record SettlementRecord) (*models.Discrepancy, error) {
	txn, err := ledgerRepo.FindByReference(ctx, enums.ReferenceTypeCardSpend, record.Token)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up ledger transaction")
		}
		txn = nil
	}

	// Sandbox postings never settle, so a sandbox hit counts as missing.
	if txn == nil || txn.IsSandbox {
		return &models.Discrepancy{
			SettlementReportID: reportID,
			ExternalToken:      record.Token,
			ExternalAmount:     record.Amount,
			LedgerAmount:       decimal.Zero,
			Reason:             enums.DiscrepancyReasonMissingInLedger,
		}, nil
	}

	ledgerAmount := settledAmount(txn, record.Currency)
	if !ledgerAmount.Equal(record.Amount) {
		transactionID := txn.ID
		return &models.Discrepancy{
			SettlementReportID: reportID,
			TransactionID:      &transactionID,
			ExternalToken:      record.Token,
			ExternalAmount:     record.Amount,
			LedgerAmount:       ledgerAmount,
			Reason:             enums.DiscrepancyReasonAmountMismatch,
		}, nil
	}
	return nil, nil
}

// settledAmount is the value the ledger recorded for a spend: the sum of its
// credit legs in the feed's currency.
func settledAmount(txn *models.Transaction, currency enums.Currency) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range txn.Entries {
		if entry.Type == enums.EntryTypeCredit && entry.Currency == currency {
			total = total.Add(entry.Amount)
		}
	}
	return total
}

func truncateToDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
