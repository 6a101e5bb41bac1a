package statements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/cardrail/backend/internal/accounts"
	"github.com/cardrail/backend/internal/ledger"
	"github.com/cardrail/backend/pkg/db/models"
	"github.com/cardrail/backend/pkg/enums"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
	"github.com/cardrail/backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service builds monthly activity statements from posted ledger entries.
type Service interface {
	GenerateMonthly(ctx context.Context, accountID uuid.UUID, month time.Time) (*models.Statement, error)
	GenerateAllForMonth(ctx context.Context, month time.Time) (int, error)
	ListStatements(ctx context.Context, accountID uuid.UUID) ([]models.Statement, error)
}

type service struct {
	tx           txRunner
	repo         Repository
	ledgerRepo   ledger.Repository
	accountsRepo accounts.Repository
	logg         *logger.Logger
}

// NewService wires a statement service with its collaborators.
func NewService(tx txRunner, repo Repository, ledgerRepo ledger.Repository, accountsRepo accounts.Repository, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("statements repository required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if accountsRepo == nil {
		return nil, fmt.Errorf("account repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:           tx,
		repo:         repo,
		ledgerRepo:   ledgerRepo,
		accountsRepo: accountsRepo,
		logg:         logg,
	}, nil
}

// GenerateMonthly summarizes one account's posted entries for a calendar
// month. Sandbox activity is excluded. Regeneration replaces the prior row.
func (s *service) GenerateMonthly(ctx context.Context, accountID uuid.UUID, month time.Time) (*models.Statement, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}

	periodStart, periodEnd := monthBounds(month)
	if _, err := s.accountsRepo.FindByID(ctx, accountID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading account")
	}

	entries, err := s.ledgerRepo.ListEntriesByAccount(ctx, accountID, periodStart, periodEnd)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing entries")
	}

	statement := &models.Statement{
		AccountID:    accountID,
		PeriodStart:  periodStart,
		PeriodEnd:    periodEnd.AddDate(0, 0, -1),
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
		LineCount:    len(entries),
	}
	for _, entry := range entries {
		if entry.Type == enums.EntryTypeDebit {
			statement.TotalDebits = statement.TotalDebits.Add(entry.Amount)
		} else {
			statement.TotalCredits = statement.TotalCredits.Add(entry.Amount)
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).Replace(ctx, statement)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "storing statement")
	}
	return statement, nil
}

// GenerateAllForMonth sweeps every owner account. One failing account does
// not stop the sweep; failures are aggregated and returned together.
func (s *service) GenerateAllForMonth(ctx context.Context, month time.Time) (int, error) {
	owned, err := s.accountsRepo.ListWithOwners(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing owner accounts")
	}

	var errs error
	generated := 0
	for _, account := range owned {
		if _, err := s.GenerateMonthly(ctx, account.ID, month); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("account %s: %w", account.Code, err))
			continue
		}
		generated++
	}
	return generated, errs
}

func (s *service) ListStatements(ctx context.Context, accountID uuid.UUID) ([]models.Statement, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	statements, err := s.repo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing statements")
	}
	return statements, nil
}

func monthBounds(month time.Time) (time.Time, time.Time) {
	utc := month.UTC()
	start := time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
