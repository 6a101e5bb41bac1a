package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cardrail/backend/pkg/db"
	"github.com/cardrail/backend/pkg/db/models"
	"github.com/cardrail/backend/pkg/enums"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
)

// Service exposes chart-of-accounts operations.
type Service interface {
	GetOrCreateWalletAccount(ctx context.Context, ownerID uuid.UUID, currency enums.Currency) (*models.Account, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByCode(ctx context.Context, code string) (*models.Account, error)
}

type service struct {
	repo Repository
}

// NewService wires an account service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("account repository required")
	}
	return &service{repo: repo}, nil
}

// GetOrCreateWalletAccount resolves the liability account holding an owner's
// stored value, creating it on first use. Creation races resolve through the
// unique code constraint: the loser re-reads the winner's row.
func (s *service) GetOrCreateWalletAccount(ctx context.Context, ownerID uuid.UUID, currency enums.Currency) (*models.Account, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid currency %q", currency))
	}

	code := WalletCode(ownerID)
	account, err := s.repo.FindByCode(ctx, code)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up wallet account")
	}

	owner := ownerID
	created := &models.Account{
		Name:     WalletName(ownerID),
		Code:     code,
		Type:     enums.AccountTypeLiability,
		OwnerID:  &owner,
		Currency: currency,
	}
	if err := s.repo.Create(ctx, created); err != nil {
		if db.IsUniqueViolation(err, "") {
			return s.repo.FindByCode(ctx, code)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating wallet account")
	}
	return created, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id is required")
	}
	account, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up account")
	}
	return account, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*models.Account, error) {
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account code is required")
	}
	account, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up account")
	}
	return account, nil
}
