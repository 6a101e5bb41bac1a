package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardrail/backend/api/responses"
	"github.com/cardrail/backend/api/validators"
	"github.com/cardrail/backend/internal/accounts"
	"github.com/cardrail/backend/internal/ledger"
	"github.com/cardrail/backend/pkg/db/models"
	"github.com/cardrail/backend/pkg/enums"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
	"github.com/cardrail/backend/pkg/logger"
)

const maxDescriptionLen = 255

type walletMovementRequest struct {
	Amount      string `json:"amount" validate:"required"`
	Currency    string `json:"currency" validate:"required"`
	ReferenceID string `json:"reference_id"`
	Description string `json:"description"`
	IsSandbox   bool   `json:"is_sandbox"`
}

func (req walletMovementRequest) toInput(ownerID uuid.UUID) (ledger.WalletMovementInput, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ledger.WalletMovementInput{}, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a decimal string").
			WithDetails(map[string]any{"amount": req.Amount})
	}
	currency, err := enums.ParseCurrency(req.Currency)
	if err != nil {
		return ledger.WalletMovementInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
	}
	return ledger.WalletMovementInput{
		OwnerID:     ownerID,
		Amount:      amount,
		Currency:    currency,
		ReferenceID: validators.SanitizeString(req.ReferenceID, maxDescriptionLen),
		Description: validators.SanitizeString(req.Description, maxDescriptionLen),
		IsSandbox:   req.IsSandbox,
	}, nil
}

// WalletBalance returns the owner's wallet account with its running balance.
func WalletBalance(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ownerIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		account, err := svc.GetByCode(r.Context(), accounts.WalletCode(ownerID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAccountResponse(account))
	}
}

// WalletLoad moves funds from the operating account into the owner's wallet.
func WalletLoad(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return walletMovement(svc.RecordWalletLoad, logg)
}

// WalletSpend records a card authorization capture against the wallet.
func WalletSpend(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return walletMovement(svc.RecordCardSpend, logg)
}

// WalletCommission charges the platform fee from the wallet into fee revenue.
func WalletCommission(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return walletMovement(svc.RecordCommission, logg)
}

// WalletTransactions lists transactions touching the owner's wallet. Optional
// start/end query params (YYYY-MM-DD, end inclusive) bound the posted_at
// window.
func WalletTransactions(accountsSvc accounts.Service, ledgerSvc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ownerIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 200)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := queryDate(r, "start")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := queryDate(r, "end")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !to.IsZero() {
			to = to.AddDate(0, 0, 1)
		}
		account, err := accountsSvc.GetByCode(r.Context(), accounts.WalletCode(ownerID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		transactions, err := ledgerSvc.GetAccountTransactions(r.Context(), account.ID, from, to, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]transactionResponse, 0, len(transactions))
		for i := range transactions {
			items = append(items, toTransactionResponse(&transactions[i]))
		}
		responses.WriteSuccess(w, items)
	}
}

func walletMovement(record func(ctx context.Context, input ledger.WalletMovementInput) (*models.Transaction, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, err := ownerIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req walletMovementRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput(ownerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := record(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toTransactionResponse(txn))
	}
}

func queryDate(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	parsed, err := time.Parse(reportDateFormat, raw)
	if err != nil {
		return time.Time{}, pkgerrors.New(pkgerrors.CodeValidation, name+" must be a YYYY-MM-DD date").
			WithDetails(map[string]any{name: raw})
	}
	return parsed, nil
}

func ownerIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "ownerId")
	ownerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "ownerId must be a UUID").
			WithDetails(map[string]any{"ownerId": raw})
	}
	return ownerID, nil
}
