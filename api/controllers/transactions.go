package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cardrail/backend/api/responses"
	"github.com/cardrail/backend/api/validators"
	"github.com/cardrail/backend/internal/ledger"
	"github.com/cardrail/backend/pkg/enums"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
	"github.com/cardrail/backend/pkg/logger"
)

type entryRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	Type      string `json:"type" validate:"required,oneof=debit credit"`
	Amount    string `json:"amount" validate:"required"`
	Currency  string `json:"currency" validate:"required"`
}

type recordTransactionRequest struct {
	ReferenceType string         `json:"reference_type" validate:"required"`
	ReferenceID   string         `json:"reference_id"`
	Description   string         `json:"description"`
	IsSandbox     bool           `json:"is_sandbox"`
	Entries       []entryRequest `json:"entries" validate:"required,min=2,dive"`
}

type reverseTransactionRequest struct {
	Description string `json:"description"`
}

func (req recordTransactionRequest) toInput() (ledger.RecordTransactionInput, error) {
	referenceType, err := enums.ParseReferenceType(req.ReferenceType)
	if err != nil {
		return ledger.RecordTransactionInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reference type")
	}

	entries := make([]ledger.EntryInput, 0, len(req.Entries))
	for _, entry := range req.Entries {
		accountID, err := uuid.Parse(entry.AccountID)
		if err != nil {
			return ledger.RecordTransactionInput{}, pkgerrors.New(pkgerrors.CodeValidation, "entry account_id must be a UUID").
				WithDetails(map[string]any{"account_id": entry.AccountID})
		}
		entryType, err := enums.ParseEntryType(entry.Type)
		if err != nil {
			return ledger.RecordTransactionInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid entry type")
		}
		amount, err := decimal.NewFromString(entry.Amount)
		if err != nil {
			return ledger.RecordTransactionInput{}, pkgerrors.New(pkgerrors.CodeValidation, "entry amount must be a decimal string").
				WithDetails(map[string]any{"amount": entry.Amount})
		}
		currency, err := enums.ParseCurrency(entry.Currency)
		if err != nil {
			return ledger.RecordTransactionInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
		}
		entries = append(entries, ledger.EntryInput{
			AccountID: accountID,
			Type:      entryType,
			Amount:    amount,
			Currency:  currency,
		})
	}

	return ledger.RecordTransactionInput{
		ReferenceType: referenceType,
		ReferenceID:   validators.SanitizeString(req.ReferenceID, maxDescriptionLen),
		Description:   validators.SanitizeString(req.Description, maxDescriptionLen),
		IsSandbox:     req.IsSandbox,
		Entries:       entries,
	}, nil
}

// RecordTransaction posts an arbitrary balanced transaction. The wallet
// convenience routes cover the common movements; this is the raw surface for
// settlements and manual adjustments.
func RecordTransaction(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordTransactionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.RecordTransaction(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toTransactionResponse(txn))
	}
}

// TransactionDetail returns one transaction with its entries.
func TransactionDetail(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactionID, err := transactionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		txn, err := svc.GetTransaction(r.Context(), transactionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toTransactionResponse(txn))
	}
}

// TransactionReverse posts a reversing transaction with every leg flipped.
// The original rows stay untouched.
func TransactionReverse(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		transactionID, err := transactionIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reverseTransactionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		reversal, err := svc.ReverseTransaction(r.Context(), transactionID, validators.SanitizeString(req.Description, maxDescriptionLen))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toTransactionResponse(reversal))
	}
}

func transactionIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "transactionId")
	transactionID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "transactionId must be a UUID").
			WithDetails(map[string]any{"transactionId": raw})
	}
	return transactionID, nil
}
