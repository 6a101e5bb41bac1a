package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cardrail/backend/api/responses"
	"github.com/cardrail/backend/api/validators"
	"github.com/cardrail/backend/internal/statements"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
	"github.com/cardrail/backend/pkg/logger"
)

const monthFormat = "2006-01"

type generateStatementRequest struct {
	Month string `json:"month" validate:"required"`
}

// AccountStatements lists generated statements for an account, newest first.
func AccountStatements(svc statements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListStatements(r.Context(), accountID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload := make([]statementResponse, 0, len(items))
		for i := range items {
			payload = append(payload, toStatementResponse(&items[i]))
		}
		responses.WriteSuccess(w, payload)
	}
}

// GenerateStatement builds (or rebuilds) one account's statement for a month.
func GenerateStatement(svc statements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		accountID, err := accountIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req generateStatementRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		month, err := time.Parse(monthFormat, req.Month)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "month must be formatted YYYY-MM").
				WithDetails(map[string]any{"month": req.Month}))
			return
		}
		statement, err := svc.GenerateMonthly(r.Context(), accountID, month)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toStatementResponse(statement))
	}
}

func accountIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "accountId")
	accountID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "accountId must be a UUID").
			WithDetails(map[string]any{"accountId": raw})
	}
	return accountID, nil
}
