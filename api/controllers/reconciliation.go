package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cardrail/backend/api/responses"
	"github.com/cardrail/backend/api/validators"
	"github.com/cardrail/backend/internal/reconciliation"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
	"github.com/cardrail/backend/pkg/logger"
)

const reportDateFormat = "2006-01-02"

type reconciliationRunRequest struct {
	Date string `json:"date" validate:"required"`
}

// ReconciliationRun triggers a settlement reconciliation run for one date.
// Re-running a date replaces its previous report.
func ReconciliationRun(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reconciliationRunRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		date, err := time.Parse(reportDateFormat, req.Date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date must be formatted YYYY-MM-DD").
				WithDetails(map[string]any{"date": req.Date}))
			return
		}
		report, err := svc.ReconcileDailySettlement(r.Context(), date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toSettlementReportResponse(report))
	}
}

// ReconciliationReport returns the stored report for a date with its
// discrepancies.
func ReconciliationReport(svc reconciliation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "date")
		date, err := time.Parse(reportDateFormat, raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "date must be formatted YYYY-MM-DD").
				WithDetails(map[string]any{"date": raw}))
			return
		}
		report, err := svc.ReportForDate(r.Context(), date)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSettlementReportResponse(report))
	}
}
