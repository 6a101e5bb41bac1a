package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardrail/backend/pkg/db/models"
	"github.com/cardrail/backend/pkg/enums"
	pkgerrors "github.com/cardrail/backend/pkg/errors"
)

type fakeReconciliationService struct {
	report   *models.SettlementReport
	lastDate time.Time
	err      error
}

func (f *fakeReconciliationService) ReconcileDailySettlement(_ context.Context, date time.Time) (*models.SettlementReport, error) {
	f.lastDate = date
	return f.report, f.err
}

func (f *fakeReconciliationService) ReportForDate(_ context.Context, date time.Time) (*models.SettlementReport, error) {
	f.lastDate = date
	return f.report, f.err
}

func sampleReport() *models.SettlementReport {
	reportID := uuid.New()
	txnID := uuid.New()
	return &models.SettlementReport{
		ID:                 reportID,
		Date:               time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		Status:             enums.SettlementStatusDiscrepancy,
		TotalAmountSettled: decimal.RequireFromString("75.00"),
		TransactionsCount:  3,
		Discrepancies: []models.Discrepancy{
			{
				ID:                 uuid.New(),
				SettlementReportID: reportID,
				TransactionID:      &txnID,
				ExternalToken:      "TXN-300",
				ExternalAmount:     decimal.RequireFromString("50.00"),
				LedgerAmount:       decimal.RequireFromString("49.00"),
				Reason:             enums.DiscrepancyReasonAmountMismatch,
			},
		},
	}
}

func TestReconciliationRunParsesDateAndReturnsReport(t *testing.T) {
	svc := &fakeReconciliationService{report: sampleReport()}
	router := chi.NewRouter()
	router.Post("/api/admin/v1/reconciliation/run", ReconciliationRun(svc, controllerTestLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/reconciliation/run", strings.NewReader(`{"date":"2026-03-14"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), svc.lastDate)
	assert.Contains(t, rec.Body.String(), `"status":"DISCREPANCY"`)
	assert.Contains(t, rec.Body.String(), `"external_token":"TXN-300"`)
}

func TestReconciliationRunRejectsMalformedDate(t *testing.T) {
	svc := &fakeReconciliationService{}
	router := chi.NewRouter()
	router.Post("/api/admin/v1/reconciliation/run", ReconciliationRun(svc, controllerTestLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/reconciliation/run", strings.NewReader(`{"date":"03/14/2026"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "YYYY-MM-DD")
}

func TestReconciliationRunSurfacesFeedOutage(t *testing.T) {
	svc := &fakeReconciliationService{err: pkgerrors.New(pkgerrors.CodeDependency, "settlement feed unavailable")}
	router := chi.NewRouter()
	router.Post("/api/admin/v1/reconciliation/run", ReconciliationRun(svc, controllerTestLogger()))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/v1/reconciliation/run", strings.NewReader(`{"date":"2026-03-14"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReconciliationReportReturnsStoredReport(t *testing.T) {
	svc := &fakeReconciliationService{report: sampleReport()}
	router := chi.NewRouter()
	router.Get("/api/admin/v1/reconciliation/reports/{date}", ReconciliationReport(svc, controllerTestLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/reconciliation/reports/2026-03-14", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"date":"2026-03-14"`)
	assert.Contains(t, rec.Body.String(), `"transactions_count":3`)
}

func TestReconciliationReportNotFound(t *testing.T) {
	svc := &fakeReconciliationService{err: pkgerrors.New(pkgerrors.CodeNotFound, "no report for date")}
	router := chi.NewRouter()
	router.Get("/api/admin/v1/reconciliation/reports/{date}", ReconciliationReport(svc, controllerTestLogger()))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/v1/reconciliation/reports/2026-03-15", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
