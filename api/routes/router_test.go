package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardrail/backend/api/controllers"
	"github.com/cardrail/backend/internal/idempotency"
	"github.com/cardrail/backend/internal/ledger"
	"github.com/cardrail/backend/pkg/config"
	"github.com/cardrail/backend/pkg/db/models"
	"github.com/cardrail/backend/pkg/enums"
	"github.com/cardrail/backend/pkg/logger"
)

type staticPinger struct {
	err error
}

func (p staticPinger) Ping(context.Context) error {
	return p.err
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.data[key]; exists {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "cr:idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

type countingLedger struct {
	loads int
	txn   *models.Transaction
}

func (c *countingLedger) RecordTransaction(_ context.Context, _ ledger.RecordTransactionInput) (*models.Transaction, error) {
	return c.txn, nil
}

func (c *countingLedger) RecordWalletLoad(_ context.Context, _ ledger.WalletMovementInput) (*models.Transaction, error) {
	c.loads++
	return c.txn, nil
}

func (c *countingLedger) RecordCardSpend(_ context.Context, _ ledger.WalletMovementInput) (*models.Transaction, error) {
	return c.txn, nil
}

func (c *countingLedger) RecordCommission(_ context.Context, _ ledger.WalletMovementInput) (*models.Transaction, error) {
	return c.txn, nil
}

func (c *countingLedger) ReverseTransaction(_ context.Context, _ uuid.UUID, _ string) (*models.Transaction, error) {
	return c.txn, nil
}

func (c *countingLedger) GetTransaction(_ context.Context, _ uuid.UUID) (*models.Transaction, error) {
	return c.txn, nil
}

func (c *countingLedger) GetAccountTransactions(_ context.Context, _ uuid.UUID, _, _ time.Time, _ int) ([]models.Transaction, error) {
	return nil, nil
}

func testRouterLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestRouter(checks map[string]controllers.Pinger) http.Handler {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	return NewRouter(Dependencies{
		Config: cfg,
		Logger: testRouterLogger(),
		Checks: checks,
	})
}

func newGuardedRouter(t *testing.T, ledgerSvc ledger.Service) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	logg := testRouterLogger()
	guard, err := idempotency.NewGuard(newMemoryStore(), config.IdempotencyConfig{
		ProcessingTTL: time.Minute,
		CompletedTTL:  24 * time.Hour,
		CriticalTTL:   168 * time.Hour,
	}, logg)
	require.NoError(t, err)
	return NewRouter(Dependencies{
		Config: cfg,
		Logger: logg,
		Guard:  guard,
		Ledger: ledgerSvc,
	})
}

func TestHealthLive(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", rec.Header().Get("X-CardRail-Env"))
	assert.Contains(t, rec.Body.String(), `"status":"live"`)
}

func TestHealthReadyReportsDependencyStates(t *testing.T) {
	router := newTestRouter(map[string]controllers.Pinger{
		"db":    staticPinger{},
		"redis": staticPinger{err: context.DeadlineExceeded},
	})

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"db":"up"`)
	assert.Contains(t, rec.Body.String(), `"redis":"down"`)
}

func TestUnknownRouteReturns404(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWalletLoadRequiresIdempotencyKey(t *testing.T) {
	txnID := uuid.New()
	router := newGuardedRouter(t, &countingLedger{txn: &models.Transaction{
		ID: txnID, ReferenceType: enums.ReferenceTypeWalletLoad,
	}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/wallets/"+uuid.NewString()+"/load",
		strings.NewReader(`{"amount":"25.00","currency":"USD"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Idempotency-Key")
}

func TestWalletLoadReplaysOnRepeatedIdempotencyKey(t *testing.T) {
	txnID := uuid.New()
	svc := &countingLedger{txn: &models.Transaction{
		ID: txnID, ReferenceType: enums.ReferenceTypeWalletLoad,
	}}
	router := newGuardedRouter(t, svc)

	path := "/api/v1/wallets/" + uuid.NewString() + "/load"
	body := `{"amount":"25.00","currency":"USD"}`

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "load-once")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	first := post()
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Empty(t, first.Header().Get("X-Idempotency-Replay"))

	second := post()
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("X-Idempotency-Replay"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, svc.loads, "the movement must post exactly once")
}

func TestRequestIDHeaderIsAssigned(t *testing.T) {
	router := newTestRouter(nil)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
