package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cardrail/backend/api/controllers"
	"github.com/cardrail/backend/api/middleware"
	"github.com/cardrail/backend/internal/accounts"
	"github.com/cardrail/backend/internal/idempotency"
	"github.com/cardrail/backend/internal/ledger"
	"github.com/cardrail/backend/internal/reconciliation"
	"github.com/cardrail/backend/internal/statements"
	"github.com/cardrail/backend/pkg/config"
	"github.com/cardrail/backend/pkg/logger"
)

// Dependencies carries everything the HTTP surface needs.
type Dependencies struct {
	Config    *config.Config
	Logger    *logger.Logger
	Guard     *idempotency.Guard
	Accounts  accounts.Service
	Ledger    ledger.Service
	Statement statements.Service
	Recon     reconciliation.Service
	// Readiness checks keyed by dependency name (db, redis, pubsub).
	Checks map[string]controllers.Pinger
}

func NewRouter(deps Dependencies) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.Checks))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.Guard, logg))

		r.Route("/wallets/{ownerId}", func(r chi.Router) {
			r.Get("/", controllers.WalletBalance(deps.Accounts, logg))
			r.Get("/transactions", controllers.WalletTransactions(deps.Accounts, deps.Ledger, logg))
			r.Post("/load", controllers.WalletLoad(deps.Ledger, logg))
			r.Post("/spend", controllers.WalletSpend(deps.Ledger, logg))
			r.Post("/commission", controllers.WalletCommission(deps.Ledger, logg))
		})

		r.Post("/transactions", controllers.RecordTransaction(deps.Ledger, logg))
		r.Route("/transactions/{transactionId}", func(r chi.Router) {
			r.Get("/", controllers.TransactionDetail(deps.Ledger, logg))
			r.Post("/reverse", controllers.TransactionReverse(deps.Ledger, logg))
		})

		r.Route("/accounts/{accountId}/statements", func(r chi.Router) {
			r.Get("/", controllers.AccountStatements(deps.Statement, logg))
			r.Post("/", controllers.GenerateStatement(deps.Statement, logg))
		})
	})

	r.Route("/api/admin/v1/reconciliation", func(r chi.Router) {
		r.Use(middleware.Idempotency(deps.Guard, logg))
		r.Post("/run", controllers.ReconciliationRun(deps.Recon, logg))
		r.Get("/reports/{date}", controllers.ReconciliationReport(deps.Recon, logg))
	})

	return r
}
