package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/cardrail/backend/internal/reconciliation"
	"github.com/cardrail/backend/pkg/logger"
	"github.com/cardrail/backend/pkg/retry"
)

const defaultLookbackDays = 1

// SettlementReconcileJobParams configures the daily settlement job.
type SettlementReconcileJobParams struct {
	Logger       *logger.Logger
	Service      reconciliation.Service
	LookbackDays int
	Policy       retry.Policy
	Now          func() time.Time
}

// NewSettlementReconcileJob builds the job that reconciles recent settlement
// dates, most recent first.
func NewSettlementReconcileJob(params SettlementReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Service == nil {
		return nil, fmt.Errorf("reconciliation service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	lookback := params.LookbackDays
	if lookback <= 0 {
		lookback = defaultLookbackDays
	}
	policy := params.Policy
	if policy.MaxAttempts == 0 {
		policy = retry.DefaultPolicy()
	}
	return &settlementReconcileJob{
		logg:     params.Logger,
		service:  params.Service,
		lookback: lookback,
		policy:   policy,
		now:      now,
	}, nil
}

type settlementReconcileJob struct {
	logg     *logger.Logger
	service  reconciliation.Service
	lookback int
	policy   retry.Policy
	now      func() time.Time
}

func (j *settlementReconcileJob) Name() string { return "settlement-reconcile" }

// Run reconciles yesterday and, when configured, the days before it. A failed
// date does not block the remaining dates.
func (j *settlementReconcileJob) Run(ctx context.Context) error {
	today := j.now().UTC().Truncate(24 * time.Hour)

	var errs error
	for offset := 1; offset <= j.lookback; offset++ {
		date := today.AddDate(0, 0, -offset)
		logCtx := j.logg.WithField(ctx, "settlement_date", date.Format("2006-01-02"))

		err := retry.Do(ctx, j.policy, func(ctx context.Context) error {
			_, runErr := j.service.ReconcileDailySettlement(ctx, date)
			return runErr
		})
		if err != nil {
			j.logg.Error(logCtx, "settlement reconciliation failed", err)
			errs = multierr.Append(errs, fmt.Errorf("reconcile %s: %w", date.Format("2006-01-02"), err))
			continue
		}
		j.logg.Info(logCtx, "settlement date reconciled")
	}
	return errs
}
