package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/cardrail/backend/internal/statements"
	"github.com/cardrail/backend/pkg/logger"
)

const defaultStatementsDay = 1

// StatementJobParams configures the monthly statement sweep.
type StatementJobParams struct {
	Logger  *logger.Logger
	Service statements.Service
	// RunDay is the day of month on which the previous month is swept.
	RunDay int
	Now    func() time.Time
}

// NewStatementJob builds the job that generates last month's statements.
func NewStatementJob(params StatementJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Service == nil {
		return nil, fmt.Errorf("statements service required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	runDay := params.RunDay
	if runDay <= 0 || runDay > 28 {
		runDay = defaultStatementsDay
	}
	return &statementJob{
		logg:    params.Logger,
		service: params.Service,
		runDay:  runDay,
		now:     now,
	}, nil
}

type statementJob struct {
	logg    *logger.Logger
	service statements.Service
	runDay  int
	now     func() time.Time
}

func (j *statementJob) Name() string { return "monthly-statements" }

// Run sweeps the previous month once the configured day of month is reached.
// Other days are a no-op so the job can share the daily cron cadence.
func (j *statementJob) Run(ctx context.Context) error {
	today := j.now().UTC()
	if today.Day() != j.runDay {
		j.logg.Info(ctx, "statement sweep not scheduled today")
		return nil
	}

	lastMonth := today.AddDate(0, -1, 0)
	logCtx := j.logg.WithField(ctx, "statement_month", lastMonth.Format("2006-01"))

	generated, err := j.service.GenerateAllForMonth(ctx, lastMonth)
	logCtx = j.logg.WithField(logCtx, "generated", generated)
	if err != nil {
		j.logg.Error(logCtx, "statement sweep finished with failures", err)
		return err
	}
	j.logg.Info(logCtx, "statement sweep complete")
	return nil
}
