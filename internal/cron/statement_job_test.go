package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cardrail/backend/pkg/db/models"
	"github.com/cardrail/backend/pkg/logger"
)

type fakeStatementsService struct {
	sweeps []time.Time
	err    error
}

func (f *fakeStatementsService) GenerateMonthly(_ context.Context, _ uuid.UUID, month time.Time) (*models.Statement, error) {
	return &models.Statement{}, nil
}

func (f *fakeStatementsService) GenerateAllForMonth(_ context.Context, month time.Time) (int, error) {
	f.sweeps = append(f.sweeps, month)
	return 2, f.err
}

func (f *fakeStatementsService) ListStatements(context.Context, uuid.UUID) ([]models.Statement, error) {
	return nil, nil
}

func TestStatementJobRunsOnlyOnScheduledDay(t *testing.T) {
	svc := &fakeStatementsService{}
	job, err := NewStatementJob(StatementJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Service: svc,
		RunDay:  1,
		Now:     func() time.Time { return time.Date(2026, 3, 15, 4, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(svc.sweeps) != 0 {
		t.Fatalf("expected no sweep off-schedule, got %d", len(svc.sweeps))
	}
}

func TestStatementJobSweepsPreviousMonth(t *testing.T) {
	svc := &fakeStatementsService{}
	job, err := NewStatementJob(StatementJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Service: svc,
		RunDay:  1,
		Now:     func() time.Time { return time.Date(2026, 4, 1, 4, 0, 0, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("construct job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(svc.sweeps) != 1 {
		t.Fatalf("expected one sweep, got %d", len(svc.sweeps))
	}
	if got := svc.sweeps[0].Format("2006-01"); got != "2026-03" {
		t.Fatalf("expected sweep of 2026-03, got %s", got)
	}
}
