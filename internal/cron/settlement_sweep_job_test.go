package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/KalilovM/topshopes-backend/pkg/logger"
)

type fakeRearmer struct {
	armed int
	err   error
	calls int
}

func (f *fakeRearmer) Rearm(context.Context) (int, error) {
	f.calls++
	return f.armed, f.err
}

func TestSettlementSweepJobRunsReconciler(t *testing.T) {
	rearmer := &fakeRearmer{armed: 3}
	job, err := NewSettlementSweepJob(SettlementSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Reconciler: rearmer,
	})
	if err != nil {
		t.Fatalf("NewSettlementSweepJob: %v", err)
	}
	if job.Name() != "settlement-sweep" {
		t.Fatalf("unexpected name %q", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rearmer.calls != 1 {
		t.Fatalf("expected one rearm call, got %d", rearmer.calls)
	}
}

func TestSettlementSweepJobPropagatesError(t *testing.T) {
	job, err := NewSettlementSweepJob(SettlementSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Reconciler: &fakeRearmer{err: errors.New("db down")},
	})
	if err != nil {
		t.Fatalf("NewSettlementSweepJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSettlementSweepJobRequiresReconciler(t *testing.T) {
	if _, err := NewSettlementSweepJob(SettlementSweepJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})}); err == nil {
		t.Fatal("expected error")
	}
}
