package cron

import (
	"context"
	"fmt"

	"github.com/KalilovM/topshopes-backend/pkg/logger"
)

type rearmer interface {
	Rearm(ctx context.Context) (int, error)
}

// SettlementSweepJobParams configure the reconciliation sweep for delivered
// orders that never got a settlement task.
type SettlementSweepJobParams struct {
	Logger     *logger.Logger
	Reconciler rearmer
}

func NewSettlementSweepJob(params SettlementSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("settlement reconciler required")
	}
	return &settlementSweepJob{
		logg:       params.Logger,
		reconciler: params.Reconciler,
	}, nil
}

type settlementSweepJob struct {
	logg       *logger.Logger
	reconciler rearmer
}

func (j *settlementSweepJob) Name() string { return "settlement-sweep" }

func (j *settlementSweepJob) Run(ctx context.Context) error {
	armed, err := j.reconciler.Rearm(ctx)
	logCtx := j.logg.WithField(ctx, "rearmed", armed)
	if err != nil {
		return fmt.Errorf("settlement sweep: %w", err)
	}
	j.logg.Info(logCtx, "settlement sweep complete")
	return nil
}
