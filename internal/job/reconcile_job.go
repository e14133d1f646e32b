package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coachrag/internal/service"
)

type Reconciler interface {
	Reconcile(ctx context.Context, staleAfter time.Duration) (*service.ReconcileReport, error)
}

// ReconcileJob finalizes sources left in processing by interrupted ingestions.
type ReconcileJob struct {
	reconciler Reconciler
	staleAfter time.Duration
}

func NewReconcileJob(reconciler Reconciler, staleAfter time.Duration) *ReconcileJob {
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}
	return &ReconcileJob{reconciler: reconciler, staleAfter: staleAfter}
}

func (j *ReconcileJob) Name() string {
	return "source_reconcile"
}

func (j *ReconcileJob) Run(ctx context.Context) error {
	report, err := j.reconciler.Reconcile(ctx, j.staleAfter)
	if err != nil {
		return err
	}
	if report.Scanned > 0 {
		logutil.GetLogger(ctx).Info("stale sources reconciled",
			zap.Int("scanned", report.Scanned),
			zap.Int("completed", report.Completed),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
		)
	}
	return nil
}
