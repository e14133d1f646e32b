package service

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coachrag/internal/model"
	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

const (
	reconcileBatchSize = 100
	reconcileMessage   = "reconciled: ingestion did not finalize"
)

type ReconcileReport struct {
	Scanned   int `json:"scanned"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// ReconcileService settles sources whose ingestion never reached the final
// status update.
type ReconcileService struct {
	sources SourceStore
	chunks  ChunkStore
	now     func() time.Time
}

func NewReconcileService(sources SourceStore, chunks ChunkStore) *ReconcileService {
	return &ReconcileService{sources: sources, chunks: chunks, now: time.Now}
}

func (s *ReconcileService) Reconcile(ctx context.Context, staleAfter time.Duration) (*ReconcileReport, error) {
	now := s.now()
	cutoff := now.Add(-staleAfter).Unix()
	stale, err := s.sources.ListStale(ctx, cutoff, reconcileBatchSize)
	if err != nil {
		return nil, err
	}
	report := &ReconcileReport{Scanned: len(stale)}
	if len(stale) == 0 {
		return report, nil
	}
	ids := make([]string, 0, len(stale))
	for _, src := range stale {
		ids = append(ids, src.ID)
	}
	counts, err := s.chunks.CountBySources(ctx, ids)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx)
	for _, src := range stale {
		status := model.SourceStatusFailed
		msg := reconcileMessage
		if c, ok := counts[src.ID]; ok && c.Total > 0 && c.Stored == c.Total {
			status = model.SourceStatusCompleted
			msg = ""
		}
		if err := s.sources.FinalizeStale(ctx, src.ID, status, msg, cutoff, now.Unix()); err != nil {
			if !appErr.IsNotFound(err) {
				logger.Error("reconcile source failed", zap.String("source_id", src.ID), zap.Error(err))
			}
			report.Skipped++
			continue
		}
		logger.Info("source reconciled", zap.String("source_id", src.ID), zap.String("status", string(status)))
		if status == model.SourceStatusCompleted {
			report.Completed++
		} else {
			report.Failed++
		}
	}
	return report, nil
}
