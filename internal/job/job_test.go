package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/coachrag/internal/service"
)

type fakeDeleter struct {
	cutoff int64
	err    error
}

func (f *fakeDeleter) DeleteBefore(_ context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 3, f.err
}

func TestEmbeddingCacheCleanupCutoff(t *testing.T) {
	store := &fakeDeleter{}
	j := NewEmbeddingCacheCleanupJob(store, 0)
	now := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now }
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.AddDate(0, 0, -30).Unix(), store.cutoff)

	store.err = errors.New("db down")
	require.Error(t, j.Run(context.Background()))
	require.NoError(t, NewEmbeddingCacheCleanupJob(nil, 7).Run(context.Background()))
}

type fakeReconciler struct {
	staleAfter time.Duration
	err        error
}

func (f *fakeReconciler) Reconcile(_ context.Context, staleAfter time.Duration) (*service.ReconcileReport, error) {
	f.staleAfter = staleAfter
	if f.err != nil {
		return nil, f.err
	}
	return &service.ReconcileReport{Scanned: 2, Completed: 1, Failed: 1}, nil
}

func TestReconcileJob(t *testing.T) {
	r := &fakeReconciler{}
	j := NewReconcileJob(r, 0)
	require.Equal(t, "source_reconcile", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, time.Hour, r.staleAfter)

	r.err = errors.New("list failed")
	require.Error(t, j.Run(context.Background()))
}
