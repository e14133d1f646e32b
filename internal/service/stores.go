package service

import (
	"context"

	"github.com/xxxsen/coachrag/internal/model"
	"github.com/xxxsen/coachrag/internal/repo"
)

type SourceStore interface {
	Create(ctx context.Context, src *model.DocumentSource) error
	Finalize(ctx context.Context, id string, status model.SourceStatus, errMsg string, processedAt int64) error
	FinalizeStale(ctx context.Context, id string, status model.SourceStatus, errMsg string, cutoff, processedAt int64) error
	Touch(ctx context.Context, id string, at int64) error
	GetByID(ctx context.Context, id string) (*model.DocumentSource, error)
	ListStale(ctx context.Context, cutoff int64, limit int) ([]model.DocumentSource, error)
}

type ChunkStore interface {
	InsertBatch(ctx context.Context, chunks []model.DocumentChunk) error
	CountBySources(ctx context.Context, sourceIDs []string) (map[string]repo.ChunkCount, error)
}

type VectorStore interface {
	MatchCoachDocuments(ctx context.Context, q model.VectorQuery) ([]model.SearchResult, error)
	ListActive(ctx context.Context, coachID string, tiers []model.AccessTier, limit int) ([]model.SearchResult, error)
}

type AccessStore interface {
	Grant(ctx context.Context, documentID, coachID string, tier model.AccessTier) error
}

var (
	_ SourceStore = (*repo.SourceRepo)(nil)
	_ ChunkStore  = (*repo.ChunkRepo)(nil)
	_ VectorStore = (*repo.ChunkRepo)(nil)
	_ AccessStore = (*repo.AccessRepo)(nil)
)
