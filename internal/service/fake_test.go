package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xxxsen/coachrag/internal/model"
	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
	"github.com/xxxsen/coachrag/internal/repo"
)

type finalizeCall struct {
	ID     string
	Status model.SourceStatus
	ErrMsg string
}

type fakeSourceStore struct {
	mu          sync.Mutex
	sources     map[string]*model.DocumentSource
	finalized   []finalizeCall
	createErr   error
	finalizeErr error
	stale       []model.DocumentSource
	touches     int
}

func newFakeSourceStore() *fakeSourceStore {
	return &fakeSourceStore{sources: map[string]*model.DocumentSource{}}
}

func (f *fakeSourceStore) Create(_ context.Context, src *model.DocumentSource) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	cp := *src
	f.sources[src.ID] = &cp
	return nil
}

func (f *fakeSourceStore) Finalize(_ context.Context, id string, status model.SourceStatus, errMsg string, processedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	src, ok := f.sources[id]
	if !ok || src.Status != model.SourceStatusProcessing {
		return appErr.ErrNotFound
	}
	src.Status = status
	src.ErrorMessage = errMsg
	src.LastProcessed = processedAt
	src.Mtime = processedAt
	f.finalized = append(f.finalized, finalizeCall{ID: id, Status: status, ErrMsg: errMsg})
	return nil
}

func (f *fakeSourceStore) FinalizeStale(ctx context.Context, id string, status model.SourceStatus, errMsg string, cutoff, processedAt int64) error {
	f.mu.Lock()
	src, ok := f.sources[id]
	fresh := ok && src.Mtime >= cutoff
	f.mu.Unlock()
	if fresh {
		return appErr.ErrNotFound
	}
	return f.Finalize(ctx, id, status, errMsg, processedAt)
}

func (f *fakeSourceStore) Touch(_ context.Context, id string, at int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok || src.Status != model.SourceStatusProcessing {
		return appErr.ErrNotFound
	}
	src.Mtime = at
	f.touches++
	return nil
}

func (f *fakeSourceStore) GetByID(_ context.Context, id string) (*model.DocumentSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.sources[id]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	cp := *src
	return &cp, nil
}

func (f *fakeSourceStore) ListStale(_ context.Context, cutoff int64, limit int) ([]model.DocumentSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stale != nil {
		return f.stale, nil
	}
	var out []model.DocumentSource
	for _, src := range f.sources {
		if src.Status == model.SourceStatusProcessing && src.Mtime < cutoff {
			out = append(out, *src)
		}
	}
	return out, nil
}

func (f *fakeSourceStore) only() *model.DocumentSource {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, src := range f.sources {
		return src
	}
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeChunkStore struct {
	mu        sync.Mutex
	inserted  []model.DocumentChunk
	insertErr error
	counts    map[string]repo.ChunkCount
}

func (f *fakeChunkStore) InsertBatch(_ context.Context, chunks []model.DocumentChunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, chunks...)
	return nil
}

func (f *fakeChunkStore) CountBySources(_ context.Context, ids []string) (map[string]repo.ChunkCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]repo.ChunkCount, len(ids))
	for _, id := range ids {
		if c, ok := f.counts[id]; ok {
			out[id] = c
		}
	}
	return out, nil
}

type fakeAccessStore struct {
	grants    map[string]model.AccessTier
	failCoach string
	calls     int
}

func newFakeAccessStore() *fakeAccessStore {
	return &fakeAccessStore{grants: map[string]model.AccessTier{}}
}

func (f *fakeAccessStore) Grant(_ context.Context, documentID, coachID string, tier model.AccessTier) error {
	f.calls++
	if coachID == f.failCoach {
		return errors.New("rpc unavailable")
	}
	f.grants[documentID+"/"+coachID] = tier
	return nil
}

type fakeVectorStore struct {
	matches   []model.SearchResult
	matchErr  error
	active    []model.SearchResult
	activeErr error
	lastQuery model.VectorQuery
}

func (f *fakeVectorStore) MatchCoachDocuments(_ context.Context, q model.VectorQuery) ([]model.SearchResult, error) {
	f.lastQuery = q
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	var out []model.SearchResult
	for _, r := range f.matches {
		if r.Score >= q.Threshold {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeVectorStore) ListActive(_ context.Context, coachID string, tiers []model.AccessTier, limit int) ([]model.SearchResult, error) {
	if f.activeErr != nil {
		return nil, f.activeErr
	}
	out := f.active
	if len(out) > limit {
		out = out[:limit]
	}
	return append([]model.SearchResult(nil), out...), nil
}

type fakeQueryEmbedder struct {
	dim   int
	calls int
	err   error
}

func (f *fakeQueryEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return make([]float32, f.dim), nil
}

// listChunker returns its fixed chunks regardless of input.
type listChunker []string

func (c listChunker) Chunk(text string) ([]string, error) {
	if len(c) == 0 {
		return nil, appErr.ErrInvalidInput
	}
	return c, nil
}

func numberedChunks(n int) listChunker {
	out := make(listChunker, n)
	for i := range out {
		out[i] = fmt.Sprintf("chunk-%d.", i)
	}
	return out
}

type fakeDocEmbedder struct {
	dim    int
	failOn map[string]bool
}

func (f *fakeDocEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.failOn[text] {
		return nil, errors.New("provider error")
	}
	vec := make([]float32, f.dim)
	vec[0] = 1
	return vec, nil
}

// blockingDocEmbedder runs hook before embedding each text, then embeds it.
type blockingDocEmbedder struct {
	dim  int
	hook func(text string)
}

func (b *blockingDocEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if b.hook != nil {
		b.hook(text)
	}
	vec := make([]float32, b.dim)
	vec[0] = 1
	return vec, nil
}
