package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coachrag/internal/ai"
	"github.com/xxxsen/coachrag/internal/model"
	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

// DefaultHeartbeatInterval is how often a running ingestion refreshes its
// source's mtime. It must stay well below the reconcile stale window.
const DefaultHeartbeatInterval = time.Minute

type Chunker interface {
	Chunk(text string) ([]string, error)
}

type BatchRunner interface {
	EmbedAll(ctx context.Context, chunks []string, observer ai.ProgressObserver) []ai.EmbedResult
}

type IngestDocument struct {
	Title      string
	Content    string
	SourceType string
	ByteSize   int64
}

type IngestOptions struct {
	Attribution model.Attribution
	Tier        model.AccessTier
	Tags        []string
	Coaches     []string
	Extra       map[string]string
}

type IngestResult struct {
	SourceID       string             `json:"source_id"`
	ProcessedCount int                `json:"processed_count"`
	ErrorCount     int                `json:"error_count"`
	Errors         []string           `json:"errors,omitempty"`
	GrantFailures  []GrantFailure     `json:"-"`
	Status         model.SourceStatus `json:"status"`
	Finalized      bool               `json:"finalized"`
}

type IngestService struct {
	sources SourceStore
	chunks  ChunkStore
	grantor *AccessGrantor
	chunker Chunker
	batch   BatchRunner
	dim       int
	heartbeat time.Duration
	now       func() time.Time
}

func NewIngestService(sources SourceStore, chunks ChunkStore, grantor *AccessGrantor, chunker Chunker, batch BatchRunner, dim int) *IngestService {
	return &IngestService{
		sources: sources,
		chunks:  chunks,
		grantor: grantor,
		chunker: chunker,
		batch:   batch,
		dim:       dim,
		heartbeat: DefaultHeartbeatInterval,
		now:       time.Now,
	}
}

// heartbeat keeps a processing source fresh so reconciliation leaves a slow
// ingestion alone. Touch failures are logged and otherwise ignored.
type heartbeat struct {
	ctx      context.Context
	sources  SourceStore
	id       string
	interval time.Duration
	now      func() time.Time
	last     time.Time
	logger   *zap.Logger
}

func (h *heartbeat) beat(force bool) {
	now := h.now()
	if !force && now.Sub(h.last) < h.interval {
		return
	}
	h.last = now
	if err := h.sources.Touch(h.ctx, h.id, now.Unix()); err != nil {
		h.logger.Warn("refresh source heartbeat failed", zap.Error(err))
	}
}

func (h *heartbeat) wrap(observer ai.ProgressObserver) ai.ProgressObserver {
	return ai.ProgressFunc(func(p ai.Progress) {
		h.beat(false)
		if observer != nil {
			observer.OnProgress(p)
		}
	})
}

// Ingest stores one document as embedded, coach-scoped chunks. Per-chunk
// embedding failures and per-coach grant failures are reported in the result;
// only source creation and the chunk batch write fail the call.
func (s *IngestService) Ingest(ctx context.Context, doc IngestDocument, opts IngestOptions, observer ai.ProgressObserver) (*IngestResult, error) {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		return nil, fmt.Errorf("title required: %w", appErr.ErrInvalidInput)
	}
	if !opts.Tier.Valid() {
		return nil, fmt.Errorf("access tier %q: %w", opts.Tier, appErr.ErrInvalidInput)
	}
	coaches := normalizeCoachIDs(opts.Coaches)
	if len(coaches) == 0 {
		return nil, fmt.Errorf("at least one coach required: %w", appErr.ErrInvalidInput)
	}
	texts, err := s.chunker.Chunk(doc.Content)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	byteSize := doc.ByteSize
	if byteSize <= 0 {
		byteSize = int64(len(doc.Content))
	}
	src := &model.DocumentSource{
		ID:          newID(),
		Title:       title,
		SourceType:  doc.SourceType,
		ByteSize:    byteSize,
		Status:      model.SourceStatusProcessing,
		Attribution: opts.Attribution,
		Metadata: model.SourceMetadata{
			AccessTier: opts.Tier,
			Tags:       opts.Tags,
			Coaches:    coaches,
			Extra:      opts.Extra,
		},
		Ctime: now,
		Mtime: now,
	}
	logger := logutil.GetLogger(ctx).With(zap.String("source_id", src.ID), zap.String("title", title))
	if err := s.sources.Create(ctx, src); err != nil {
		return nil, fmt.Errorf("%w: %w", appErr.ErrSourceCreation, err)
	}
	logger.Info("document source created", zap.Int("chunks", len(texts)), zap.Strings("coaches", coaches))

	hb := &heartbeat{
		ctx:      ctx,
		sources:  s.sources,
		id:       src.ID,
		interval: s.heartbeat,
		now:      s.now,
		last:     time.Unix(now, 0),
		logger:   logger,
	}
	results := s.batch.EmbedAll(ctx, texts, hb.wrap(observer))
	total := len(texts)
	records := make([]model.DocumentChunk, 0, total)
	var reasons []string
	for i, res := range results {
		if !res.OK() {
			reasons = append(reasons, fmt.Sprintf("Chunk %d: Failed to generate embedding", i+1))
			logger.Warn("chunk embedding failed", zap.Int("chunk", i+1), zap.String("reason", res.Reason()))
			continue
		}
		chunk := model.DocumentChunk{
			ID:          newID(),
			SourceID:    src.ID,
			Title:       model.ChunkTitle(title, i, total),
			Content:     res.Text,
			ChunkIndex:  i,
			TotalChunks: total,
			Embedding:   res.Vector,
			Metadata: model.ChunkMetadata{
				CharLength: len([]rune(res.Text)),
				Position:   i,
				AccessTier: opts.Tier,
				Tags:       opts.Tags,
			},
			Ctime: now,
		}
		if err := chunk.Validate(s.dim); err != nil {
			reasons = append(reasons, fmt.Sprintf("Chunk %d: Failed to generate embedding", i+1))
			logger.Warn("chunk rejected", zap.Int("chunk", i+1), zap.Error(err))
			continue
		}
		records = append(records, chunk)
	}

	result := &IngestResult{
		SourceID:   src.ID,
		ErrorCount: len(reasons),
		Errors:     reasons,
	}
	if len(records) > 0 {
		hb.beat(true)
		if err := s.chunks.InsertBatch(ctx, records); err != nil {
			msg := fmt.Sprintf("chunk persistence failed: %v", err)
			if ferr := s.sources.Finalize(ctx, src.ID, model.SourceStatusFailed, msg, s.now().Unix()); ferr != nil {
				logger.Error("finalize source after persistence failure", zap.Error(ferr))
			}
			return nil, fmt.Errorf("%w: %w", appErr.ErrPersistence, err)
		}
	}
	result.ProcessedCount = len(records)

	for _, chunk := range records {
		hb.beat(false)
		report, err := s.grantor.Grant(ctx, chunk.ID, coaches, opts.Tier)
		if err != nil {
			logger.Warn("grant coach access failed", zap.String("chunk_id", chunk.ID), zap.Error(err))
			continue
		}
		result.GrantFailures = append(result.GrantFailures, report.Failures...)
	}

	result.Status = model.SourceStatusCompleted
	errMsg := ""
	if len(reasons) > 0 {
		result.Status = model.SourceStatusFailed
		errMsg = strings.Join(reasons, "; ")
	}
	if err := s.sources.Finalize(ctx, src.ID, result.Status, errMsg, s.now().Unix()); err != nil {
		logger.Error("finalize source failed, status left as processing", zap.Error(err))
	} else {
		result.Finalized = true
	}
	logger.Info("document ingested",
		zap.Int("processed", result.ProcessedCount),
		zap.Int("errors", result.ErrorCount),
		zap.Int("grant_failures", len(result.GrantFailures)),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}
