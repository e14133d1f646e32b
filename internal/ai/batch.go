package ai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

// Embedder is the single-text embedding capability the batch runs on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Progress struct {
	Current int
	Total   int
	Percent int
}

// ProgressObserver is notified synchronously after every item. It is advisory
// and cannot change the batch outcome.
type ProgressObserver interface {
	OnProgress(p Progress)
}

type ProgressFunc func(p Progress)

func (f ProgressFunc) OnProgress(p Progress) {
	f(p)
}

// EmbedResult is one slot of a batch. Vector is nil when the item failed.
type EmbedResult struct {
	Text   string
	Vector []float32
	Err    error
}

func (r EmbedResult) OK() bool {
	return r.Vector != nil
}

func (r EmbedResult) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type BatchConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

type BatchEmbedder struct {
	client Embedder
	cfg    BatchConfig
}

func NewBatchEmbedder(client Embedder, cfg BatchConfig) *BatchEmbedder {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &BatchEmbedder{client: client, cfg: cfg}
}

// EmbedAll embeds chunks in order. The result always has len(chunks) entries
// and entry i belongs to chunks[i]; a failed item leaves a nil vector and the
// batch moves on.
func (b *BatchEmbedder) EmbedAll(ctx context.Context, chunks []string, observer ProgressObserver) []EmbedResult {
	logger := logutil.GetLogger(ctx)
	total := len(chunks)
	results := make([]EmbedResult, total)
	for i, text := range chunks {
		vec, err := b.embedOne(ctx, text)
		results[i] = EmbedResult{Text: text, Vector: vec, Err: err}
		if err != nil {
			logger.Warn("chunk embedding failed", zap.Int("index", i), zap.Int("total", total), zap.Error(err))
		}
		if observer != nil {
			observer.OnProgress(Progress{
				Current: i + 1,
				Total:   total,
				Percent: int(math.Round(float64(i+1) * 100 / float64(total))),
			})
		}
	}
	return results
}

func (b *BatchEmbedder) embedOne(ctx context.Context, text string) (vec []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			vec, err = nil, fmt.Errorf("embedder panic: %v", r)
		}
	}()
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err = b.client.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		if attempt >= b.cfg.MaxRetries || !retryable(err) {
			return nil, err
		}
		if b.cfg.RetryDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(b.cfg.RetryDelay):
			}
		}
	}
}

func retryable(err error) bool {
	if appErr.IsValidation(err) || errors.Is(err, appErr.ErrDimensionMismatch) {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// FailureReasons returns one "Chunk {n}: ..." line per failed slot, n 1-based.
func FailureReasons(results []EmbedResult) []string {
	var reasons []string
	for i, r := range results {
		if r.OK() {
			continue
		}
		reasons = append(reasons, fmt.Sprintf("Chunk %d: Failed to generate embedding", i+1))
	}
	return reasons
}
