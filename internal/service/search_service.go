package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/coachrag/internal/model"
	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

const (
	DefaultSearchLimit     = 5
	DefaultSearchThreshold = 0.7
)

type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

type SearchRequest struct {
	Query     string           `json:"query"`
	CoachID   string           `json:"coach_id"`
	Limit     int              `json:"limit"`
	Threshold *float64         `json:"threshold,omitempty"`
	Tier      model.AccessTier `json:"tier,omitempty"`
}

type SearchResponse struct {
	Results  []model.SearchResult `json:"results"`
	Degraded bool                 `json:"degraded"`
}

type SearchConfig struct {
	DefaultLimit     int
	MaxLimit         int
	DefaultThreshold float64
}

type SearchService struct {
	embedder QueryEmbedder
	store    VectorStore
	cfg      SearchConfig
}

func NewSearchService(embedder QueryEmbedder, store VectorStore, cfg SearchConfig) *SearchService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultSearchLimit
	}
	if cfg.MaxLimit > 0 && cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	return &SearchService{embedder: embedder, store: store, cfg: cfg}
}

// Search returns chunks granted to the coach ranked by cosine similarity.
// When the ranked lookup fails it falls back to an unranked listing and marks
// the response and every result as degraded with a zero score.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, appErr.ErrEmptyQuery
	}
	coachID := strings.TrimSpace(req.CoachID)
	if coachID == "" {
		return nil, fmt.Errorf("coach id required: %w", appErr.ErrInvalidInput)
	}
	threshold := s.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	if threshold < -1 || threshold > 1 {
		return nil, fmt.Errorf("threshold %v out of range: %w", threshold, appErr.ErrInvalidInput)
	}
	limit := req.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if s.cfg.MaxLimit > 0 && limit > s.cfg.MaxLimit {
		limit = s.cfg.MaxLimit
	}
	var tiers []model.AccessTier
	if req.Tier != "" {
		tiers = model.TiersUpTo(req.Tier)
		if tiers == nil {
			return nil, fmt.Errorf("access tier %q: %w", req.Tier, appErr.ErrInvalidInput)
		}
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	logger := logutil.GetLogger(ctx).With(zap.String("coach_id", coachID), zap.Int("limit", limit))
	results, err := s.store.MatchCoachDocuments(ctx, model.VectorQuery{
		Embedding: vec,
		CoachID:   coachID,
		Tiers:     tiers,
		Limit:     limit,
		Threshold: threshold,
	})
	if err == nil {
		sortByScore(results)
		if len(results) > limit {
			results = results[:limit]
		}
		return &SearchResponse{Results: nonNil(results)}, nil
	}

	logger.Warn("vector search failed, falling back to unranked listing", zap.Error(err))
	fallback, ferr := s.store.ListActive(ctx, coachID, tiers, limit)
	if ferr != nil {
		return nil, fmt.Errorf("search unavailable: %w", ferr)
	}
	if len(fallback) > limit {
		fallback = fallback[:limit]
	}
	for i := range fallback {
		fallback[i].Score = 0
		fallback[i].Degraded = true
	}
	return &SearchResponse{Results: nonNil(fallback), Degraded: true}, nil
}

// sortByScore orders best first; equal scores keep insertion order.
func sortByScore(results []model.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Seq < results[j].Seq
	})
}

func nonNil(results []model.SearchResult) []model.SearchResult {
	if results == nil {
		return []model.SearchResult{}
	}
	return results
}
