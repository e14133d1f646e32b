package ai

import (
	"context"
	"strings"
	"time"

	"golang.org/x/time/rate"

	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

const (
	DefaultDimension         = 768
	DefaultRequestsPerMinute = 1500
)

type ClientConfig struct {
	Dimension         int
	RequestsPerMinute int
	// CallTimeout bounds a single provider call, excluding the rate limit wait.
	CallTimeout time.Duration
	// CacheLayer wraps the rate limited embedder. Vectors it serves from a
	// cache never wait for the limiter.
	CacheLayer func(IEmbedder) IEmbedder
}

// Client produces fixed dimension vectors through an embedder while keeping
// provider calls at least time.Minute/RequestsPerMinute apart. One Client owns
// one rate budget; share the instance to share the budget.
type Client struct {
	embedder  IEmbedder
	dimension int
	limiter   *rate.Limiter
}

func NewClient(embedder IEmbedder, cfg ClientConfig) *Client {
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	c := &Client{
		dimension: cfg.Dimension,
		limiter:   rate.NewLimiter(limit, 1),
	}
	if embedder != nil {
		c.embedder = &limitedEmbedder{next: embedder, limiter: c.limiter, timeout: cfg.CallTimeout}
		if cfg.CacheLayer != nil {
			c.embedder = cfg.CacheLayer(c.embedder)
		}
	}
	return c
}

// limitedEmbedder is the provider side of the client: every call through it
// spends one limiter token.
type limitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
	timeout time.Duration
}

func (l *limitedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	return l.next.Embed(ctx, text, taskType)
}

func (l *limitedEmbedder) ModelName() string {
	return l.next.ModelName()
}

func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) ModelName() string {
	if c.embedder == nil {
		return ""
	}
	return c.embedder.ModelName()
}

// MinInterval is the enforced spacing between provider calls.
func (c *Client) MinInterval() time.Duration {
	if c.limiter.Limit() == rate.Inf {
		return 0
	}
	return time.Duration(float64(time.Second) / float64(c.limiter.Limit()))
}

// Embed embeds document text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, TaskTypeRetrievalDocument)
}

// EmbedQuery embeds a search query.
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text, TaskTypeRetrievalQuery)
}

func (c *Client) embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, appErr.ErrEmptyInput
	}
	if c.embedder == nil {
		return nil, ErrUnavailable
	}
	vec, err := c.embedder.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if len(vec) != c.dimension {
		return nil, &appErr.DimensionMismatchError{Expected: c.dimension, Got: len(vec)}
	}
	return vec, nil
}
