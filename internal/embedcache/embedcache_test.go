package embedcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/coachrag/internal/model"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return []float32{float32(len(text)), 2, 3}, nil
}

func (c *countingEmbedder) ModelName() string {
	return "text-embedding-test"
}

type memStore struct {
	items   map[string][]float32
	saves   int
	getErr  error
	saveErr error
}

func (m *memStore) Get(ctx context.Context, modelName, taskType, contentHash string) ([]float32, bool, error) {
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.items[modelName+taskType+contentHash]
	return v, ok, nil
}

func (m *memStore) Save(ctx context.Context, item *model.EmbeddingCache) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.items[item.ModelName+item.TaskType+item.ContentHash] = item.Embedding
	return nil
}

func TestLruEmbedderCachesPerTaskType(t *testing.T) {
	next := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(next, 10, time.Minute)

	v1, err := e.Embed(context.Background(), "low carb snacks", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	v1[0] = 99
	v2, err := e.Embed(context.Background(), "low carb snacks", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, float32(15), v2[0])
	require.Equal(t, 1, next.calls)

	_, err = e.Embed(context.Background(), "low carb snacks", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 2, next.calls)
	require.Equal(t, "text-embedding-test", e.ModelName())
}

func TestLruEmbedderDisabled(t *testing.T) {
	next := &countingEmbedder{}
	require.Same(t, next, WrapLruCacheToEmbedder(next, 0, time.Minute))
}

func TestDBEmbedderHitAndMiss(t *testing.T) {
	next := &countingEmbedder{}
	store := &memStore{items: map[string][]float32{}}
	e := WrapDBCacheToEmbedder(next, store)

	_, err := e.Embed(context.Background(), "vegan protein", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "vegan protein", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 1, next.calls)
	require.Equal(t, 1, store.saves)
}

func TestDBEmbedderDegradesOnStoreErrors(t *testing.T) {
	next := &countingEmbedder{}
	store := &memStore{items: map[string][]float32{}, getErr: errors.New("db down"), saveErr: errors.New("db down")}
	e := WrapDBCacheToEmbedder(next, store)

	vec, err := e.Embed(context.Background(), "paleo", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Len(t, vec, 3)

	next.err = errors.New("provider down")
	_, err = e.Embed(context.Background(), "paleo", "RETRIEVAL_DOCUMENT")
	require.EqualError(t, err, "provider down")
}
