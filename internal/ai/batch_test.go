package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
)

type flakyClient struct {
	failures map[int]int
	errs     map[int]error
	calls    map[int]int
	index    map[string]int
}

func newFlakyClient(chunks []string) *flakyClient {
	idx := make(map[string]int, len(chunks))
	for i, c := range chunks {
		idx[c] = i
	}
	return &flakyClient{failures: map[int]int{}, errs: map[int]error{}, calls: map[int]int{}, index: idx}
}

func (f *flakyClient) Embed(ctx context.Context, text string) ([]float32, error) {
	i := f.index[text]
	f.calls[i]++
	if f.calls[i] <= f.failures[i] {
		if err, ok := f.errs[i]; ok {
			return nil, err
		}
		return nil, fmt.Errorf("provider timeout on %d", i)
	}
	return []float32{float32(i), 1}, nil
}

func makeChunks(n int) []string {
	chunks := make([]string, n)
	for i := range chunks {
		chunks[i] = fmt.Sprintf("chunk-%d", i)
	}
	return chunks
}

func TestEmbedAllKeepsOrderAndLength(t *testing.T) {
	for _, n := range []int{0, 1, 7, 25} {
		chunks := makeChunks(n)
		client := newFlakyClient(chunks)
		for i := 0; i < n; i += 3 {
			client.failures[i] = 1
		}
		results := NewBatchEmbedder(client, BatchConfig{}).EmbedAll(context.Background(), chunks, nil)
		require.Len(t, results, n)
		for i, r := range results {
			require.Equal(t, chunks[i], r.Text)
			if i%3 == 0 {
				require.False(t, r.OK())
				require.Error(t, r.Err)
				continue
			}
			require.True(t, r.OK())
			require.Equal(t, float32(i), r.Vector[0])
		}
	}
}

func TestEmbedAllReportsProgress(t *testing.T) {
	chunks := makeChunks(3)
	client := newFlakyClient(chunks)
	client.failures[1] = 1

	var seen []Progress
	NewBatchEmbedder(client, BatchConfig{}).EmbedAll(context.Background(), chunks, ProgressFunc(func(p Progress) {
		seen = append(seen, p)
	}))
	require.Equal(t, []Progress{
		{Current: 1, Total: 3, Percent: 33},
		{Current: 2, Total: 3, Percent: 67},
		{Current: 3, Total: 3, Percent: 100},
	}, seen)
}

func TestEmbedAllRetriesProviderErrors(t *testing.T) {
	chunks := makeChunks(2)
	client := newFlakyClient(chunks)
	client.failures[0] = 2
	client.failures[1] = 5

	results := NewBatchEmbedder(client, BatchConfig{MaxRetries: 2}).EmbedAll(context.Background(), chunks, nil)
	require.True(t, results[0].OK())
	require.Equal(t, 3, client.calls[0])
	require.False(t, results[1].OK())
	require.Equal(t, 3, client.calls[1])
}

func TestEmbedAllDoesNotRetryDimensionMismatch(t *testing.T) {
	chunks := makeChunks(1)
	client := newFlakyClient(chunks)
	client.failures[0] = 10
	client.errs[0] = &appErr.DimensionMismatchError{Expected: 768, Got: 3}

	results := NewBatchEmbedder(client, BatchConfig{MaxRetries: 3}).EmbedAll(context.Background(), chunks, nil)
	require.False(t, results[0].OK())
	require.ErrorIs(t, results[0].Err, appErr.ErrDimensionMismatch)
	require.Equal(t, 1, client.calls[0])
}

type panicClient struct{}

func (panicClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "chunk-1" {
		panic("boom")
	}
	return []float32{1}, nil
}

func TestEmbedAllSurvivesPanickingItem(t *testing.T) {
	results := NewBatchEmbedder(panicClient{}, BatchConfig{}).EmbedAll(context.Background(), makeChunks(3), nil)
	require.Len(t, results, 3)
	require.True(t, results[0].OK())
	require.False(t, results[1].OK())
	require.True(t, results[2].OK())
}

func TestEmbedAllCancelledContextFillsSlots(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := NewBatchEmbedder(newFlakyClient(makeChunks(4)), BatchConfig{}).EmbedAll(ctx, makeChunks(4), nil)
	require.Len(t, results, 4)
	for _, r := range results {
		require.True(t, errors.Is(r.Err, context.Canceled))
	}
}

func TestFailureReasons(t *testing.T) {
	results := []EmbedResult{
		{Vector: []float32{1}},
		{Err: errors.New("x")},
		{Vector: []float32{1}},
		{Err: errors.New("y")},
	}
	require.Equal(t, []string{
		"Chunk 2: Failed to generate embedding",
		"Chunk 4: Failed to generate embedding",
	}, FailureReasons(results))
}
