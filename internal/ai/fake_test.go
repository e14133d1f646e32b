package ai

import (
	"context"
	"sync"
)

type fakeEmbedder struct {
	mu        sync.Mutex
	dim       int
	calls     int
	taskTypes []string
	failOn    map[string]error
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim, failOn: map[string]error{}}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.taskTypes = append(f.taskTypes, taskType)
	if err, ok := f.failOn[text]; ok {
		return nil, err
	}
	vec := make([]float32, f.dim)
	for i := range vec {
		vec[i] = float32(len(text)) / float32(i+1)
	}
	return vec, nil
}

func (f *fakeEmbedder) ModelName() string {
	return "fake-embedding"
}

func (f *fakeEmbedder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
