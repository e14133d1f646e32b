package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

type geminiConfig struct {
	APIKey string `json:"api_key"`
}

type geminiEmbedProvider struct {
	apiKey    string
	dimension int32

	once      sync.Once
	client    *genai.Client
	clientErr error
}

func (p *geminiEmbedProvider) Name() string {
	return "gemini"
}

func (p *geminiEmbedProvider) getClient(ctx context.Context) (*genai.Client, error) {
	p.once.Do(func() {
		p.client, p.clientErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  p.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	return p.client, p.clientErr
}

func (p *geminiEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if p.apiKey == "" {
		return nil, ErrUnavailable
	}
	client, err := p.getClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	config := &genai.EmbedContentConfig{TaskType: taskType}
	if p.dimension > 0 {
		dim := p.dimension
		config.OutputDimensionality = &dim
	}
	resp, err := client.Models.EmbedContent(
		ctx,
		model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: text}}}},
		config,
	)
	if err != nil {
		return nil, err
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("no embedding values returned")
	}
	return resp.Embeddings[0].Values, nil
}

func createGeminiEmbedFactory(args EmbedProviderArgs) (IEmbedProvider, error) {
	cfg := &geminiConfig{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	return &geminiEmbedProvider{
		apiKey:    strings.TrimSpace(cfg.APIKey),
		dimension: int32(args.Dimension),
	}, nil
}

func init() {
	RegisterEmbed("gemini", createGeminiEmbedFactory)
}
