package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// openAIProvider serves both the OpenAI endpoint and any
// OpenAI-compatible one (Gemini) selected by base URL.
type openAIProvider struct {
	client openai.Client
}

func newOpenAIProvider(apiKey, baseURL string) (*openAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("embedding provider API key not set")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &openAIProvider{client: openai.NewClient(opts...)}, nil
}

func (p *openAIProvider) Embed(ctx context.Context, texts []string, model string) ([][]float32, int64, error) {
	resp, err := p.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model: model,
	})
	if err != nil {
		return nil, 0, err
	}
	if len(resp.Data) != len(texts) {
		return nil, 0, fmt.Errorf("provider returned %d vectors for %d texts", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, data := range resp.Data {
		vectors[i] = toFloat32(data.Embedding)
	}
	return vectors, resp.Usage.TotalTokens, nil
}

// toFloat32 narrows the provider's float64 vectors for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
