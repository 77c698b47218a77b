package rag

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/goldarch/knowledge-engine/internal/embedding"
)

// Completion is one generated answer with usage accounting.
type Completion struct {
	Text       string
	TokensUsed int64
	Model      string
}

// CompletionClient generates text from an assembled prompt. Retry and
// timeout policy live behind this interface so the engine stays
// provider-agnostic.
type CompletionClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error)
}

// CompletionConfig controls the model call and its retry policy.
type CompletionConfig struct {
	Model         string
	Temperature   float64
	MaxTokens     int64
	RetryAttempts uint64
	RetryDelay    time.Duration
	Timeout       time.Duration
}

const (
	defaultCompletionTimeout = 60 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryDelay        = time.Second
)

// NewCompletionClient builds a completion client for a provider tag.
// Gemini is reached through its OpenAI-compatible endpoint; Claude has
// no completion integration yet and is rejected here rather than at
// call time.
func NewCompletionClient(kind embedding.ProviderKind, apiKey, baseURL string, cfg CompletionConfig) (CompletionClient, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCompletionTimeout
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	switch kind {
	case embedding.ProviderOpenAI, embedding.ProviderGemini:
		return newOpenAICompletion(kind, apiKey, baseURL, cfg)
	case embedding.ProviderClaude:
		return nil, fmt.Errorf("completion provider %q is not yet implemented", kind)
	default:
		return nil, fmt.Errorf("unknown completion provider %q", kind)
	}
}

type openAICompletion struct {
	client openai.Client
	cfg    CompletionConfig
}

func newOpenAICompletion(kind embedding.ProviderKind, apiKey, baseURL string, cfg CompletionConfig) (*openAICompletion, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("completion provider %q requires an api key", kind)
	}
	if kind == embedding.ProviderGemini && baseURL == "" {
		baseURL = embedding.GeminiOpenAIBaseURL
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	return &openAICompletion{client: openai.NewClient(opts...), cfg: cfg}, nil
}

func (c *openAICompletion) Complete(ctx context.Context, systemPrompt, userPrompt string) (*Completion, error) {
	var completion *Completion

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		params := openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(systemPrompt),
				openai.UserMessage(userPrompt),
			},
			Model: c.cfg.Model,
		}
		if c.cfg.Temperature > 0 {
			params.Temperature = openai.Float(c.cfg.Temperature)
		}
		if c.cfg.MaxTokens > 0 {
			params.MaxTokens = openai.Int(c.cfg.MaxTokens)
		}

		resp, err := c.client.Chat.Completions.New(callCtx, params)
		if err != nil {
			if isTransientCompletion(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("completion returned no choices"))
		}

		completion = &Completion{
			Text:       resp.Choices[0].Message.Content,
			TokensUsed: resp.Usage.TotalTokens,
			Model:      resp.Model,
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryDelay
	b.MaxInterval = 10 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.cfg.RetryAttempts), ctx))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	return completion, nil
}

func isTransientCompletion(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 408, apiErr.StatusCode == 429:
			return true
		case apiErr.StatusCode >= 500:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
