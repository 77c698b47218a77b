// Package embedding converts chunk and query text into vectors through a
// pluggable provider, with batching, caching and retry.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/openai/openai-go"
)

// ProviderKind is the closed set of supported embedding providers.
// Unknown tags are rejected when configuration is loaded.
type ProviderKind string

const (
	ProviderOpenAI ProviderKind = "openai"
	ProviderClaude ProviderKind = "claude"
	ProviderGemini ProviderKind = "gemini"
)

// ParseProvider validates a provider tag from configuration.
func ParseProvider(s string) (ProviderKind, error) {
	switch ProviderKind(s) {
	case ProviderOpenAI, ProviderClaude, ProviderGemini:
		return ProviderKind(s), nil
	}
	return "", fmt.Errorf("unknown embedding provider %q", s)
}

// Provider is the single capability the rest of the system depends on.
type Provider interface {
	// Embed returns one vector per input text, in input order, plus the
	// token count the provider charged for the call.
	Embed(ctx context.Context, texts []string, model string) ([][]float32, int64, error)
}

// GeminiOpenAIBaseURL is Google's OpenAI-compatible endpoint, shared by
// the embedding and completion clients.
const GeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

// NewProvider constructs the provider for a validated tag. baseURL
// overrides the provider default when non-empty.
func NewProvider(kind ProviderKind, apiKey, baseURL string) (Provider, error) {
	switch kind {
	case ProviderOpenAI:
		return newOpenAIProvider(apiKey, baseURL)
	case ProviderGemini:
		if baseURL == "" {
			baseURL = GeminiOpenAIBaseURL
		}
		return newOpenAIProvider(apiKey, baseURL)
	case ProviderClaude:
		// Anthropic does not expose an embeddings endpoint.
		return nil, fmt.Errorf("claude embedding provider not implemented")
	}
	return nil, fmt.Errorf("unknown embedding provider %q", kind)
}

// isTransient reports whether a provider error is worth retrying:
// timeouts, rate limits and server-side failures.
func isTransient(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 408 || apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
