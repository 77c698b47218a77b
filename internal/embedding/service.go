package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultBatchSize balances requests-per-minute vs tokens-per-minute
	// pressure on the provider.
	DefaultBatchSize = 100

	// DefaultMaxParallel bounds concurrent in-flight batches.
	DefaultMaxParallel = 5
)

// ServiceConfig tunes batching, retry and timeout behavior.
type ServiceConfig struct {
	Model         string
	BatchSize     int
	MaxParallel   int
	RetryAttempts int
	RetryDelay    time.Duration // initial backoff interval
	Timeout       time.Duration // per provider call
}

// Service is the embedding client: it consults the cache, batches
// provider calls, bounds their concurrency and retries transient
// failures. Concurrent misses on the same key are coalesced into a
// single provider call.
type Service struct {
	provider Provider
	kind     ProviderKind
	cache    Cache
	cfg      ServiceConfig
	flight   singleflight.Group
	logger   *slog.Logger
}

// NewService wires a provider and cache into an embedding client. Pass a
// nil cache to disable caching.
func NewService(provider Provider, kind ProviderKind, cache Cache, cfg ServiceConfig, logger *slog.Logger) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = DefaultMaxParallel
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{provider: provider, kind: kind, cache: cache, cfg: cfg, logger: logger}
}

// CacheStats reports cache counters when the configured cache tracks
// them.
func (s *Service) CacheStats() (CacheStats, bool) {
	if c, ok := s.cache.(interface{ Stats() CacheStats }); ok {
		return c.Stats(), true
	}
	return CacheStats{}, false
}

// Result is a single-text embedding with provenance.
type Result struct {
	Vector     []float32
	TokensUsed int64
	Cached     bool
}

// BatchError records one input that failed after retries.
type BatchError struct {
	Index int
	Err   error
}

// BatchResult holds per-input vectors in input order. Failed inputs keep
// a nil vector and appear in Errors; they never abort the whole batch.
type BatchResult struct {
	Vectors     [][]float32
	Failures    int
	Errors      []BatchError
	TotalTokens int64
	TotalTime   time.Duration
	CacheHits   int
}

// Embed returns the vector for one text, from cache when possible.
func (s *Service) Embed(ctx context.Context, text string) (Result, error) {
	key := CacheKey(s.kind, s.cfg.Model, text)
	if vec, ok := s.cache.Get(key); ok {
		return Result{Vector: vec, Cached: true}, nil
	}

	// Coalesce concurrent misses on the same key into one provider call.
	v, err, _ := s.flight.Do(key, func() (any, error) {
		if vec, ok := s.cache.Get(key); ok {
			return Result{Vector: vec, Cached: true}, nil
		}
		vectors, tokens, err := s.embedWithRetry(ctx, []string{text})
		if err != nil {
			return Result{}, err
		}
		s.cache.Set(key, vectors[0])
		return Result{Vector: vectors[0], TokensUsed: tokens}, nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("embed: %w", err)
	}
	return v.(Result), nil
}

// EmbedBatch embeds texts in batches of at most BatchSize, dispatched
// with bounded parallelism when parallel is true. Output order matches
// input order regardless of batch completion order.
func (s *Service) EmbedBatch(ctx context.Context, texts []string, parallel bool) (*BatchResult, error) {
	start := time.Now()
	result := &BatchResult{Vectors: make([][]float32, len(texts))}
	if len(texts) == 0 {
		return result, nil
	}

	// Serve cache hits up front so only misses hit the provider.
	var uncachedIdx []int
	for i, text := range texts {
		if vec, ok := s.cache.Get(CacheKey(s.kind, s.cfg.Model, text)); ok {
			result.Vectors[i] = vec
			result.CacheHits++
		} else {
			uncachedIdx = append(uncachedIdx, i)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	if parallel {
		g.SetLimit(s.cfg.MaxParallel)
	} else {
		g.SetLimit(1)
	}

	for batchStart := 0; batchStart < len(uncachedIdx); batchStart += s.cfg.BatchSize {
		batchEnd := min(batchStart+s.cfg.BatchSize, len(uncachedIdx))
		indexes := uncachedIdx[batchStart:batchEnd]

		g.Go(func() error {
			batch := make([]string, len(indexes))
			for j, idx := range indexes {
				batch[j] = texts[idx]
			}

			vectors, tokens, err := s.embedWithRetry(gctx, batch)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Partial success is the policy: record and move on.
				s.logger.Warn("embedding batch failed", "size", len(batch), "error", err)
				for _, idx := range indexes {
					result.Errors = append(result.Errors, BatchError{Index: idx, Err: err})
				}
				result.Failures += len(indexes)
				return nil
			}
			result.TotalTokens += tokens
			for j, idx := range indexes {
				result.Vectors[idx] = vectors[j]
				s.cache.Set(CacheKey(s.kind, s.cfg.Model, texts[idx]), vectors[j])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}
	result.TotalTime = time.Since(start)
	return result, nil
}

// embedWithRetry calls the provider with a per-call timeout, retrying
// transient failures with exponential backoff.
func (s *Service) embedWithRetry(ctx context.Context, texts []string) ([][]float32, int64, error) {
	var vectors [][]float32
	var tokens int64

	operation := func() error {
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()

		v, t, err := s.provider.Embed(callCtx, texts, s.cfg.Model)
		if err != nil {
			if isTransient(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		vectors, tokens = v, t
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.RetryDelay
	b.MaxInterval = 10 * time.Second

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.RetryAttempts)), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, 0, err
	}
	return vectors, tokens, nil
}
