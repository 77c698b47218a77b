// Package main provides the knowledge-engine CLI: index documents into
// the vector store and ask questions over them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/goldarch/knowledge-engine/internal/config"
	"github.com/goldarch/knowledge-engine/internal/conversation"
	"github.com/goldarch/knowledge-engine/internal/embedding"
	"github.com/goldarch/knowledge-engine/internal/indexer"
	"github.com/goldarch/knowledge-engine/internal/rag"
	"github.com/goldarch/knowledge-engine/internal/vectorstore"
)

var (
	configPath string
	userID     string
	projectID  string
	supplierID string
)

var rootCmd = &cobra.Command{
	Use:   "knowledge",
	Short: "Document indexing and question answering for the CRM knowledge base",
	Long: `Index construction documents into a tenant-scoped vector store and ask
natural-language questions answered from the retrieved passages, with
citations.

Environment variables:
  QDRANT_HOST       Qdrant hostname (default: localhost)
  QDRANT_PORT       Qdrant gRPC port (default: 6334)
  OPENAI_API_KEY    OpenAI API key (embedding and generation)
  GEMINI_API_KEY    Gemini API key (when provider is gemini)`,
}

var indexCmd = &cobra.Command{
	Use:   "index [files...]",
	Short: "Chunk, embed and store documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIndex,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question over the indexed documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [documentId]",
	Short: "Remove a document's vectors from the index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vector store health and collection statistics",
	RunE:  runStatus,
}

var (
	askConversationID string
	askTopK           int
	askMinScore       float64
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "tenant user id (required for index/ask/delete)")
	rootCmd.PersistentFlags().StringVar(&projectID, "project", "", "scope to a project")
	rootCmd.PersistentFlags().StringVar(&supplierID, "supplier", "", "scope to a supplier")

	askCmd.Flags().StringVar(&askConversationID, "conversation", "", "continue an existing conversation")
	askCmd.Flags().IntVar(&askTopK, "top-k", 0, "override the configured number of passages")
	askCmd.Flags().Float64Var(&askMinScore, "min-score", 0, "override the configured score floor")

	rootCmd.AddCommand(indexCmd, askCmd, deleteCmd, statusCmd)
}

func main() {
	// Load .env if present for local development, ignore when missing.
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// components holds everything a command needs, wired once per run.
type components struct {
	cfg      *config.Config
	store    *vectorstore.Store
	embedder *embedding.Service
	logger   *slog.Logger
}

func setup(ctx context.Context) (*components, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := vectorstore.NewStore(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("connect to vector store: %w", err)
	}
	if err := store.EnsureCollection(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}

	kind, err := embedding.ParseProvider(cfg.Embedding.Provider)
	if err != nil {
		store.Close()
		return nil, err
	}
	provider, err := embedding.NewProvider(kind, cfg.Embedding.APIKey, cfg.Embedding.BaseURL)
	if err != nil {
		store.Close()
		return nil, err
	}

	var cache embedding.Cache
	if cfg.Embedding.Cache.Enabled {
		cache = embedding.NewMemoryCache(cfg.Embedding.Cache.MaxSize, cfg.Embedding.Cache.TTL.Std())
	}

	embedder := embedding.NewService(provider, kind, cache, embedding.ServiceConfig{
		Model:         cfg.Embedding.Model,
		BatchSize:     cfg.Embedding.BatchSize,
		MaxParallel:   cfg.Embedding.MaxParallel,
		RetryAttempts: cfg.Embedding.RetryAttempts,
		RetryDelay:    cfg.Embedding.RetryDelay.Std(),
		Timeout:       cfg.Embedding.Timeout.Std(),
	}, logger)

	return &components{cfg: cfg, store: store, embedder: embedder, logger: logger}, nil
}

func requireUser() error {
	if userID == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

func scope() vectorstore.Scope {
	return vectorstore.Scope{ProjectID: projectID, SupplierID: supplierID}
}

func runIndex(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx := cmd.Context()

	c, err := setup(ctx)
	if err != nil {
		return err
	}
	defer c.store.Close()

	splitter, err := c.cfg.NewSplitter()
	if err != nil {
		return err
	}
	pipeline := indexer.NewPipeline(splitter, c.embedder, c.store, c.logger)

	docs := make([]indexer.Document, 0, len(args))
	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		docs = append(docs, indexer.Document{
			FileName: filepath.Base(path),
			Content:  string(content),
			UserID:   userID,
			Scope:    scope(),
		})
	}

	result, err := pipeline.IndexAll(ctx, docs)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d/%d documents (%d chunks) in %s\n",
		result.SuccessfulDocs, result.TotalDocs, result.TotalChunks, result.Duration)
	for _, failed := range result.FailedDocs {
		fmt.Printf("  failed: %s: %s\n", failed.FileName, failed.Reason)
	}
	if len(result.FailedDocs) > 0 {
		return fmt.Errorf("%d documents failed to index", len(result.FailedDocs))
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx := cmd.Context()

	c, err := setup(ctx)
	if err != nil {
		return err
	}
	defer c.store.Close()

	llmKind, err := embedding.ParseProvider(c.cfg.LLM.Provider)
	if err != nil {
		return err
	}
	llm, err := rag.NewCompletionClient(llmKind, c.cfg.LLM.APIKey, c.cfg.LLM.BaseURL, rag.CompletionConfig{
		Model:         c.cfg.LLM.Model,
		Temperature:   c.cfg.LLM.Temperature,
		MaxTokens:     c.cfg.LLM.MaxTokens,
		RetryAttempts: c.cfg.LLM.RetryAttempts,
		RetryDelay:    c.cfg.LLM.RetryDelay.Std(),
		Timeout:       c.cfg.LLM.Timeout.Std(),
	})
	if err != nil {
		return err
	}

	engine := rag.NewEngine(c.embedder, c.store, llm, conversation.NewManager(), rag.Config{
		TopK:                      c.cfg.LLM.TopK,
		MinScore:                  c.cfg.LLM.MinScore,
		ContextWindow:             c.cfg.LLM.ContextWindow,
		IncludeCitations:          c.cfg.LLM.IncludeCitations,
		FallbackMessage:           c.cfg.LLM.FallbackMessage,
		EnableConversationHistory: c.cfg.LLM.EnableConversationHistory,
		MaxHistoryLength:          c.cfg.LLM.MaxHistoryLength,
	}, c.logger)

	resp, err := engine.Answer(ctx, rag.AnswerRequest{
		Question:       args[0],
		UserID:         userID,
		ConversationID: askConversationID,
		Scope:          scope(),
		TopK:           askTopK,
		MinScore:       askMinScore,
	})
	if err != nil {
		return err
	}

	fmt.Println(resp.Message)
	if len(resp.Citations) > 0 {
		fmt.Println("\nSources:")
		for i, citation := range resp.Citations {
			fmt.Printf("  [%d] %s (relevance: %.0f%%)\n", i+1, citation.Source, citation.Score*100)
		}
	}
	fmt.Printf("\nconversation: %s  confidence: %.2f  tokens: %d\n",
		resp.ConversationID, resp.Confidence, resp.TokensUsed)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	ctx := cmd.Context()

	c, err := setup(ctx)
	if err != nil {
		return err
	}
	defer c.store.Close()

	namespace := vectorstore.Namespace(userID, scope())
	if err := c.store.DeleteDocument(ctx, userID, namespace, args[0]); err != nil {
		return err
	}
	fmt.Printf("Deleted document %s from %s\n", args[0], namespace)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	c, err := setup(ctx)
	if err != nil {
		return err
	}
	defer c.store.Close()

	if err := c.store.Health(ctx); err != nil {
		return fmt.Errorf("vector store unhealthy: %w", err)
	}
	stats, err := c.store.GetStats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Vector store: healthy (%s:%d)\n", c.cfg.Qdrant.Host, c.cfg.Qdrant.Port)
	fmt.Printf("Collection %q: %d points\n", vectorstore.CollectionName, stats.PointsCount)

	if cacheStats, ok := c.embedder.CacheStats(); ok {
		fmt.Printf("Embedding cache: %d entries, %d hits, %d misses\n",
			cacheStats.Size, cacheStats.Hits, cacheStats.Misses)
	}
	return nil
}
