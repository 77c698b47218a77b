// Package indexer runs the upload-and-index flow: document text is
// chunked, embedded in batches and upserted into the tenant's namespace.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/goldarch/knowledge-engine/internal/chunker"
	"github.com/goldarch/knowledge-engine/internal/embedding"
	"github.com/goldarch/knowledge-engine/internal/vectorstore"
)

// BatchEmbedder is the slice of the embedding service the pipeline uses.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string, parallel bool) (*embedding.BatchResult, error)
}

// Upserter is the slice of the vector store the pipeline uses.
type Upserter interface {
	UpsertChunks(ctx context.Context, req vectorstore.UpsertRequest) error
}

// Document is one uploaded document ready for indexing. ID is generated
// when empty; re-uploading produces a new document rather than mutating
// the old one.
type Document struct {
	ID       string
	FileName string
	Content  string
	UserID   string
	Scope    vectorstore.Scope
	Metadata map[string]any
}

// Result contains statistics about one indexing operation.
type Result struct {
	DocumentID    string
	Namespace     string
	TotalChunks   int
	IndexedChunks int
	FailedChunks  int
	TokensUsed    int64
	CacheHits     int
	Duration      time.Duration
}

// FailedDoc records a document that could not be indexed.
type FailedDoc struct {
	FileName string
	Reason   string
}

// BatchIndexResult aggregates an IndexAll run.
type BatchIndexResult struct {
	TotalDocs      int
	SuccessfulDocs int
	TotalChunks    int
	FailedDocs     []FailedDoc
	Duration       time.Duration
}

// Pipeline orchestrates chunking, embedding and storage.
type Pipeline struct {
	splitter *chunker.Splitter
	embedder BatchEmbedder
	store    Upserter
	logger   *slog.Logger
}

// NewPipeline creates an indexing pipeline with explicit dependencies.
func NewPipeline(splitter *chunker.Splitter, embedder BatchEmbedder, store Upserter, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		splitter: splitter,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// IndexDocument runs the full pipeline for one document. Chunks whose
// embedding failed after retries are dropped and counted, not fatal;
// the operation only fails when nothing could be embedded or storage
// rejects the write.
func (p *Pipeline) IndexDocument(ctx context.Context, doc Document) (*Result, error) {
	start := time.Now()

	if doc.UserID == "" {
		return nil, fmt.Errorf("index document: %w", vectorstore.ErrIsolationViolation)
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	namespace := vectorstore.Namespace(doc.UserID, doc.Scope)

	chunks := p.splitter.Split(doc.Content, doc.ID, p.chunkMetadata(doc))
	if len(chunks) == 0 {
		p.logger.Info("document produced no chunks", "documentId", doc.ID, "fileName", doc.FileName)
		return &Result{
			DocumentID: doc.ID,
			Namespace:  namespace,
			Duration:   time.Since(start),
		}, nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	batch, err := p.embedder.EmbedBatch(ctx, texts, true)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	// Keep only chunk/vector pairs that embedded successfully.
	kept := make([]chunker.Chunk, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	for i, vector := range batch.Vectors {
		if vector == nil {
			continue
		}
		kept = append(kept, chunks[i])
		vectors = append(vectors, vector)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("embed chunks: all %d chunks failed", len(chunks))
	}
	if batch.Failures > 0 {
		p.logger.Warn("partial embedding failure",
			"documentId", doc.ID,
			"failed", batch.Failures,
			"total", len(chunks),
		)
	}

	err = p.store.UpsertChunks(ctx, vectorstore.UpsertRequest{
		Chunks:     kept,
		Embeddings: vectors,
		Namespace:  namespace,
		UserID:     doc.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	result := &Result{
		DocumentID:    doc.ID,
		Namespace:     namespace,
		TotalChunks:   len(chunks),
		IndexedChunks: len(kept),
		FailedChunks:  batch.Failures,
		TokensUsed:    batch.TotalTokens,
		CacheHits:     batch.CacheHits,
		Duration:      time.Since(start),
	}

	p.logger.Info("indexed document",
		"documentId", doc.ID,
		"fileName", doc.FileName,
		"namespace", namespace,
		"chunks", result.IndexedChunks,
		"failed", result.FailedChunks,
		"tokensUsed", result.TokensUsed,
		"duration", result.Duration,
	)
	return result, nil
}

// IndexAll indexes documents sequentially, skipping ones that fail so a
// bad file does not sink the whole upload.
func (p *Pipeline) IndexAll(ctx context.Context, docs []Document) (*BatchIndexResult, error) {
	start := time.Now()
	result := &BatchIndexResult{TotalDocs: len(docs)}

	for _, doc := range docs {
		res, err := p.IndexDocument(ctx, doc)
		if err != nil {
			p.logger.Warn("failed to index document", "fileName", doc.FileName, "error", err)
			result.FailedDocs = append(result.FailedDocs, FailedDoc{
				FileName: doc.FileName,
				Reason:   err.Error(),
			})
			continue
		}
		result.SuccessfulDocs++
		result.TotalChunks += res.IndexedChunks
	}

	result.Duration = time.Since(start)
	p.logger.Info("indexing complete",
		"successful", result.SuccessfulDocs,
		"failed", len(result.FailedDocs),
		"chunks", result.TotalChunks,
		"duration", result.Duration,
	)
	return result, nil
}

// chunkMetadata stamps ownership and source fields into every chunk.
// The tenant id always comes from the authenticated request, never from
// caller-supplied metadata.
func (p *Pipeline) chunkMetadata(doc Document) map[string]any {
	md := make(map[string]any, len(doc.Metadata)+4)
	for k, v := range doc.Metadata {
		md[k] = v
	}
	if doc.FileName != "" {
		md["fileName"] = doc.FileName
	}
	md["userId"] = doc.UserID
	if doc.Scope.ProjectID != "" {
		md["projectId"] = doc.Scope.ProjectID
	}
	if doc.Scope.SupplierID != "" {
		md["supplierId"] = doc.Scope.SupplierID
	}
	return md
}
