package vectorstore

import (
	"time"

	"github.com/goldarch/knowledge-engine/internal/chunker"
)

// CollectionName is the single Qdrant collection for all tenants; the
// namespace payload field partitions it.
const CollectionName = "documents"

// UpsertRequest writes chunk/embedding pairs into one namespace. UserID
// is the owning tenant and is stamped into every record; it is the sole
// multi-tenant isolation mechanism and must never be omitted.
type UpsertRequest struct {
	Chunks     []chunker.Chunk
	Embeddings [][]float32
	Namespace  string
	UserID     string
}

// SearchRequest runs a top-K similarity query inside one namespace. The
// store always adds the UserID as a mandatory filter on top of Filters.
type SearchRequest struct {
	QueryEmbedding []float32
	TopK           int
	Namespace      string
	UserID         string
	Filters        map[string]string
	MinScore       float64
}

// SearchResult is one usable piece of evidence: score is already
// guaranteed to be at least the request's MinScore.
type SearchResult struct {
	ID         string
	DocumentID string
	Content    string
	Score      float64
	Metadata   map[string]any
}

// SearchResponse carries results in descending score order.
type SearchResponse struct {
	Results        []SearchResult
	Namespace      string
	ProcessingTime time.Duration
}

// Stats summarizes collection contents.
type Stats struct {
	PointsCount uint64
}
