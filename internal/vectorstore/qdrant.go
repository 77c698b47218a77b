// Package vectorstore is the namespace-partitioned vector index backing
// retrieval. Every record carries its owning tenant, and every operation
// is forced through a namespace plus tenant filter.
package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Store wraps the Qdrant client with collection management, tenant
// filtering and retry.
type Store struct {
	client    *qdrant.Client
	dimension int
}

// NewStore connects to Qdrant and verifies health with retry, failing
// fast if the server is unreachable.
func NewStore(host string, port, dimension int) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	store := &Store{client: client, dimension: dimension}

	if err := store.healthCheckWithRetry(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return store, nil
}

func (s *Store) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(func() error { return s.Health(ctx) }, backoff.WithContext(b, ctx))
}

// Health performs a single health check.
func (s *Store) Health(ctx context.Context) error {
	result, err := s.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// EnsureCollection creates the documents collection with cosine distance
// and payload indexes on every filterable field. Idempotent.
func (s *Store) EnsureCollection(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == CollectionName {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: CollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	// Without these indexes filtered search degrades badly.
	fields := []string{"namespace", "userId", "documentId", "projectId", "supplierId"}
	for _, field := range fields {
		_, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: CollectionName,
			FieldName:      field,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		})
		if err != nil {
			return fmt.Errorf("create index for field %s: %w", field, err)
		}
	}
	return nil
}

// UpsertChunks writes chunk/embedding pairs as vector records. The
// request's namespace and tenant id are stamped into every record,
// overriding anything a caller put in chunk metadata.
func (s *Store) UpsertChunks(ctx context.Context, req UpsertRequest) error {
	if req.UserID == "" || req.Namespace == "" {
		return fmt.Errorf("upsert: %w", ErrIsolationViolation)
	}
	if len(req.Chunks) != len(req.Embeddings) {
		return fmt.Errorf("%w: %d chunks, %d embeddings", ErrCountMismatch, len(req.Chunks), len(req.Embeddings))
	}
	if len(req.Chunks) == 0 {
		return nil
	}
	for i, embedding := range req.Embeddings {
		if len(embedding) != s.dimension {
			return fmt.Errorf("%w: embedding %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(embedding), s.dimension)
		}
	}

	// Batches of 100 keep individual gRPC messages small.
	const batchSize = 100
	for start := 0; start < len(req.Chunks); start += batchSize {
		end := min(start+batchSize, len(req.Chunks))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for i := start; i < end; i++ {
			chunk := req.Chunks[i]

			payload := make(map[string]any, len(chunk.Metadata)+7)
			for k, v := range chunk.Metadata {
				payload[k] = v
			}
			payload["chunkId"] = chunk.ID
			payload["documentId"] = chunk.DocumentID
			payload["content"] = chunk.Content
			payload["position"] = chunk.Position
			payload["totalChunks"] = chunk.TotalChunks
			payload["namespace"] = req.Namespace
			payload["userId"] = req.UserID

			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(pointID(chunk.ID)),
				Vectors: qdrant.NewVectors(req.Embeddings[i]...),
				Payload: qdrant.NewValueMap(payload),
			})
		}

		if err := s.upsertWithRetry(ctx, points); err != nil {
			return fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func (s *Store) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: CollectionName,
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// Search runs a top-K similarity query. The tenant filter is always
// attached; results are score-filtered and sorted descending regardless
// of the server's return order.
func (s *Store) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()

	if req.UserID == "" || req.Namespace == "" {
		return nil, fmt.Errorf("search: %w", ErrIsolationViolation)
	}
	if len(req.QueryEmbedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(req.QueryEmbedding), s.dimension)
	}
	topK := req.TopK
	if topK <= 0 {
		topK = 5
	}

	must := []*qdrant.Condition{
		qdrant.NewMatch("namespace", req.Namespace),
		qdrant.NewMatch("userId", req.UserID),
	}
	for field, value := range req.Filters {
		if field == "userId" || field == "namespace" {
			continue // caller filters merge with the tenant filter, never replace it
		}
		must = append(must, qdrant.NewMatch(field, value))
	}

	query := &qdrant.QueryPoints{
		CollectionName: CollectionName,
		Query:          qdrant.NewQuery(req.QueryEmbedding...),
		Filter:         &qdrant.Filter{Must: must},
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if req.MinScore > 0 {
		query.ScoreThreshold = qdrant.PtrOf(float32(req.MinScore))
	}

	points, err := s.client.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		score := float64(point.Score)
		if score < req.MinScore {
			continue
		}
		payload := point.Payload

		metadata := make(map[string]any, len(payload))
		for key, value := range payload {
			if key == "content" || key == "chunkId" {
				continue
			}
			if v, ok := valueToAny(value); ok {
				metadata[key] = v
			}
		}

		results = append(results, SearchResult{
			ID:         payload["chunkId"].GetStringValue(),
			DocumentID: payload["documentId"].GetStringValue(),
			Content:    payload["content"].GetStringValue(),
			Score:      score,
			Metadata:   metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	return &SearchResponse{
		Results:        results,
		Namespace:      req.Namespace,
		ProcessingTime: time.Since(start),
	}, nil
}

// DeleteDocument removes every record of one document inside the
// caller's namespace.
func (s *Store) DeleteDocument(ctx context.Context, userID, namespace, documentID string) error {
	if userID == "" || namespace == "" {
		return fmt.Errorf("delete: %w", ErrIsolationViolation)
	}
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: CollectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("namespace", namespace),
				qdrant.NewMatch("userId", userID),
				qdrant.NewMatch("documentId", documentID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("delete document %s: %w", documentID, err)
	}
	return nil
}

// GetStats returns collection-level counters.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	collection, err := s.client.GetCollectionInfo(ctx, CollectionName)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return &Stats{PointsCount: collection.GetPointsCount()}, nil
}

// Close closes the underlying client connection.
func (s *Store) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// pointID maps a chunk id onto a stable UUID, since Qdrant point ids
// must be UUIDs or integers. Re-upserting the same chunk overwrites its
// record instead of duplicating it.
func pointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

func valueToAny(v *qdrant.Value) (any, bool) {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue, true
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue, true
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue, true
	case *qdrant.Value_BoolValue:
		return kind.BoolValue, true
	}
	return nil, false
}
