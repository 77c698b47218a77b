// Package rag orchestrates retrieval-augmented answering: embed the
// question, search the caller's namespace, assemble a bounded context,
// generate, and cite the passages that backed the answer.
package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/goldarch/knowledge-engine/internal/conversation"
	"github.com/goldarch/knowledge-engine/internal/embedding"
	"github.com/goldarch/knowledge-engine/internal/vectorstore"
)

var (
	ErrEmptyQuestion = errors.New("question must not be empty")
	ErrMissingUser   = errors.New("user id is required")
)

// Embedder is the slice of the embedding service the engine needs.
type Embedder interface {
	Embed(ctx context.Context, text string) (embedding.Result, error)
}

// Searcher is the slice of the vector store the engine needs.
type Searcher interface {
	Search(ctx context.Context, req vectorstore.SearchRequest) (*vectorstore.SearchResponse, error)
}

// Config tunes retrieval and generation defaults. Zero values fall back
// to the package defaults at construction time.
type Config struct {
	TopK                      int
	MinScore                  float64
	ContextWindow             int
	IncludeCitations          bool
	FallbackMessage           string
	EnableConversationHistory bool
	MaxHistoryLength          int
}

const (
	DefaultTopK             = 5
	DefaultMinScore         = 0.6
	DefaultContextWindow    = 4000
	DefaultMaxHistoryLength = 10

	DefaultFallbackMessage = "I could not find any documents matching your question. " +
		"Try uploading the relevant documents, narrowing the question to a specific " +
		"project or supplier, or rephrasing it."
)

// Engine wires the embedding service, vector store, completion client
// and conversation store into the answer flow.
type Engine struct {
	embedder      Embedder
	store         Searcher
	llm           CompletionClient
	conversations *conversation.Manager
	cfg           Config
	logger        *slog.Logger
}

// NewEngine constructs the engine with explicit dependencies. A nil
// logger falls back to slog.Default.
func NewEngine(embedder Embedder, store Searcher, llm CompletionClient, conversations *conversation.Manager, cfg Config, logger *slog.Logger) *Engine {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.MinScore <= 0 {
		cfg.MinScore = DefaultMinScore
	}
	if cfg.ContextWindow <= 0 {
		cfg.ContextWindow = DefaultContextWindow
	}
	if cfg.MaxHistoryLength <= 0 {
		cfg.MaxHistoryLength = DefaultMaxHistoryLength
	}
	if cfg.FallbackMessage == "" {
		cfg.FallbackMessage = DefaultFallbackMessage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		embedder:      embedder,
		store:         store,
		llm:           llm,
		conversations: conversations,
		cfg:           cfg,
		logger:        logger,
	}
}

// AnswerRequest is one question scoped to a tenant. Scope selects the
// namespace; Filters narrow retrieval further. TopK and MinScore
// override the configured defaults when positive.
type AnswerRequest struct {
	Question       string
	UserID         string
	ConversationID string
	Scope          vectorstore.Scope
	Filters        map[string]string
	TopK           int
	MinScore       float64
}

// AnswerResponse is the generated answer with its provenance.
type AnswerResponse struct {
	Message        string
	Citations      []Citation
	Confidence     float64
	Grounded       bool
	ConversationID string
	Namespace      string
	TokensUsed     int64
	RetrievalTime  time.Duration
	GenerationTime time.Duration
	ProcessingTime time.Duration
}

// Answer runs the full flow. A retrieval that clears nothing above the
// score floor is not an error; it returns the configured fallback
// message with zero citations. Provider failures after retries are
// surfaced, never papered over with a degraded answer.
func (e *Engine) Answer(ctx context.Context, req AnswerRequest) (*AnswerResponse, error) {
	start := time.Now()

	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	if req.UserID == "" {
		return nil, ErrMissingUser
	}

	embedded, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}
	minScore := req.MinScore
	if minScore <= 0 {
		minScore = e.cfg.MinScore
	}
	namespace := vectorstore.Namespace(req.UserID, req.Scope)

	retrievalStart := time.Now()
	searchResp, err := e.store.Search(ctx, vectorstore.SearchRequest{
		QueryEmbedding: embedded.Vector,
		TopK:           topK,
		Namespace:      namespace,
		UserID:         req.UserID,
		Filters:        req.Filters,
		MinScore:       minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("retrieve context: %w", err)
	}
	retrievalTime := time.Since(retrievalStart)

	if len(searchResp.Results) == 0 {
		e.logger.Info("no evidence above score floor",
			"namespace", namespace,
			"minScore", minScore,
		)
		return e.noEvidenceResponse(req, namespace, retrievalTime, start), nil
	}

	included, contextStr := assembleContext(searchResp.Results, e.cfg.ContextWindow)

	var history []conversation.Message
	if e.cfg.EnableConversationHistory && req.ConversationID != "" {
		history = e.conversations.Window(req.ConversationID, e.cfg.MaxHistoryLength)
	}

	template := qaTemplate
	if len(history) > 0 {
		template = conversationTemplate
	}
	systemPrompt := fillTemplate(template.System, contextStr, question)
	userPrompt := fillTemplate(template.User, contextStr, question)
	if len(history) > 0 {
		userPrompt = "Previous conversation:\n" + historyString(history) + "\n\n" + userPrompt
	}

	generationStart := time.Now()
	completion, err := e.llm.Complete(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	generationTime := time.Since(generationStart)

	citations := buildCitations(included)
	confidence := meanScore(searchResp.Results)

	conversationID := req.ConversationID
	if e.cfg.EnableConversationHistory {
		conversationID = e.storeTurn(conversationID, req.UserID, question, completion.Text, citations)
	} else if conversationID == "" {
		conversationID = uuid.NewString()
	}

	resp := &AnswerResponse{
		Message:        completion.Text,
		Citations:      citations,
		Confidence:     confidence,
		Grounded:       true,
		ConversationID: conversationID,
		Namespace:      namespace,
		TokensUsed:     completion.TokensUsed,
		RetrievalTime:  retrievalTime,
		GenerationTime: generationTime,
		ProcessingTime: time.Since(start),
	}

	if !e.cfg.IncludeCitations {
		// Still computed above so provenance reaches the logs.
		e.logger.Info("citations suppressed from response",
			"count", len(citations),
			"conversationId", conversationID,
		)
		resp.Citations = nil
	}

	e.logger.Info("answer generated",
		"namespace", namespace,
		"passages", len(included),
		"citations", len(citations),
		"tokensUsed", completion.TokensUsed,
		"retrievalMs", retrievalTime.Milliseconds(),
		"generationMs", generationTime.Milliseconds(),
	)

	return resp, nil
}

func (e *Engine) noEvidenceResponse(req AnswerRequest, namespace string, retrievalTime time.Duration, start time.Time) *AnswerResponse {
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	return &AnswerResponse{
		Message:        e.cfg.FallbackMessage,
		Citations:      nil,
		Confidence:     0,
		Grounded:       false,
		ConversationID: conversationID,
		Namespace:      namespace,
		RetrievalTime:  retrievalTime,
		ProcessingTime: time.Since(start),
	}
}

func (e *Engine) storeTurn(conversationID, userID, question, answer string, citations []Citation) string {
	id := e.conversations.Append(conversationID, userID, conversation.Message{
		Role:    conversation.RoleUser,
		Content: question,
	})

	stored := make([]conversation.Citation, len(citations))
	for i, c := range citations {
		stored[i] = conversation.Citation{Source: c.Source, Excerpt: c.Excerpt, Score: c.Score}
	}
	e.conversations.Append(id, userID, conversation.Message{
		Role:      conversation.RoleAssistant,
		Content:   answer,
		Citations: stored,
	})
	return id
}

// meanScore averages result scores and clamps to 1, a rough confidence
// signal for callers.
func meanScore(results []vectorstore.SearchResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	avg := sum / float64(len(results))
	if avg > 1 {
		return 1
	}
	return avg
}
