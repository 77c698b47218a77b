// Package chunker splits raw document text into overlapping, boundary-aware
// chunks suitable for embedding and retrieval.
package chunker

import (
	"fmt"
	"regexp"
	"strings"
)

// Strategy selects the splitting algorithm.
type Strategy string

const (
	StrategyFixedSize Strategy = "fixed-size"
	StrategySentence  Strategy = "sentence-boundary"
	StrategyParagraph Strategy = "paragraph"
	StrategyRecursive Strategy = "recursive"
	StrategyMarkdown  Strategy = "markdown"
)

// ParseStrategy validates a strategy tag from configuration.
// Unknown tags are rejected here, not at split time.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyFixedSize, StrategySentence, StrategyParagraph, StrategyRecursive, StrategyMarkdown:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown chunking strategy %q", s)
}

// Config controls chunk sizing and boundary behavior.
type Config struct {
	Strategy     Strategy
	ChunkSize    int // target max characters per chunk
	ChunkOverlap int // characters repeated between consecutive chunks
	MinChunkSize int // chunks shorter than this are dropped (0 = keep all)
}

// Chunk is one bounded unit of a document's text.
type Chunk struct {
	ID          string
	DocumentID  string
	Content     string
	Position    int // 0-based index within the document
	TotalChunks int // count at chunking time, same across all chunks
	Metadata    map[string]any
}

// Splitter turns document text into ordered chunks. Split is a pure
// function of its inputs plus the configuration, so two runs over the
// same document produce identical output.
type Splitter struct {
	cfg Config
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+`)

// New validates the configuration and returns a Splitter.
func New(cfg Config) (*Splitter, error) {
	if cfg.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunkSize must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunkOverlap must satisfy 0 <= overlap < chunkSize, got %d", cfg.ChunkOverlap)
	}
	if cfg.MinChunkSize < 0 {
		return nil, fmt.Errorf("minChunkSize must not be negative, got %d", cfg.MinChunkSize)
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyFixedSize
	}
	if _, err := ParseStrategy(string(cfg.Strategy)); err != nil {
		return nil, err
	}
	return &Splitter{cfg: cfg}, nil
}

// Split chunks text into ordered, overlapping units. Metadata is copied
// into every chunk alongside its chunkIndex. Empty input yields no chunks;
// input shorter than chunkSize yields exactly one chunk.
func (s *Splitter) Split(text, documentID string, metadata map[string]any) []Chunk {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) <= s.cfg.ChunkSize {
		return finalize([]string{trimmed}, documentID, metadata)
	}

	var pieces []string
	switch s.cfg.Strategy {
	case StrategySentence:
		pieces = s.accumulate(splitSentences(trimmed), " ")
	case StrategyParagraph:
		pieces = s.accumulate(splitParagraphs(trimmed), "\n\n")
	case StrategyRecursive:
		pieces = s.accumulate(s.recursivePieces(trimmed, recursiveSeparators), " ")
	case StrategyMarkdown:
		pieces = s.markdownPieces(trimmed)
	default:
		pieces = s.fixedPieces(trimmed)
	}
	return finalize(pieces, documentID, metadata)
}

// fixedPieces slides a chunkSize window forward by chunkSize-overlap.
func (s *Splitter) fixedPieces(text string) []string {
	var pieces []string
	step := s.cfg.ChunkSize - s.cfg.ChunkOverlap
	for pos := 0; pos < len(text); pos += step {
		end := min(pos+s.cfg.ChunkSize, len(text))
		piece := strings.TrimSpace(text[pos:end])
		if len(piece) >= s.cfg.MinChunkSize && piece != "" {
			pieces = append(pieces, piece)
		}
	}
	return pieces
}

// accumulate packs atomic units into chunks of at most chunkSize,
// repeating the trailing overlap of each emitted chunk at the start of
// the next one.
func (s *Splitter) accumulate(units []string, joiner string) []string {
	var pieces []string
	var cur string
	for _, unit := range units {
		if cur != "" && len(cur)+len(joiner)+len(unit) > s.cfg.ChunkSize {
			piece := strings.TrimSpace(cur)
			if len(piece) >= s.cfg.MinChunkSize && piece != "" {
				pieces = append(pieces, piece)
			}
			cur = overlapTail(cur, s.cfg.ChunkOverlap) + unit
			continue
		}
		if cur != "" {
			cur += joiner
		}
		cur += unit
	}
	if piece := strings.TrimSpace(cur); len(piece) >= s.cfg.MinChunkSize && piece != "" {
		pieces = append(pieces, piece)
	}
	return pieces
}

var recursiveSeparators = []string{"\n\n", ". ", " "}

// recursivePieces splits text by successively finer separators until each
// unit fits within chunkSize, falling back to a hard character split.
// Callers re-merge the units with accumulate.
func (s *Splitter) recursivePieces(text string, separators []string) []string {
	if len(text) <= s.cfg.ChunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		// Character break: nothing finer to split on.
		var units []string
		for pos := 0; pos < len(text); pos += s.cfg.ChunkSize {
			units = append(units, text[pos:min(pos+s.cfg.ChunkSize, len(text))])
		}
		return units
	}
	var units []string
	for _, part := range strings.Split(text, separators[0]) {
		if part == "" {
			continue
		}
		if len(part) > s.cfg.ChunkSize {
			units = append(units, s.recursivePieces(part, separators[1:])...)
		} else {
			units = append(units, part)
		}
	}
	return units
}

// splitSentences splits on ., ! or ? followed by whitespace. Text with no
// terminal punctuation comes back as a single sentence.
func splitSentences(text string) []string {
	spans := sentenceRe.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return []string{text}
	}
	sentences := make([]string, 0, len(spans)+1)
	for _, span := range spans {
		sentences = append(sentences, strings.TrimSpace(text[span[0]:span[1]]))
	}
	// Trailing text without a terminator is still a unit.
	if rest := strings.TrimSpace(text[spans[len(spans)-1][1]:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func splitParagraphs(text string) []string {
	var paragraphs []string
	for _, p := range regexp.MustCompile(`\n\s*\n`).Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	return paragraphs
}

// overlapTail returns the last n characters of text, or "" when overlap
// is disabled or the text is shorter than the overlap.
func overlapTail(text string, n int) string {
	if n == 0 || len(text) <= n {
		return ""
	}
	return text[len(text)-n:]
}

// finalize assigns ids, positions and metadata once the piece count is
// known. Chunk ids are derived from documentID and position, so they are
// unique within one Split call.
func finalize(pieces []string, documentID string, metadata map[string]any) []Chunk {
	if len(pieces) == 0 {
		return nil
	}
	chunks := make([]Chunk, len(pieces))
	for i, content := range pieces {
		md := make(map[string]any, len(metadata)+1)
		for k, v := range metadata {
			md[k] = v
		}
		md["chunkIndex"] = i
		chunks[i] = Chunk{
			ID:          fmt.Sprintf("%s-chunk-%d", documentID, i),
			DocumentID:  documentID,
			Content:     content,
			Position:    i,
			TotalChunks: len(pieces),
			Metadata:    md,
		}
	}
	return chunks
}
