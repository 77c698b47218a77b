package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goldarch/knowledge-engine/internal/vectorstore"
)

func TestAssembleContextFormat(t *testing.T) {
	results := []vectorstore.SearchResult{
		passage("c1", "doc-1", "quote.pdf", "First passage.", 0.9),
		passage("c2", "doc-2", "notes.md", "Second passage.", 0.8),
	}

	included, contextStr := assembleContext(results, 0)
	require.Len(t, included, 2)

	assert.Equal(t,
		"[Source 1: quote.pdf]\nFirst passage.\n"+passageSeparator+"[Source 2: notes.md]\nSecond passage.\n",
		contextStr)
}

func TestAssembleContextTruncatesLowestRanked(t *testing.T) {
	long := strings.Repeat("x", 500)
	results := []vectorstore.SearchResult{
		passage("c1", "doc-1", "a.md", "short top passage", 0.9),
		passage("c2", "doc-2", "b.md", long, 0.8),
	}

	included, contextStr := assembleContext(results, 200)
	require.Len(t, included, 2)

	// The top passage is intact, the second is cut to fit.
	assert.Equal(t, "short top passage", included[0].content)
	assert.Less(t, len(included[1].content), 500)
	assert.LessOrEqual(t, len(contextStr), 200)
}

func TestAssembleContextDropsTinyRemainder(t *testing.T) {
	results := []vectorstore.SearchResult{
		passage("c1", "doc-1", "a.md", strings.Repeat("y", 160), 0.9),
		passage("c2", "doc-2", "b.md", "never fits", 0.8),
	}

	included, _ := assembleContext(results, 200)
	require.Len(t, included, 1)
	assert.Equal(t, "a.md", sourceName(included[0].result))
}

func TestSourceNamePriority(t *testing.T) {
	r := vectorstore.SearchResult{DocumentID: "doc-9", Metadata: map[string]any{}}
	assert.Equal(t, "Document doc-9", sourceName(r))

	r.Metadata["title"] = "Site Handbook"
	assert.Equal(t, "Site Handbook", sourceName(r))

	r.Metadata["fileName"] = "handbook.pdf"
	assert.Equal(t, "handbook.pdf", sourceName(r))

	assert.Equal(t, "Unknown Source", sourceName(vectorstore.SearchResult{}))
}

func TestFillTemplate(t *testing.T) {
	out := fillTemplate("C: {context} Q: {question}", "ctx", "why?")
	assert.Equal(t, "C: ctx Q: why?", out)
}
