package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCitationsDeduplicatesBySource(t *testing.T) {
	included := []includedPassage{
		{result: passage("c1", "doc-1", "quote.pdf", "chunk one", 0.9), content: "chunk one"},
		{result: passage("c2", "doc-1", "quote.pdf", "chunk two", 0.85), content: "chunk two"},
		{result: passage("c3", "doc-2", "notes.md", "other doc", 0.7), content: "other doc"},
	}

	citations := buildCitations(included)
	require.Len(t, citations, 2)
	assert.Equal(t, "quote.pdf", citations[0].Source)
	assert.Equal(t, "chunk one", citations[0].Excerpt)
	assert.Equal(t, "notes.md", citations[1].Source)
}

func TestBuildCitationsSortedByScore(t *testing.T) {
	included := []includedPassage{
		{result: passage("c1", "doc-1", "low.md", "low", 0.6), content: "low"},
		{result: passage("c2", "doc-2", "high.md", "high", 0.95), content: "high"},
	}

	citations := buildCitations(included)
	require.Len(t, citations, 2)
	assert.Equal(t, "high.md", citations[0].Source)
	assert.Equal(t, "low.md", citations[1].Source)
}

func TestExcerptShortContentUnchanged(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 200))
}

func TestExcerptPrefersSentenceBoundary(t *testing.T) {
	content := strings.Repeat("a", 180) + ". " + strings.Repeat("b", 100)
	out := excerpt(content, 200)
	assert.True(t, strings.HasSuffix(out, "."))
	assert.LessOrEqual(t, len(out), 200)
}

func TestExcerptFallsBackToWordBoundary(t *testing.T) {
	content := strings.Repeat("word ", 60)
	out := excerpt(content, 200)
	assert.True(t, strings.HasSuffix(out, "..."))
	assert.LessOrEqual(t, len(out), 203)
}

func TestExcerptHardCut(t *testing.T) {
	content := strings.Repeat("z", 300)
	out := excerpt(content, 200)
	assert.Equal(t, strings.Repeat("z", 200)+"...", out)
}
