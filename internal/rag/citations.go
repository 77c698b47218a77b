package rag

import (
	"sort"
	"strings"
)

// Citation ties part of an answer back to a retrieved passage. Citations
// are only ever built from passages that were included in the context
// window, never from the model's output.
type Citation struct {
	Source   string
	Excerpt  string
	Score    float64
	Metadata map[string]any
}

const excerptMaxLength = 200

// buildCitations derives one citation per distinct source from the
// included passages, sorted by descending score.
func buildCitations(included []includedPassage) []Citation {
	seen := make(map[string]bool, len(included))
	citations := make([]Citation, 0, len(included))

	for _, passage := range included {
		source := sourceName(passage.result)
		if seen[source] {
			continue
		}
		seen[source] = true

		citations = append(citations, Citation{
			Source:   source,
			Excerpt:  excerpt(passage.content, excerptMaxLength),
			Score:    passage.result.Score,
			Metadata: passage.result.Metadata,
		})
	}

	sort.SliceStable(citations, func(i, j int) bool { return citations[i].Score > citations[j].Score })
	return citations
}

// excerpt shortens content to maxLength characters, preferring a
// sentence boundary, then a word boundary.
func excerpt(content string, maxLength int) string {
	if len(content) <= maxLength {
		return content
	}

	truncated := content[:maxLength]

	if idx := strings.LastIndex(truncated, "."); idx > maxLength*7/10 {
		return truncated[:idx+1]
	}
	if idx := strings.LastIndex(truncated, " "); idx > maxLength*8/10 {
		return truncated[:idx] + "..."
	}
	return truncated + "..."
}
