package chunker

import (
	"strings"
	"testing"
)

func mustSplitter(t *testing.T, cfg Config) *Splitter {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func TestSplit_FixedSizeOverlap(t *testing.T) {
	// 250 characters with a repeating pattern so overlap is observable.
	text := strings.Repeat("ABCDEFGHIJ", 25)
	s := mustSplitter(t, Config{Strategy: StrategyFixedSize, ChunkSize: 100, ChunkOverlap: 20})

	chunks := s.Split(text, "doc-1", nil)
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0].Content) > 100 {
		t.Errorf("chunk 0 length %d exceeds chunkSize", len(chunks[0].Content))
	}

	for i := 1; i < len(chunks); i++ {
		prev, cur := chunks[i-1].Content, chunks[i].Content
		if len(prev) < 100 || len(cur) < 20 {
			continue // overlap property only holds for full-length chunks
		}
		tail := prev[len(prev)-20:]
		if !strings.HasPrefix(cur, tail) {
			t.Errorf("chunk %d does not start with the last 20 chars of chunk %d", i, i-1)
		}
	}
}

func TestSplit_ShortText(t *testing.T) {
	s := mustSplitter(t, Config{Strategy: StrategyFixedSize, ChunkSize: 1000, ChunkOverlap: 100})

	chunks := s.Split("Short text.", "doc-1", nil)
	if len(chunks) != 1 {
		t.Fatalf("expected exactly 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Content != "Short text." {
		t.Errorf("expected content %q, got %q", "Short text.", chunks[0].Content)
	}
	if chunks[0].TotalChunks != 1 {
		t.Errorf("expected totalChunks 1, got %d", chunks[0].TotalChunks)
	}
}

func TestSplit_EmptyInput(t *testing.T) {
	s := mustSplitter(t, Config{Strategy: StrategyFixedSize, ChunkSize: 100, ChunkOverlap: 10})

	if chunks := s.Split("", "doc-1", nil); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty input, got %d", len(chunks))
	}
	if chunks := s.Split("   \n\t ", "doc-1", nil); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for whitespace input, got %d", len(chunks))
	}
}

func TestSplit_SentenceBoundary(t *testing.T) {
	text := "The slab pour is scheduled for Monday. Rebar inspection happens first! " +
		"Has the supplier confirmed delivery? The concrete mix is C30/37. " +
		"Curing takes at least seven days."
	s := mustSplitter(t, Config{Strategy: StrategySentence, ChunkSize: 100, ChunkOverlap: 0})

	chunks := s.Split(text, "doc-1", nil)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		trimmed := strings.TrimSpace(c.Content)
		last := trimmed[len(trimmed)-1]
		if last != '.' && last != '!' && last != '?' {
			t.Errorf("chunk %d does not end on a sentence terminator: %q", i, trimmed)
		}
	}
}

func TestSplit_SentenceOverlapCarried(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("Deliveries arrive at the north gate on weekdays. ", 10))
	s := mustSplitter(t, Config{Strategy: StrategySentence, ChunkSize: 120, ChunkOverlap: 30})

	chunks := s.Split(text, "doc-1", nil)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len(c.Content) > 120+30 {
			t.Errorf("chunk length %d exceeds chunkSize+overlap", len(c.Content))
		}
	}
}

func TestSplit_Paragraph(t *testing.T) {
	text := "First paragraph about foundations.\n\nSecond paragraph about drainage works.\n\n" +
		"Third paragraph covering the steel frame erection sequence in detail."
	s := mustSplitter(t, Config{Strategy: StrategyParagraph, ChunkSize: 80, ChunkOverlap: 0})

	chunks := s.Split(text, "doc-1", nil)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0].Content, "foundations") {
		t.Errorf("chunk 0 missing first paragraph: %q", chunks[0].Content)
	}
}

func TestSplit_RecursiveBound(t *testing.T) {
	long := strings.Repeat("word ", 200) // one huge "paragraph" with no sentence breaks
	text := "Intro paragraph.\n\n" + long + "\n\nClosing paragraph."
	s := mustSplitter(t, Config{Strategy: StrategyRecursive, ChunkSize: 100, ChunkOverlap: 20})

	chunks := s.Split(text, "doc-1", nil)
	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, c := range chunks {
		if len(c.Content) > 120 {
			t.Errorf("chunk %d length %d exceeds chunkSize+overlap", i, len(c.Content))
		}
	}
}

func TestSplit_MinChunkSizeDropsShort(t *testing.T) {
	text := strings.Repeat("A", 205)
	s := mustSplitter(t, Config{Strategy: StrategyFixedSize, ChunkSize: 100, ChunkOverlap: 0, MinChunkSize: 50})

	chunks := s.Split(text, "doc-1", nil)
	for i, c := range chunks {
		if len(c.Content) < 50 {
			t.Errorf("chunk %d length %d is below minChunkSize", i, len(c.Content))
		}
	}
	// The trailing 5-char window is dropped, not emitted.
	if len(chunks) != 2 {
		t.Errorf("expected 2 chunks after dropping the short tail, got %d", len(chunks))
	}
}

func TestSplit_Deterministic(t *testing.T) {
	text := "One. Two two. Three three three. Four four four four. Five five five five five."
	for _, strategy := range []Strategy{StrategyFixedSize, StrategySentence, StrategyParagraph, StrategyRecursive} {
		s := mustSplitter(t, Config{Strategy: strategy, ChunkSize: 30, ChunkOverlap: 5})
		first := s.Split(text, "doc-1", nil)
		second := s.Split(text, "doc-1", nil)
		if len(first) != len(second) {
			t.Fatalf("%s: chunk counts differ between runs", strategy)
		}
		for i := range first {
			if first[i].Content != second[i].Content || first[i].Position != second[i].Position {
				t.Errorf("%s: chunk %d differs between runs", strategy, i)
			}
		}
	}
}

func TestSplit_PositionsAndMetadata(t *testing.T) {
	text := strings.Repeat("ABCDEFGHIJ", 30)
	s := mustSplitter(t, Config{Strategy: StrategyFixedSize, ChunkSize: 100, ChunkOverlap: 0})

	chunks := s.Split(text, "doc-7", map[string]any{"filename": "site-notes.txt", "userId": "u-1"})
	seen := make(map[string]bool)
	for i, c := range chunks {
		if c.Position != i {
			t.Errorf("chunk %d has position %d", i, c.Position)
		}
		if c.TotalChunks != len(chunks) {
			t.Errorf("chunk %d totalChunks %d, want %d", i, c.TotalChunks, len(chunks))
		}
		if c.Metadata["chunkIndex"] != i {
			t.Errorf("chunk %d metadata chunkIndex %v", i, c.Metadata["chunkIndex"])
		}
		if c.Metadata["filename"] != "site-notes.txt" || c.Metadata["userId"] != "u-1" {
			t.Errorf("chunk %d missing caller metadata", i)
		}
		if seen[c.ID] {
			t.Errorf("duplicate chunk id %q", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestSplit_Markdown(t *testing.T) {
	input := `# Site Handbook

General site rules.

## Deliveries

All deliveries go through the north gate and must be booked a day ahead.

## Safety

Hard hats are mandatory beyond the site office.
`
	s := mustSplitter(t, Config{Strategy: StrategyMarkdown, ChunkSize: 400, ChunkOverlap: 0})

	chunks := s.Split(input, "doc-1", nil)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if !strings.HasPrefix(chunks[1].Content, "# Site Handbook > ## Deliveries") {
		t.Errorf("chunk 1 missing header path: %q", chunks[1].Content)
	}
	if !strings.Contains(chunks[2].Content, "Hard hats") {
		t.Errorf("chunk 2 missing section content")
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	cases := []Config{
		{Strategy: StrategyFixedSize, ChunkSize: 0},
		{Strategy: StrategyFixedSize, ChunkSize: 100, ChunkOverlap: 100},
		{Strategy: StrategyFixedSize, ChunkSize: 100, ChunkOverlap: -1},
		{Strategy: "semantic", ChunkSize: 100},
	}
	for i, cfg := range cases {
		if _, err := New(cfg); err == nil {
			t.Errorf("case %d: expected error for config %+v", i, cfg)
		}
	}
}
