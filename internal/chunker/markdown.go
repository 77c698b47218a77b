package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/toc"
)

// markdownPieces splits markdown at H1 and H2 boundaries, prepending the
// header hierarchy to each section so retrieval keeps its context.
// Sections exceeding chunkSize fall through to sentence accumulation, and
// documents without headers are chunked as plain sentences.
func (s *Splitter) markdownPieces(source string) []string {
	md := goldmark.New(goldmark.WithParserOptions(parser.WithAutoHeadingID()))
	reader := text.NewReader([]byte(source))
	doc := md.Parser().Parse(reader)

	tree, err := toc.Inspect(doc, []byte(source),
		toc.MinDepth(1),
		toc.MaxDepth(2),
		toc.Compact(true),
	)
	if err != nil || len(tree.Items) == 0 {
		return s.accumulate(splitSentences(source), " ")
	}

	var sections []string
	collectSections(doc, []byte(source), tree.Items, nil, &sections)

	var pieces []string
	for _, section := range sections {
		if len(section) <= s.cfg.ChunkSize {
			if len(section) >= s.cfg.MinChunkSize {
				pieces = append(pieces, section)
			}
			continue
		}
		pieces = append(pieces, s.accumulate(splitSentences(section), " ")...)
	}
	return pieces
}

// collectSections walks TOC items in reading order, emitting each section's
// content with its header path prepended.
func collectSections(doc ast.Node, source []byte, items toc.Items, ancestors []string, sections *[]string) {
	for i, item := range items {
		path := append(ancestors, string(item.Title))
		headerPath := formatHeaderPath(path)

		headerNode := findHeaderByID(doc, string(item.ID))
		if headerNode == nil {
			continue
		}

		start := headerNode.Lines().At(0)
		var end text.Segment
		if i+1 < len(items) {
			if next := findHeaderByID(doc, string(items[i+1].ID)); next != nil {
				end = next.Lines().At(0)
			}
		} else {
			end = nextBoundary(doc, headerNode, headerNode.(*ast.Heading).Level)
		}

		content := sliceSection(source, start, end)
		if content != "" {
			*sections = append(*sections, headerPath+"\n\n"+content)
		}

		if len(item.Items) > 0 {
			collectSections(doc, source, item.Items, path, sections)
		}
	}
}

// formatHeaderPath renders ["Specs", "Concrete"] as "# Specs > ## Concrete".
func formatHeaderPath(path []string) string {
	parts := make([]string, len(path))
	for i, segment := range path {
		parts[i] = strings.Repeat("#", i+1) + " " + segment
	}
	return strings.Join(parts, " > ")
}

func findHeaderByID(node ast.Node, id string) ast.Node {
	var found ast.Node
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering && n.Kind() == ast.KindHeading {
			headingID, ok := n.AttributeString("id")
			if ok && string(headingID.([]byte)) == id {
				found = n
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return found
}

// nextBoundary finds the next heading at the same or higher level after
// current, or a zero segment when the section runs to EOF.
func nextBoundary(root ast.Node, current ast.Node, level int) text.Segment {
	var next ast.Node
	passed := false
	ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}
		if !passed {
			if n == current {
				passed = true
			}
			return ast.WalkContinue, nil
		}
		if n.(*ast.Heading).Level <= level {
			next = n
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	if next != nil {
		return next.Lines().At(0)
	}
	return text.Segment{}
}

func sliceSection(source []byte, start, end text.Segment) string {
	if end.Start == 0 && end.Stop == 0 {
		return strings.TrimSpace(string(source[start.Start:]))
	}
	return strings.TrimSpace(string(source[start.Start:end.Start]))
}
