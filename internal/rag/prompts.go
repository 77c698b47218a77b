package rag

import (
	"fmt"
	"strings"

	"github.com/goldarch/knowledge-engine/internal/conversation"
	"github.com/goldarch/knowledge-engine/internal/vectorstore"
)

// Template is a prompt pair with {context} and {question} placeholders.
type Template struct {
	System string
	User   string
}

var qaTemplate = Template{
	System: `You are a helpful assistant for a construction supplier CRM.
You have access to a knowledge base of project details, supplier information,
quotes and activities. Use the provided context to answer questions accurately
and cite your sources.

If the context does not contain enough information to answer the question,
say so and describe what additional information would be needed.`,
	User: `Context from knowledge base:
{context}

User question: {question}

Answer based on the context above. When you use specific information, mention
which document it came from.`,
}

var conversationTemplate = Template{
	System: qaTemplate.System + `

You are in an ongoing conversation. Use the previous turns to resolve
references like "it" or "that project", but ground every factual claim in the
provided context.`,
	User: qaTemplate.User,
}

func fillTemplate(tpl string, contextStr, question string) string {
	out := strings.ReplaceAll(tpl, "{context}", contextStr)
	return strings.ReplaceAll(out, "{question}", question)
}

func historyString(messages []conversation.Message) string {
	lines := make([]string, len(messages))
	for i, msg := range messages {
		lines[i] = strings.ToUpper(string(msg.Role)) + ": " + msg.Content
	}
	return strings.Join(lines, "\n\n")
}

// includedPassage is a search result that made it into the context
// window, with the content that was actually shown to the model.
type includedPassage struct {
	result  vectorstore.SearchResult
	content string
}

const passageSeparator = "\n---\n\n"

// minTruncatedContent is the smallest slice of a passage worth showing;
// anything shorter is dropped instead of truncated.
const minTruncatedContent = 50

// assembleContext concatenates passages in descending score order up to
// a character budget. When the next passage would overflow the budget,
// its content is truncated to fit rather than dropping it entirely. A
// non-positive budget means unlimited.
func assembleContext(results []vectorstore.SearchResult, budget int) ([]includedPassage, string) {
	var (
		included []includedPassage
		blocks   []string
		used     int
	)

	for i, result := range results {
		header := fmt.Sprintf("[Source %d: %s]\n", len(included)+1, sourceName(result))
		overhead := len(header) + 1
		if len(blocks) > 0 {
			overhead += len(passageSeparator)
		}

		content := result.Content
		if budget > 0 {
			remaining := budget - used - overhead
			if remaining < len(content) {
				if remaining < minTruncatedContent {
					break
				}
				content = strings.TrimSpace(content[:remaining])
			}
		}

		block := header + content + "\n"
		used += len(block)
		if len(blocks) > 0 {
			used += len(passageSeparator)
		}
		blocks = append(blocks, block)
		included = append(included, includedPassage{result: results[i], content: content})
	}

	return included, strings.Join(blocks, passageSeparator)
}

// sourceName picks a human-readable label for a passage.
func sourceName(result vectorstore.SearchResult) string {
	for _, key := range []string{"fileName", "documentName", "title"} {
		if v, ok := result.Metadata[key].(string); ok && v != "" {
			return v
		}
	}
	if result.DocumentID != "" {
		return "Document " + result.DocumentID
	}
	return "Unknown Source"
}
