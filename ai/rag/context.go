package rag

import (
	"fmt"
	"strings"

	"github.com/cognisearch/ragchat/ai/search"
)

const contextHeader = "The following are documents that contain information to answer the question:\n\n"

// buildContext formats fetched documents into the prompt context block,
// bounded by maxChars. Full content is preferred over the index
// description. When the budget runs out the current document is
// truncated to the remaining space and formatting stops.
func buildContext(docs []search.Document, maxChars int) string {
	var sb strings.Builder
	sb.WriteString(contextHeader)

	// The header counts against the budget.
	total := len(contextHeader)
	for i, doc := range docs {
		title := doc.String("title")
		url := doc.String("url")
		content := doc.String("content")
		if content == "" {
			content = doc.String("content_description")
		}

		entry := fmt.Sprintf("[%d] %s\nURL: %s\n%s\n\n", i+1, title, url, content)
		if total+len(entry) > maxChars {
			remaining := maxChars - total - 100
			if remaining > 0 && len(entry) > remaining {
				sb.WriteString(entry[:remaining])
				sb.WriteString("...\n\n")
			}
			break
		}
		sb.WriteString(entry)
		total += len(entry)
	}
	return sb.String()
}

// formatSearchResults renders hit summaries for the relevance
// evaluation prompt, 1-based to match the evaluator's index contract.
func formatSearchResults(docs []search.Document) string {
	var sb strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&sb, "[%d] Title: %s\nDescription: %s\n\n",
			i+1, doc.String("title"), doc.String("content_description"))
	}
	return sb.String()
}

// formatDocumentContent renders full documents for the summary prompt.
func formatDocumentContent(docs []search.Document) string {
	var sb strings.Builder
	for _, doc := range docs {
		fmt.Fprintf(&sb, "=== Document ===\nTitle: %s\nURL: %s\n\n%s\n\n",
			doc.String("title"), doc.String("url"), doc.String("content"))
	}
	return sb.String()
}
