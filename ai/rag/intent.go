package rag

import "strings"

// Intent classifies what the user wants from a chat turn.
type Intent string

const (
	// IntentSearch means the user wants documents found by keyword.
	IntentSearch Intent = "search"
	// IntentSummary means the user wants a specific document summarized.
	IntentSummary Intent = "summary"
	// IntentFAQ means the user asks a FAQ-type question.
	IntentFAQ Intent = "faq"
	// IntentUnclear means the question is too vague to search.
	IntentUnclear Intent = "unclear"
)

// ParseIntent maps a model-emitted intent string to an Intent,
// defaulting to IntentUnclear for anything unrecognized.
func ParseIntent(s string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(s))) {
	case IntentSearch:
		return IntentSearch
	case IntentSummary:
		return IntentSummary
	case IntentFAQ:
		return IntentFAQ
	default:
		return IntentUnclear
	}
}

// IntentResult is the outcome of intent detection.
type IntentResult struct {
	Intent Intent
	// Query is the Lucene query for search/faq intents.
	Query string
	// DocumentURL is the URL to summarize for the summary intent.
	DocumentURL string
	// Reasoning is the model's explanation, kept for logs.
	Reasoning string
}

// SearchIntent creates a search result.
func SearchIntent(query, reasoning string) IntentResult {
	return IntentResult{Intent: IntentSearch, Query: query, Reasoning: reasoning}
}

// FAQIntent creates a faq result.
func FAQIntent(query, reasoning string) IntentResult {
	return IntentResult{Intent: IntentFAQ, Query: query, Reasoning: reasoning}
}

// SummaryIntent creates a summary result.
func SummaryIntent(documentURL, reasoning string) IntentResult {
	return IntentResult{Intent: IntentSummary, DocumentURL: documentURL, Reasoning: reasoning}
}

// UnclearIntent creates an unclear result.
func UnclearIntent(reasoning string) IntentResult {
	return IntentResult{Intent: IntentUnclear, Reasoning: reasoning}
}

// FallbackSearch is the degraded result when intent detection fails:
// search with the user's message verbatim.
func FallbackSearch(userMessage string) IntentResult {
	return IntentResult{Intent: IntentSearch, Query: userMessage, Reasoning: "fallback: intent detection failed"}
}
