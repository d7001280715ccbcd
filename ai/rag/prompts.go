package rag

import "strings"

// Prompts holds the injectable prompt templates. Empty fields fall back
// to built-in defaults. Templates are plain strings with {{name}}
// placeholders resolved by text substitution; no template engine.
//
// Placeholders by template:
//   - IntentDetection: {{userMessage}}, {{languageInstruction}}
//   - Evaluation: {{maxRelevantDocs}}, {{userMessage}}, {{query}}, {{searchResults}}
//   - AnswerGeneration, FaqAnswer: {{systemPrompt}}, {{context}}
//   - Summary: {{systemPrompt}}, {{documentContent}}
//   - DocumentNotFound: {{documentUrl}}
//   - DirectAnswer: {{systemPrompt}}
//   - All system prompts: {{languageInstruction}}
type Prompts struct {
	IntentDetection  string
	Evaluation       string
	AnswerGeneration string
	Summary          string
	FaqAnswer        string
	UnclearIntent    string
	NoResults        string
	DocumentNotFound string
	DirectAnswer     string
}

const defaultIntentDetectionPrompt = `Analyze the following user question and determine the intent.
Return a JSON object with:
- "intent": one of:
  - "search": user wants to search for documents
  - "summary": user wants a summary of a specific document (extract URL from question)
  - "faq": user is asking a FAQ-type question
  - "unclear": cannot determine what documents to search (question is too vague)
- "query": Lucene query string for search (required for search/faq intents)
- "url": the document URL to summarize (required for summary intent)
- "reasoning": brief explanation of your decision

LUCENE QUERY GUIDELINES:
- Proper nouns/product names: use quotation marks (e.g., "Fess")
- Title boosting: for important terms, use title:"term"^2
- Required terms: use + prefix (e.g., +Fess +Docker)
- Optional/synonym terms: use OR grouping (e.g., (tutorial OR guide OR howto))
- Multi-word phrases: use quotation marks

IMPORTANT RULES:
1. ALWAYS generate a Lucene query for search/faq intents. Use "unclear" only if truly ambiguous.
2. Do NOT answer from your own knowledge. All responses must be based on document search.
3. If user mentions a specific URL or document path, use "summary" intent.

EXAMPLES:
Input: "Fess"
Output: {"intent":"search","query":"title:\"Fess\"^2 OR \"Fess\"","reasoning":"Product name search"}

Input: "How to use Fess with Docker"
Output: {"intent":"search","query":"+\"Fess\" +Docker (usage OR howto OR tutorial)","reasoning":"Tutorial query"}

{{languageInstruction}}
Question: {{userMessage}}

Response (JSON only):`

const defaultEvaluationPrompt = `Given the user question and search results, identify the most relevant documents.
Return a JSON object with:
- "relevant_indexes": array of 1-based indexes of relevant documents (max {{maxRelevantDocs}})
- "has_relevant": boolean indicating if any results are relevant

Question: {{userMessage}}
Query: {{query}}

Search Results:
{{searchResults}}
Response (JSON only):`

const defaultUnclearIntentPrompt = `You are a helpful assistant for a document search system. The user's question is too vague to determine what documents to search for. Generate a polite message asking for clarification. Ask them:
- What specific topic or document are they looking for?
- Can they provide more details or keywords?
- What kind of information would be helpful?

IMPORTANT: Do NOT provide any answers from your own knowledge. Only ask for clarification to help with document search.`

const defaultNoResultsPrompt = `You are a helpful assistant for a document search system. The search for relevant documents returned no results matching the user's query. Generate a polite message informing the user that no documents matching their query were found. Suggest ways they could refine their search, such as:
- Using different keywords
- Being more specific or more general
- Checking for spelling errors
- Trying related terms

IMPORTANT: Do NOT provide any answers from your own knowledge. Only inform them about the search results and offer suggestions for refining their search.`

const defaultDocumentNotFoundPrompt = `You are a helpful assistant for a document search system. The user requested a summary of a document, but the specified URL was not found in the system. URL searched: {{documentUrl}}

Generate a polite message informing the user that:
- The specified document could not be found
- The URL might be incorrect or the document may not be indexed
- They can try searching with keywords instead

IMPORTANT: Do NOT provide any information from your own knowledge. Only inform them about the search result.`

const defaultSummaryInstruction = `You are summarizing specific documents for the user. Base your summary ONLY on the provided document content. Do NOT add information from your own knowledge.`

const defaultFaqInstruction = `The user is asking a frequently asked question. Provide a direct, concise answer based solely on the following documents. If the answer is clearly stated in the documents, provide it without unnecessary elaboration. Always cite your sources using [1], [2], etc.`

// expand resolves {{name}} placeholders by plain substitution.
func expand(template string, vars map[string]string) string {
	out := template
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{{"+k+"}}", v)
	}
	return out
}

func (p Prompts) intentDetection(userMessage, languageInstruction string) string {
	tmpl := p.IntentDetection
	if tmpl == "" {
		tmpl = defaultIntentDetectionPrompt
	}
	return expand(tmpl, map[string]string{
		"userMessage":         userMessage,
		"languageInstruction": languageInstruction,
	})
}

func (p Prompts) evaluation(maxRelevantDocs, userMessage, query, searchResults string) string {
	tmpl := p.Evaluation
	if tmpl == "" {
		tmpl = defaultEvaluationPrompt
	}
	return expand(tmpl, map[string]string{
		"maxRelevantDocs": maxRelevantDocs,
		"userMessage":     userMessage,
		"query":           query,
		"searchResults":   searchResults,
	})
}

func (p Prompts) answerGeneration(systemPrompt, context string) string {
	if p.AnswerGeneration != "" {
		return expand(p.AnswerGeneration, map[string]string{
			"systemPrompt": systemPrompt,
			"context":      context,
		})
	}
	if context != "" {
		return systemPrompt + "\n\n" + context
	}
	return systemPrompt
}

func (p Prompts) summary(systemPrompt, documentContent string) string {
	if p.Summary != "" {
		return expand(p.Summary, map[string]string{
			"systemPrompt":    systemPrompt,
			"documentContent": documentContent,
		})
	}
	return systemPrompt + "\n\n" + defaultSummaryInstruction + "\n\nDocument content:\n" + documentContent
}

func (p Prompts) faqAnswer(systemPrompt, context string) string {
	if p.FaqAnswer != "" {
		return expand(p.FaqAnswer, map[string]string{
			"systemPrompt": systemPrompt,
			"context":      context,
		})
	}
	return systemPrompt + "\n\n" + defaultFaqInstruction + "\n\n" + context
}

func (p Prompts) unclearIntent() string {
	if p.UnclearIntent != "" {
		return p.UnclearIntent
	}
	return defaultUnclearIntentPrompt
}

func (p Prompts) noResults() string {
	if p.NoResults != "" {
		return p.NoResults
	}
	return defaultNoResultsPrompt
}

func (p Prompts) documentNotFound(documentURL string) string {
	tmpl := p.DocumentNotFound
	if tmpl == "" {
		tmpl = defaultDocumentNotFoundPrompt
	}
	return expand(tmpl, map[string]string{"documentUrl": documentURL})
}

func (p Prompts) directAnswer(systemPrompt string) string {
	if p.DirectAnswer != "" {
		return expand(p.DirectAnswer, map[string]string{"systemPrompt": systemPrompt})
	}
	return systemPrompt
}
