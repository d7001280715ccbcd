// Package rag layers retrieval-augmented generation primitives over a
// raw LLM service: intent detection, relevance evaluation, context
// assembly and the answer generators the chat pipeline composes.
package rag

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/cognisearch/ragchat/ai/llm"
	"github.com/cognisearch/ragchat/ai/search"
)

const (
	// classifierMaxTokens bounds intent detection and relevance
	// evaluation responses, which are small JSON objects.
	classifierMaxTokens = 500
	// classifierTemperature keeps classifier output deterministic-ish.
	classifierTemperature = 0.3
)

// Config tunes the engine.
type Config struct {
	// SystemPrompt is the base system prompt for answer generation.
	SystemPrompt string
	// Language is a BCP 47 tag for the response language. Empty or
	// English adds no instruction.
	Language string
	// MaxContextChars bounds the document context block.
	MaxContextChars int
	// MaxRelevantDocs bounds how many hits evaluation may keep.
	MaxRelevantDocs int
	// Prompts overrides the default prompt templates per field.
	Prompts Prompts
}

// DefaultConfig returns engine defaults.
func DefaultConfig() Config {
	return Config{
		SystemPrompt:    "You are a helpful assistant that answers questions based on the provided documents. Always cite your sources using [1], [2], etc.",
		MaxContextChars: 8000,
		MaxRelevantDocs: 5,
	}
}

// Engine implements the RAG primitives on top of an LLM service.
type Engine struct {
	svc      llm.Service
	cfg      Config
	langInst string
}

// NewEngine creates an engine over the given LLM service.
func NewEngine(svc llm.Service, cfg Config) *Engine {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultConfig().SystemPrompt
	}
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = DefaultConfig().MaxContextChars
	}
	if cfg.MaxRelevantDocs <= 0 {
		cfg.MaxRelevantDocs = DefaultConfig().MaxRelevantDocs
	}
	return &Engine{svc: svc, cfg: cfg, langInst: languageInstruction(cfg.Language)}
}

// Available reports whether the underlying LLM service can serve.
func (e *Engine) Available(ctx context.Context) bool {
	return e.svc.Available(ctx)
}

// systemPrompt returns the base system prompt with the language
// instruction appended.
func (e *Engine) systemPrompt() string {
	if e.langInst == "" {
		return e.cfg.SystemPrompt
	}
	return e.cfg.SystemPrompt + "\n\n" + e.langInst
}

func (e *Engine) classify(ctx context.Context, prompt string) (string, error) {
	req := llm.ChatRequest{
		Temperature: llm.Float64(classifierTemperature),
		MaxTokens:   llm.Int(classifierMaxTokens),
	}
	req.AddUserMessage(prompt)
	resp, err := e.svc.Chat(ctx, &req)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// DetectIntent classifies the user message. Any failure, whether the
// LLM call or response parsing, degrades to a search with the message
// verbatim so the pipeline never dead-ends on the classifier.
func (e *Engine) DetectIntent(ctx context.Context, userMessage string) IntentResult {
	content, err := e.classify(ctx, e.cfg.Prompts.intentDetection(userMessage, e.langInst))
	if err != nil {
		slog.Warn("rag: intent detection failed, falling back to search", "error", err)
		return FallbackSearch(userMessage)
	}
	result, ok := parseIntentResponse(content)
	if !ok {
		slog.Warn("rag: intent response unusable, falling back to search")
		return FallbackSearch(userMessage)
	}
	slog.Debug("rag: intent detected", "intent", result.Intent,
		"query", result.Query, "reasoning", result.Reasoning)
	return result
}

// parseIntentResponse extracts the classification. ok is false when no
// field at all could be recovered from the response.
func parseIntentResponse(content string) (IntentResult, bool) {
	var intentStr, query, url, reasoning string
	if obj, err := parseJSONObject(content); err == nil {
		intentStr = asString(obj["intent"])
		query = asString(obj["query"])
		url = asString(obj["url"])
		reasoning = asString(obj["reasoning"])
	} else {
		intentStr = extractJSONString(content, "intent")
		query = extractJSONString(content, "query")
		url = extractJSONString(content, "url")
		reasoning = extractJSONString(content, "reasoning")
	}
	if intentStr == "" && query == "" && url == "" && reasoning == "" {
		return IntentResult{}, false
	}
	return IntentResult{
		Intent:      ParseIntent(intentStr),
		Query:       query,
		DocumentURL: url,
		Reasoning:   reasoning,
	}, true
}

// EvaluateResults asks the LLM which hits are relevant to the question.
// An LLM failure degrades to treating every hit as relevant; a
// response that parses to nothing usable yields no relevant results.
func (e *Engine) EvaluateResults(ctx context.Context, userMessage, query string, docs []search.Document) EvaluationResult {
	prompt := e.cfg.Prompts.evaluation(
		strconv.Itoa(e.cfg.MaxRelevantDocs), userMessage, query, formatSearchResults(docs))

	content, err := e.classify(ctx, prompt)
	if err != nil {
		slog.Warn("rag: relevance evaluation failed, keeping all results", "error", err)
		return FallbackAllRelevant(docIDsOf(docs))
	}
	result := parseEvaluationResponse(content, docs, e.cfg.MaxRelevantDocs)
	slog.Debug("rag: relevance evaluated", "hasRelevant", result.HasRelevant,
		"relevantCount", len(result.RelevantDocIDs))
	return result
}

func parseEvaluationResponse(content string, docs []search.Document, maxRelevantDocs int) EvaluationResult {
	var hasRelevant bool
	var indexes []int
	if obj, err := parseJSONObject(content); err == nil {
		hasRelevant = asBool(obj["has_relevant"], false)
		indexes = asIntSlice(obj["relevant_indexes"])
	} else {
		hasRelevant = extractJSONBool(content, "has_relevant", false)
		indexes = extractJSONIntArray(content, "relevant_indexes")
	}
	if !hasRelevant {
		return NoRelevantResults()
	}

	var docIDs []string
	var kept []int
	for _, idx := range indexes {
		if idx < 1 || idx > len(docs) {
			continue
		}
		if len(kept) >= maxRelevantDocs {
			break
		}
		id := docs[idx-1].DocID()
		if id == "" {
			continue
		}
		docIDs = append(docIDs, id)
		kept = append(kept, idx)
	}
	if len(docIDs) == 0 {
		return NoRelevantResults()
	}
	return WithRelevantDocs(docIDs, kept)
}

func docIDsOf(docs []search.Document) []string {
	var ids []string
	for _, doc := range docs {
		if id := doc.DocID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// answerRequest assembles the chat request for an answer generator.
func (e *Engine) answerRequest(systemPrompt string, history []llm.Message, userMessage string) *llm.ChatRequest {
	req := &llm.ChatRequest{}
	req.AddSystemMessage(systemPrompt)
	for _, m := range history {
		req.AddMessage(m)
	}
	req.AddUserMessage(userMessage)
	return req
}

func (e *Engine) stream(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) error {
	return e.svc.StreamChat(ctx, req, fn)
}

// StreamAnswer generates the grounded answer over the fetched
// documents, streaming chunks to fn.
func (e *Engine) StreamAnswer(ctx context.Context, userMessage string, history []llm.Message, docs []search.Document, fn llm.StreamFunc) error {
	docContext := buildContext(docs, e.cfg.MaxContextChars)
	prompt := e.cfg.Prompts.answerGeneration(e.systemPrompt(), docContext)
	return e.stream(ctx, e.answerRequest(prompt, history, userMessage), fn)
}

// StreamFAQAnswer generates a direct, concise answer over the fetched
// documents, streaming chunks to fn.
func (e *Engine) StreamFAQAnswer(ctx context.Context, userMessage string, history []llm.Message, docs []search.Document, fn llm.StreamFunc) error {
	docContext := buildContext(docs, e.cfg.MaxContextChars)
	prompt := e.cfg.Prompts.faqAnswer(e.systemPrompt(), docContext)
	return e.stream(ctx, e.answerRequest(prompt, history, userMessage), fn)
}

// StreamSummary generates a summary of the fetched documents,
// streaming chunks to fn.
func (e *Engine) StreamSummary(ctx context.Context, userMessage string, history []llm.Message, docs []search.Document, fn llm.StreamFunc) error {
	prompt := e.cfg.Prompts.summary(e.systemPrompt(), formatDocumentContent(docs))
	return e.stream(ctx, e.answerRequest(prompt, history, userMessage), fn)
}

// StreamUnclearResponse asks the user for clarification.
func (e *Engine) StreamUnclearResponse(ctx context.Context, userMessage string, history []llm.Message, fn llm.StreamFunc) error {
	prompt := e.cfg.Prompts.unclearIntent()
	if e.langInst != "" {
		prompt += "\n\n" + e.langInst
	}
	return e.stream(ctx, e.answerRequest(prompt, history, userMessage), fn)
}

// StreamNoResultsResponse tells the user the search came up empty.
func (e *Engine) StreamNoResultsResponse(ctx context.Context, userMessage string, history []llm.Message, fn llm.StreamFunc) error {
	prompt := e.cfg.Prompts.noResults()
	if e.langInst != "" {
		prompt += "\n\n" + e.langInst
	}
	return e.stream(ctx, e.answerRequest(prompt, history, userMessage), fn)
}

// StreamDocumentNotFoundResponse tells the user the requested document
// url is not in the index.
func (e *Engine) StreamDocumentNotFoundResponse(ctx context.Context, userMessage, documentURL string, history []llm.Message, fn llm.StreamFunc) error {
	prompt := e.cfg.Prompts.documentNotFound(documentURL)
	if e.langInst != "" {
		prompt += "\n\n" + e.langInst
	}
	return e.stream(ctx, e.answerRequest(prompt, history, userMessage), fn)
}

// GenerateAnswer is the non-streaming variant of StreamAnswer, used by
// the simple chat entry point.
func (e *Engine) GenerateAnswer(ctx context.Context, userMessage string, history []llm.Message, docs []search.Document) (string, error) {
	docContext := buildContext(docs, e.cfg.MaxContextChars)
	prompt := e.cfg.Prompts.answerGeneration(e.systemPrompt(), docContext)
	resp, err := e.svc.Chat(ctx, e.answerRequest(prompt, history, userMessage))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GenerateDirectAnswer answers from the model alone, with no document
// context.
func (e *Engine) GenerateDirectAnswer(ctx context.Context, userMessage string, history []llm.Message) (string, error) {
	prompt := e.cfg.Prompts.directAnswer(e.systemPrompt())
	resp, err := e.svc.Chat(ctx, e.answerRequest(prompt, history, userMessage))
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
