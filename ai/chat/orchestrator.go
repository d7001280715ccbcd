// Package chat orchestrates the retrieval-augmented chat pipeline:
// intent detection, document search, relevance evaluation, content
// fetch and streamed answer generation, with per-session history.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cognisearch/ragchat/ai/llm"
	"github.com/cognisearch/ragchat/ai/markdown"
	"github.com/cognisearch/ragchat/ai/metrics"
	"github.com/cognisearch/ragchat/ai/rag"
	"github.com/cognisearch/ragchat/ai/search"
)

// PhaseUnknown is reported by OnError when a failure cannot be pinned
// to a specific phase.
const PhaseUnknown Phase = "unknown"

// Config tunes the orchestrator.
type Config struct {
	// MaxSearchDocs bounds how many hits a search returns.
	MaxSearchDocs int
	// ContentFields are the document fields fetched for answer
	// grounding.
	ContentFields []string
}

// DefaultConfig returns orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		MaxSearchDocs: 10,
		ContentFields: []string{"content"},
	}
}

// Result is a completed chat turn.
type Result struct {
	SessionID   string   `json:"sessionId"`
	Content     string   `json:"content"`
	HTMLContent string   `json:"htmlContent"`
	Sources     []Source `json:"sources,omitempty"`
}

// Orchestrator drives the chat pipeline over its collaborators.
type Orchestrator struct {
	engine   *rag.Engine
	searcher search.Searcher
	sessions *Store
	renderer *markdown.Renderer
	metrics  *metrics.Metrics
	cfg      Config
}

// NewOrchestrator creates an orchestrator. metrics may be nil.
func NewOrchestrator(engine *rag.Engine, searcher search.Searcher, sessions *Store, m *metrics.Metrics, cfg Config) *Orchestrator {
	if cfg.MaxSearchDocs <= 0 {
		cfg.MaxSearchDocs = DefaultConfig().MaxSearchDocs
	}
	if len(cfg.ContentFields) == 0 {
		cfg.ContentFields = DefaultConfig().ContentFields
	}
	return &Orchestrator{
		engine:   engine,
		searcher: searcher,
		sessions: sessions,
		renderer: markdown.NewRenderer(),
		metrics:  m,
		cfg:      cfg,
	}
}

// Available reports whether the LLM backend can serve requests.
func (o *Orchestrator) Available(ctx context.Context) bool {
	return o.engine.Available(ctx)
}

// phaseRunner pairs phase starts with completions and times them.
type phaseRunner struct {
	cb Callback
	m  *metrics.Metrics
}

func (p phaseRunner) run(phase Phase, label, detail string, fn func() error) error {
	p.cb.OnPhaseStart(phase, label, detail)
	start := time.Now()
	err := fn()
	if p.m != nil {
		p.m.ObservePhase(string(phase), time.Since(start))
	}
	if err != nil {
		return err
	}
	p.cb.OnPhaseComplete(phase)
	return nil
}

// StreamChatWithPipeline runs the full phased pipeline for one user
// turn, streaming progress and answer chunks to cb. The session is
// only mutated after the turn fully succeeds; on failure cb.OnError
// fires once and the error is returned.
func (o *Orchestrator) StreamChatWithPipeline(ctx context.Context, sessionID, userID, userMessage string, cb Callback) (*Result, error) {
	if cb == nil {
		cb = NopCallback{}
	}
	session := o.sessions.GetOrCreate(sessionID, userID)
	requestID := uuid.NewString()
	log := slog.With("requestId", requestID, "sessionId", session.ID)
	log.Info("chat: pipeline started")

	start := time.Now()
	result, intent, err := o.runPipeline(ctx, session, userMessage, cb, log)
	if err != nil {
		log.Error("chat: pipeline failed", "error", err, "elapsed", time.Since(start))
		if o.metrics != nil {
			o.metrics.IncChat(string(intent), "error")
		}
		cb.OnError(PhaseUnknown, err.Error())
		return nil, err
	}

	log.Info("chat: pipeline completed", "intent", intent,
		"sourceCount", len(result.Sources), "elapsed", time.Since(start))
	if o.metrics != nil {
		o.metrics.IncChat(string(intent), "ok")
	}
	return result, nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, session *Session, userMessage string, cb Callback, log *slog.Logger) (*Result, rag.Intent, error) {
	phases := phaseRunner{cb: cb, m: o.metrics}
	history := session.History()

	var intent rag.IntentResult
	err := phases.run(PhaseIntent, labelAnalyzing, "", func() error {
		intent = o.engine.DetectIntent(ctx, userMessage)
		return nil
	})
	if err != nil {
		return nil, intent.Intent, err
	}
	log.Debug("chat: intent detected", "intent", intent.Intent, "query", intent.Query)

	var answer string
	var sources []Source

	switch intent.Intent {
	case rag.IntentUnclear:
		answer, err = o.streamAnswerPhase(cb, phases, labelGenerating, func(fn llm.StreamFunc) error {
			return o.engine.StreamUnclearResponse(ctx, userMessage, history, fn)
		})

	case rag.IntentSummary:
		answer, sources, err = o.runSummary(ctx, userMessage, intent.DocumentURL, history, cb, phases, log)

	default:
		answer, sources, err = o.runSearch(ctx, userMessage, intent, history, cb, phases, log)
	}
	if err != nil {
		return nil, intent.Intent, err
	}

	result := o.finishTurn(session, userMessage, answer, sources)
	return result, intent.Intent, nil
}

// runSummary handles the summary intent: locate the document by url,
// fetch its content and stream a summary. A url with no match gets a
// not-found response instead of an error.
func (o *Orchestrator) runSummary(ctx context.Context, userMessage, documentURL string, history []llm.Message, cb Callback, phases phaseRunner, log *slog.Logger) (string, []Source, error) {
	var hits []search.Document
	err := phases.run(PhaseSearch, labelSearchingForDoc, documentURL, func() error {
		var serr error
		hits, serr = o.searcher.Search(ctx, fmt.Sprintf("url:%q", documentURL), o.cfg.MaxSearchDocs)
		return serr
	})
	if err != nil {
		return "", nil, err
	}

	if len(hits) == 0 {
		log.Debug("chat: document not found", "url", documentURL)
		answer, err := o.streamAnswerPhase(cb, phases, labelGenerating, func(fn llm.StreamFunc) error {
			return o.engine.StreamDocumentNotFoundResponse(ctx, userMessage, documentURL, history, fn)
		})
		return answer, nil, err
	}

	var docs []search.Document
	err = phases.run(PhaseFetch, labelRetrieving, "", func() error {
		docs = o.fetchFullContent(ctx, docIDs(hits))
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if len(docs) == 0 {
		docs = hits
	}

	answer, err := o.streamAnswerPhase(cb, phases, labelSummarizing, func(fn llm.StreamFunc) error {
		return o.engine.StreamSummary(ctx, userMessage, history, docs, fn)
	})
	if err != nil {
		return "", nil, err
	}
	return answer, makeSources(docs), nil
}

// runSearch handles the search and faq intents: search, evaluate
// relevance, fetch the relevant documents and stream the answer.
func (o *Orchestrator) runSearch(ctx context.Context, userMessage string, intent rag.IntentResult, history []llm.Message, cb Callback, phases phaseRunner, log *slog.Logger) (string, []Source, error) {
	query := strings.TrimSpace(intent.Query)
	if query == "" {
		query = userMessage
	}

	var hits []search.Document
	err := phases.run(PhaseSearch, labelSearching, query, func() error {
		var serr error
		hits, serr = o.searcher.Search(ctx, query, o.cfg.MaxSearchDocs)
		return serr
	})
	if err != nil {
		return "", nil, err
	}

	if len(hits) == 0 {
		log.Debug("chat: no search results", "query", query)
		answer, err := o.streamNoResults(ctx, userMessage, history, cb, phases)
		return answer, nil, err
	}

	var eval rag.EvaluationResult
	err = phases.run(PhaseEvaluate, labelEvaluating, "", func() error {
		eval = o.engine.EvaluateResults(ctx, userMessage, query, hits)
		return nil
	})
	if err != nil {
		return "", nil, err
	}

	if !eval.HasRelevant {
		log.Debug("chat: no relevant results", "query", query, "hitCount", len(hits))
		answer, err := o.streamNoResults(ctx, userMessage, history, cb, phases)
		return answer, nil, err
	}

	var docs []search.Document
	err = phases.run(PhaseFetch, labelRetrieving, "", func() error {
		docs = o.fetchFullContent(ctx, eval.RelevantDocIDs)
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	if len(docs) == 0 {
		docs = selectByIndexes(hits, eval.RelevantIndexes)
	}

	var answer string
	if intent.Intent == rag.IntentFAQ {
		answer, err = o.streamAnswerPhase(cb, phases, labelGenerating, func(fn llm.StreamFunc) error {
			return o.engine.StreamFAQAnswer(ctx, userMessage, history, docs, fn)
		})
	} else {
		answer, err = o.streamAnswerPhase(cb, phases, labelGenerating, func(fn llm.StreamFunc) error {
			return o.engine.StreamAnswer(ctx, userMessage, history, docs, fn)
		})
	}
	if err != nil {
		return "", nil, err
	}
	return answer, makeSources(docs), nil
}

func (o *Orchestrator) streamNoResults(ctx context.Context, userMessage string, history []llm.Message, cb Callback, phases phaseRunner) (string, error) {
	return o.streamAnswerPhase(cb, phases, labelGenerating, func(fn llm.StreamFunc) error {
		return o.engine.StreamNoResultsResponse(ctx, userMessage, history, fn)
	})
}

// streamAnswerPhase wraps an answer generator in the answer phase,
// teeing chunks into the full response while forwarding them to the
// callback.
func (o *Orchestrator) streamAnswerPhase(cb Callback, phases phaseRunner, label string, gen func(llm.StreamFunc) error) (string, error) {
	var sb strings.Builder
	err := phases.run(PhaseAnswer, label, "", func() error {
		return gen(func(chunk string, done bool) {
			sb.WriteString(chunk)
			cb.OnChunk(chunk, done)
		})
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}

// fetchFullContent fetches documents by id with the configured content
// fields. Fetch failures degrade to no documents rather than failing
// the turn.
func (o *Orchestrator) fetchFullContent(ctx context.Context, ids []string) []search.Document {
	if len(ids) == 0 {
		return nil
	}
	docs, err := o.searcher.FetchByIDs(ctx, ids, o.cfg.ContentFields)
	if err != nil {
		slog.Warn("chat: content fetch failed", "docIdCount", len(ids), "error", err)
		return nil
	}
	return docs
}

// finishTurn renders the answer and records the exchange in the
// session. Only called on success.
func (o *Orchestrator) finishTurn(session *Session, userMessage, answer string, sources []Source) *Result {
	htmlContent := o.renderer.Render(answer)

	session.AddMessage(Message{Role: llm.RoleUser, Content: userMessage})
	session.AddMessage(Message{
		Role:        llm.RoleAssistant,
		Content:     answer,
		HTMLContent: htmlContent,
		Sources:     sources,
	})
	session.TrimHistory(o.sessions.MaxMessages())

	return &Result{
		SessionID:   session.ID,
		Content:     answer,
		HTMLContent: htmlContent,
		Sources:     sources,
	}
}

// Chat is the plain entry point: search with the message verbatim and
// answer over the hits, without phases or relevance evaluation.
func (o *Orchestrator) Chat(ctx context.Context, sessionID, userID, userMessage string) (*Result, error) {
	session := o.sessions.GetOrCreate(sessionID, userID)
	history := session.History()

	hits, err := o.searcher.Search(ctx, userMessage, o.cfg.MaxSearchDocs)
	if err != nil {
		return nil, err
	}

	var answer string
	if len(hits) == 0 {
		answer, err = o.engine.GenerateDirectAnswer(ctx, userMessage, history)
	} else {
		answer, err = o.engine.GenerateAnswer(ctx, userMessage, history, hits)
	}
	if err != nil {
		return nil, err
	}

	return o.finishTurn(session, userMessage, answer, makeSources(hits)), nil
}

// StreamChat is the plain streaming entry point: search with the
// message verbatim and stream the answer over the hits.
func (o *Orchestrator) StreamChat(ctx context.Context, sessionID, userID, userMessage string, fn llm.StreamFunc) (*Result, error) {
	session := o.sessions.GetOrCreate(sessionID, userID)
	history := session.History()

	hits, err := o.searcher.Search(ctx, userMessage, o.cfg.MaxSearchDocs)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	tee := func(chunk string, done bool) {
		sb.WriteString(chunk)
		if fn != nil {
			fn(chunk, done)
		}
	}
	if err := o.engine.StreamAnswer(ctx, userMessage, history, hits, tee); err != nil {
		return nil, err
	}

	return o.finishTurn(session, userMessage, sb.String(), makeSources(hits)), nil
}

func docIDs(docs []search.Document) []string {
	var ids []string
	for _, doc := range docs {
		if id := doc.DocID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func selectByIndexes(docs []search.Document, indexes []int) []search.Document {
	var out []search.Document
	for _, idx := range indexes {
		if idx >= 1 && idx <= len(docs) {
			out = append(out, docs[idx-1])
		}
	}
	return out
}

func makeSources(docs []search.Document) []Source {
	sources := make([]Source, 0, len(docs))
	for i, doc := range docs {
		sources = append(sources, Source{Index: i + 1, Document: doc})
	}
	return sources
}
