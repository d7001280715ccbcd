package rag

// EvaluationResult is the outcome of relevance evaluation over a set
// of search hits.
type EvaluationResult struct {
	HasRelevant bool
	// RelevantDocIDs holds the doc ids of the hits judged relevant, in
	// the order the evaluator listed them.
	RelevantDocIDs []string
	// RelevantIndexes holds the evaluator's 1-based indexes after
	// filtering to the valid range.
	RelevantIndexes []int
}

// NoRelevantResults is the outcome when nothing passed evaluation.
func NoRelevantResults() EvaluationResult {
	return EvaluationResult{}
}

// WithRelevantDocs creates a positive evaluation outcome.
func WithRelevantDocs(docIDs []string, indexes []int) EvaluationResult {
	return EvaluationResult{HasRelevant: true, RelevantDocIDs: docIDs, RelevantIndexes: indexes}
}

// FallbackAllRelevant is the degraded outcome when evaluation fails:
// every hit is treated as relevant.
func FallbackAllRelevant(docIDs []string) EvaluationResult {
	indexes := make([]int, len(docIDs))
	for i := range docIDs {
		indexes[i] = i + 1
	}
	return EvaluationResult{HasRelevant: len(docIDs) > 0, RelevantDocIDs: docIDs, RelevantIndexes: indexes}
}
