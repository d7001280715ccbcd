package chat

// Phase identifies a stage of the chat pipeline.
type Phase string

const (
	PhaseIntent   Phase = "intent"
	PhaseSearch   Phase = "search"
	PhaseEvaluate Phase = "evaluate"
	PhaseFetch    Phase = "fetch"
	PhaseAnswer   Phase = "answer"
)

// User-facing phase labels.
const (
	labelAnalyzing       = "Analyzing your question..."
	labelSearching       = "Searching documents..."
	labelSearchingForDoc = "Searching for document..."
	labelEvaluating      = "Evaluating relevance..."
	labelRetrieving      = "Retrieving document content..."
	labelGenerating      = "Generating response..."
	labelSummarizing     = "Generating summary..."
)

// Callback receives pipeline progress and streamed output. Methods are
// invoked from the calling goroutine, in order: each phase start is
// followed by its completion, chunks arrive between the answer phase's
// start and completion, and exactly one chunk carries done=true.
// OnError fires at most once, before the pipeline returns the error.
type Callback interface {
	// OnPhaseStart signals a phase beginning. detail carries
	// phase-specific context, such as the query being searched.
	OnPhaseStart(phase Phase, label, detail string)
	// OnPhaseComplete signals the most recently started phase finished.
	OnPhaseComplete(phase Phase)
	// OnChunk delivers a piece of the streamed response. done is true
	// exactly once, on the final call.
	OnChunk(chunk string, done bool)
	// OnError reports a pipeline failure.
	OnError(phase Phase, message string)
}

// NopCallback discards all events. Embed it to implement only the
// events a caller cares about.
type NopCallback struct{}

func (NopCallback) OnPhaseStart(Phase, string, string) {}
func (NopCallback) OnPhaseComplete(Phase)              {}
func (NopCallback) OnChunk(string, bool)               {}
func (NopCallback) OnError(Phase, string)              {}

var _ Callback = NopCallback{}
