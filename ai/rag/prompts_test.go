package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpand(t *testing.T) {
	t.Parallel()

	out := expand("ask {{who}} about {{what}}, {{who}}?", map[string]string{
		"who":  "me",
		"what": "it",
	})
	assert.Equal(t, "ask me about it, me?", out)
}

func TestDefaultPrompts(t *testing.T) {
	t.Parallel()

	var p Prompts

	t.Run("intent detection substitutes message", func(t *testing.T) {
		t.Parallel()
		out := p.intentDetection("where is the manual", "")
		assert.Contains(t, out, "Question: where is the manual")
		assert.True(t, strings.HasSuffix(out, "Response (JSON only):"))
		assert.NotContains(t, out, "{{userMessage}}")
	})

	t.Run("evaluation substitutes all fields", func(t *testing.T) {
		t.Parallel()
		out := p.evaluation("5", "msg", "query", "[1] Title: T\n\n")
		assert.Contains(t, out, "max 5")
		assert.Contains(t, out, "Question: msg")
		assert.Contains(t, out, "Query: query")
		assert.Contains(t, out, "[1] Title: T")
	})

	t.Run("answer generation appends context", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, "sys\n\nctx", p.answerGeneration("sys", "ctx"))
		assert.Equal(t, "sys", p.answerGeneration("sys", ""))
	})

	t.Run("summary carries document content", func(t *testing.T) {
		t.Parallel()
		out := p.summary("sys", "=== Document ===\nbody")
		assert.Contains(t, out, "Document content:\n=== Document ===")
		assert.Contains(t, out, "Base your summary ONLY on")
	})

	t.Run("document not found names the url", func(t *testing.T) {
		t.Parallel()
		out := p.documentNotFound("http://x/gone")
		assert.Contains(t, out, "URL searched: http://x/gone")
	})

	t.Run("faq cites sources", func(t *testing.T) {
		t.Parallel()
		out := p.faqAnswer("sys", "ctx")
		assert.Contains(t, out, "[1], [2]")
		assert.Contains(t, out, "ctx")
	})
}

func TestCustomPromptOverrides(t *testing.T) {
	t.Parallel()

	p := Prompts{
		IntentDetection: "classify: {{userMessage}}",
		Summary:         "{{systemPrompt}} | {{documentContent}}",
	}
	assert.Equal(t, "classify: hello", p.intentDetection("hello", ""))
	assert.Equal(t, "sys | docs", p.summary("sys", "docs"))
	// Unset fields still fall back to defaults.
	assert.Contains(t, p.noResults(), "no documents matching")
}
