package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gatherNames(t *testing.T, m *Metrics) map[string]bool {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	return names
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	m.IncChat("search", "ok")
	m.IncChat("search", "error")
	m.ObservePhase("answer", 120*time.Millisecond)
	m.RecordLLMRequest("openai", "gpt-4o", 800*time.Millisecond, true)
	m.RecordLLMTokens("gpt-4o", "prompt", 100)
	m.RecordLLMTokens("gpt-4o", "completion", 0)
	m.SetLiveSessions(3)

	names := gatherNames(t, m)
	assert.True(t, names["ragchat_chat_requests_total"])
	assert.True(t, names["ragchat_chat_phase_latency_seconds"])
	assert.True(t, names["ragchat_llm_requests_total"])
	assert.True(t, names["ragchat_llm_latency_seconds"])
	assert.True(t, names["ragchat_llm_tokens_total"])
	assert.True(t, names["ragchat_chat_sessions_live"])
}

func TestMetricsHandler(t *testing.T) {
	t.Parallel()

	m := New(DefaultConfig())
	m.IncChat("faq", "ok")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	m.Handler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "ragchat_chat_requests_total")
}
