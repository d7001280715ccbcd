package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognisearch/ragchat/ai/llm"
)

func newTestClient(t *testing.T, baseURL, model string) *Client {
	t.Helper()
	c, err := New(llm.NewConfig(
		llm.WithBaseURL(baseURL),
		llm.WithModel(model),
		llm.WithMaxRetries(0),
	))
	require.NoError(t, err)
	return c.(*Client)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires base url", func(t *testing.T) {
		t.Parallel()
		_, err := New(llm.Config{})
		assert.ErrorIs(t, err, llm.ErrNoBaseURL)
	})

	t.Run("no api key needed", func(t *testing.T) {
		t.Parallel()
		_, err := New(llm.NewConfig(llm.WithBaseURL("http://localhost:11434")))
		assert.NoError(t, err)
	})
}

func TestBuildRequestBody(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, "http://localhost:11434", "llama3.1")
	raw, err := c.buildRequestBody(&llm.ChatRequest{
		Messages:    []llm.Message{llm.SystemMessage("sys"), llm.UserMessage("hi")},
		Temperature: llm.Float64(0.3),
		MaxTokens:   llm.Int(500),
	}, true)
	require.NoError(t, err)

	var body chatRequest
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "llama3.1", body.Model)
	assert.True(t, body.Stream)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
	require.NotNil(t, body.Options)
	assert.InDelta(t, 0.3, *body.Options.Temperature, 1e-9)
	assert.Equal(t, 500, *body.Options.NumPredict)
}

func TestChat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"model":             "llama3.1",
			"message":           map[string]string{"role": "assistant", "content": "hi there"},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 9,
			"eval_count":        3,
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "llama3.1")
	resp, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{llm.UserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 9, resp.Usage.PromptTokens)
	assert.Equal(t, 3, resp.Usage.CompletionTokens)
	assert.Equal(t, 12, resp.Usage.TotalTokens)
}

func TestStreamChat(t *testing.T) {
	t.Parallel()

	t.Run("ndjson chunks", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(
				`{"message":{"role":"assistant","content":"Hel"},"done":false}` + "\n" +
					`{"message":{"role":"assistant","content":"lo"},"done":false}` + "\n" +
					`{"message":{"role":"assistant","content":""},"done":true,"done_reason":"stop"}` + "\n"))
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL, "llama3.1")
		var chunks []string
		var doneCount int
		err := c.StreamChat(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{llm.UserMessage("hi")},
		}, func(chunk string, done bool) {
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
			if done {
				doneCount++
			}
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"Hel", "lo"}, chunks)
		assert.Equal(t, 1, doneCount)
	})

	t.Run("final chunk may carry content", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(
				`{"message":{"role":"assistant","content":"all"},"done":true}` + "\n"))
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL, "llama3.1")
		var last string
		var lastDone bool
		err := c.StreamChat(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{llm.UserMessage("hi")},
		}, func(chunk string, done bool) {
			last, lastDone = chunk, done
		})
		require.NoError(t, err)
		assert.Equal(t, "all", last)
		assert.True(t, lastDone)
	})
}

func TestCheckAvailability(t *testing.T) {
	t.Parallel()

	tagsHandler := func(models ...string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			list := make([]map[string]string, 0, len(models))
			for _, m := range models {
				list = append(list, map[string]string{"name": m})
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"models": list})
		}
	}

	t.Run("model present", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(tagsHandler("llama3.1", "qwen2.5"))
		defer srv.Close()
		c := newTestClient(t, srv.URL, "llama3.1")
		assert.True(t, c.CheckAvailability(context.Background()))
	})

	t.Run("model missing", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(tagsHandler("qwen2.5"))
		defer srv.Close()
		c := newTestClient(t, srv.URL, "llama3.1")
		assert.False(t, c.CheckAvailability(context.Background()))
	})

	t.Run("blank model accepts any server", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(tagsHandler())
		defer srv.Close()
		c := newTestClient(t, srv.URL, "")
		assert.True(t, c.CheckAvailability(context.Background()))
	})

	t.Run("unparseable tags response counts as available", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer srv.Close()
		c := newTestClient(t, srv.URL, "llama3.1")
		assert.True(t, c.CheckAvailability(context.Background()))
	})

	t.Run("server down", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, "http://127.0.0.1:1", "llama3.1")
		assert.False(t, c.CheckAvailability(context.Background()))
	})
}
