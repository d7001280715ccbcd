package openai

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

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(llm.NewConfig(
		llm.WithAPIKey("test-key"),
		llm.WithBaseURL(baseURL),
		llm.WithModel("gpt-4o"),
		llm.WithMaxRetries(0),
	))
	require.NoError(t, err)
	return c.(*Client)
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("requires api key", func(t *testing.T) {
		t.Parallel()
		_, err := New(llm.NewConfig(llm.WithBaseURL("http://localhost")))
		assert.ErrorIs(t, err, llm.ErrNoAPIKey)
	})

	t.Run("requires base url", func(t *testing.T) {
		t.Parallel()
		_, err := New(llm.NewConfig(llm.WithAPIKey("key")))
		assert.ErrorIs(t, err, llm.ErrNoBaseURL)
	})
}

func TestBuildRequestBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                    string
		req                     llm.ChatRequest
		wantModel               string
		wantTemperature         float64
		wantMaxTokens           *int
		wantMaxCompletionTokens *int
	}{
		{
			name:            "defaults from config",
			req:             llm.ChatRequest{Messages: []llm.Message{llm.UserMessage("hi")}},
			wantModel:       "gpt-4o",
			wantTemperature: 0.7,
			wantMaxTokens:   llm.Int(2000),
		},
		{
			name: "request overrides",
			req: llm.ChatRequest{
				Messages:    []llm.Message{llm.UserMessage("hi")},
				Model:       "gpt-4-turbo",
				Temperature: llm.Float64(0.3),
				MaxTokens:   llm.Int(500),
			},
			wantModel:       "gpt-4-turbo",
			wantTemperature: 0.3,
			wantMaxTokens:   llm.Int(500),
		},
		{
			name: "reasoning model uses max_completion_tokens",
			req: llm.ChatRequest{
				Messages:  []llm.Message{llm.UserMessage("hi")},
				Model:     "o3-mini",
				MaxTokens: llm.Int(500),
			},
			wantModel:               "o3-mini",
			wantTemperature:         0.7,
			wantMaxCompletionTokens: llm.Int(500),
		},
		{
			name: "gpt-5 uses max_completion_tokens",
			req: llm.ChatRequest{
				Messages: []llm.Message{llm.UserMessage("hi")},
				Model:    "gpt-5-mini",
			},
			wantModel:               "gpt-5-mini",
			wantTemperature:         0.7,
			wantMaxCompletionTokens: llm.Int(2000),
		},
	}

	c := newTestClient(t, "http://localhost")
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			raw, err := c.buildRequestBody(&tc.req, false)
			require.NoError(t, err)

			var body chatCompletionRequest
			require.NoError(t, json.Unmarshal(raw, &body))
			assert.Equal(t, tc.wantModel, body.Model)
			require.NotNil(t, body.Temperature)
			assert.InDelta(t, tc.wantTemperature, *body.Temperature, 1e-9)
			assert.Equal(t, tc.wantMaxTokens, body.MaxTokens)
			assert.Equal(t, tc.wantMaxCompletionTokens, body.MaxCompletionTokens)
			assert.False(t, body.Stream)
		})
	}
}

func TestUseMaxCompletionTokens(t *testing.T) {
	t.Parallel()

	assert.True(t, useMaxCompletionTokens("o1-preview"))
	assert.True(t, useMaxCompletionTokens("o3"))
	assert.True(t, useMaxCompletionTokens("o4-mini"))
	assert.True(t, useMaxCompletionTokens("gpt-5"))
	assert.False(t, useMaxCompletionTokens("gpt-4o"))
	assert.False(t, useMaxCompletionTokens(""))
}

func TestChat(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"model": "gpt-4o-2024",
			"choices": []map[string]any{
				{
					"message":       map[string]string{"role": "assistant", "content": "hello there"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]int{
				"prompt_tokens":     12,
				"completion_tokens": 4,
				"total_tokens":      16,
			},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	resp, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{llm.UserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, "gpt-4o-2024", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 16, resp.Usage.TotalTokens)
}

func TestChatAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"invalid api key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Chat(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{llm.UserMessage("hi")},
	})
	require.Error(t, err)

	var apiErr *llm.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.False(t, apiErr.Retryable)
}

func TestStreamChat(t *testing.T) {
	t.Parallel()

	t.Run("delivers chunks and done marker", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = w.Write([]byte(
				"data: {\"choices\":[{\"delta\":{\"content\":\"Hello\"},\"finish_reason\":null}]}\n\n" +
					"data: {\"choices\":[{\"delta\":{\"content\":\" world\"},\"finish_reason\":null}]}\n\n" +
					"data: [DONE]\n\n"))
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
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
		assert.Equal(t, []string{"Hello", " world"}, chunks)
		assert.Equal(t, 1, doneCount)
	})

	t.Run("finish_reason terminates stream", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(
				"data: {\"choices\":[{\"delta\":{\"content\":\"done\"},\"finish_reason\":\"stop\"}]}\n\n"))
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		var last string
		var doneCount int
		err := c.StreamChat(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{llm.UserMessage("hi")},
		}, func(chunk string, done bool) {
			last = chunk
			if done {
				doneCount++
			}
		})
		require.NoError(t, err)
		assert.Equal(t, "done", last)
		assert.Equal(t, 1, doneCount)
	})

	t.Run("malformed lines are skipped", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(
				"data: not json\n\n" +
					"data: {\"choices\":[{\"delta\":{\"content\":\"ok\"},\"finish_reason\":null}]}\n\n" +
					"data: [DONE]\n\n"))
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		var chunks []string
		err := c.StreamChat(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{llm.UserMessage("hi")},
		}, func(chunk string, done bool) {
			if chunk != "" {
				chunks = append(chunks, chunk)
			}
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"ok"}, chunks)
	})

	t.Run("stream end without done still signals completion", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(
				"data: {\"choices\":[{\"delta\":{\"content\":\"partial\"},\"finish_reason\":null}]}\n\n"))
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		var doneCount int
		err := c.StreamChat(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{llm.UserMessage("hi")},
		}, func(_ string, done bool) {
			if done {
				doneCount++
			}
		})
		require.NoError(t, err)
		assert.Equal(t, 1, doneCount)
	})
}

func TestCheckAvailability(t *testing.T) {
	t.Parallel()

	t.Run("available", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/models", r.URL.Path)
			assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		assert.True(t, c.CheckAvailability(context.Background()))
	})

	t.Run("unauthorized", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		c := newTestClient(t, srv.URL)
		assert.False(t, c.CheckAvailability(context.Background()))
	})

	t.Run("unreachable", func(t *testing.T) {
		t.Parallel()
		c := newTestClient(t, "http://127.0.0.1:1")
		assert.False(t, c.CheckAvailability(context.Background()))
	})
}
