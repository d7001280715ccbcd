// Package openai implements the OpenAI-compatible chat completions
// backend with SSE streaming.
package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/cognisearch/ragchat/ai/llm"
)

const (
	providerName     = "openai"
	chatEndpoint     = "/chat/completions"
	ssePrefix        = "data: "
	streamDoneMarker = "[DONE]"
)

func init() {
	llm.Register(llm.TypeOpenAI, New)
}

// Client talks to the OpenAI chat completions API.
type Client struct {
	cfg  llm.Config
	http *llm.HTTPClient
}

// New creates an OpenAI backend client.
func New(cfg llm.Config) (llm.Client, error) {
	if cfg.APIKey == "" {
		return nil, llm.ErrNoAPIKey
	}
	if cfg.BaseURL == "" {
		return nil, llm.ErrNoBaseURL
	}
	return &Client{cfg: cfg, http: llm.NewHTTPClient(cfg)}, nil
}

// Name returns the backend type name.
func (c *Client) Name() string { return providerName }

// CheckAvailability probes the models endpoint with the API key.
func (c *Client) CheckAvailability(ctx context.Context) bool {
	status, _, err := c.http.Get(ctx, c.cfg.BaseURL+"/models", c.authHeaders())
	if err != nil {
		slog.Debug("LLM: openai not available", "url", c.cfg.BaseURL, "error", err)
		return false
	}
	available := status >= 200 && status < 300
	slog.Debug("LLM: openai availability check", "url", c.cfg.BaseURL, "status", status, "available", available)
	return available
}

// Chat performs a blocking chat completion.
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body, err := c.buildRequestBody(req, false)
	if err != nil {
		return nil, llm.WrapError(providerName, err)
	}

	respBody, err := c.http.Post(ctx, providerName, c.cfg.BaseURL+chatEndpoint, body, c.authHeaders(), false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = respBody.Close() }()

	var resp chatCompletionResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return nil, llm.WrapError(providerName, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(resp.Choices) == 0 {
		return nil, llm.WrapError(providerName, fmt.Errorf("no choices in response"))
	}

	return &llm.ChatResponse{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: resp.Choices[0].FinishReason,
		Usage: llm.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// StreamChat performs a streaming chat completion over SSE.
func (c *Client) StreamChat(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) error {
	body, err := c.buildRequestBody(req, true)
	if err != nil {
		return llm.WrapError(providerName, err)
	}

	respBody, err := c.http.Post(ctx, providerName, c.cfg.BaseURL+chatEndpoint, body, c.authHeaders(), true)
	if err != nil {
		return err
	}
	defer func() { _ = respBody.Close() }()

	return c.streamResponse(ctx, respBody, fn)
}

func (c *Client) streamResponse(ctx context.Context, body io.Reader, fn llm.StreamFunc) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	chunkCount := 0

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, ssePrefix) {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, ssePrefix))
		if data == streamDoneMarker {
			fn("", true)
			return nil
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			slog.Warn("LLM: failed to parse openai stream line", "line", line, "error", err)
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		done := choice.FinishReason != "" && choice.FinishReason != "null"

		if choice.Delta.Content != "" {
			fn(choice.Delta.Content, done)
			chunkCount++
		} else if done {
			fn("", true)
		}
		if done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return llm.WrapError(providerName, err)
	}

	// Stream ended without [DONE] or finish_reason; still signal
	// completion exactly once.
	fn("", true)
	slog.Debug("LLM: openai stream ended without done marker", "chunkCount", chunkCount)
	return nil
}

func (c *Client) buildRequestBody(req *llm.ChatRequest, stream bool) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	messages := make([]message, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = message{Role: string(m.Role), Content: m.Content}
	}

	body := chatCompletionRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
	}

	temperature := c.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	body.Temperature = &temperature

	maxTokens := c.cfg.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	if useMaxCompletionTokens(model) {
		body.MaxCompletionTokens = &maxTokens
	} else {
		body.MaxTokens = &maxTokens
	}

	return json.Marshal(body)
}

// useMaxCompletionTokens reports whether the model requires the
// max_completion_tokens parameter instead of the legacy max_tokens.
func useMaxCompletionTokens(model string) bool {
	if model == "" {
		return false
	}
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}

func (c *Client) authHeaders() map[string]string {
	return map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
}

// API request/response types

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model               string    `json:"model"`
	Messages            []message `json:"messages"`
	Stream              bool      `json:"stream"`
	Temperature         *float64  `json:"temperature,omitempty"`
	MaxTokens           *int      `json:"max_tokens,omitempty"`
	MaxCompletionTokens *int      `json:"max_completion_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      message `json:"message"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}
