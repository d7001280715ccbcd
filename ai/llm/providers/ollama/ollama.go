// Package ollama implements the Ollama local chat backend with NDJSON
// streaming.
package ollama

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
	providerName = "ollama"
	chatEndpoint = "/api/chat"
	tagsEndpoint = "/api/tags"
)

func init() {
	llm.Register(llm.TypeOllama, New)
}

// Client talks to a local Ollama server.
type Client struct {
	cfg  llm.Config
	http *llm.HTTPClient
}

// New creates an Ollama backend client. No API key is required.
func New(cfg llm.Config) (llm.Client, error) {
	if cfg.BaseURL == "" {
		return nil, llm.ErrNoBaseURL
	}
	return &Client{cfg: cfg, http: llm.NewHTTPClient(cfg)}, nil
}

// Name returns the backend type name.
func (c *Client) Name() string { return providerName }

// CheckAvailability probes /api/tags and requires the configured model
// to be present in the tag list.
func (c *Client) CheckAvailability(ctx context.Context) bool {
	status, body, err := c.http.Get(ctx, c.cfg.BaseURL+tagsEndpoint, nil)
	if err != nil {
		slog.Debug("LLM: ollama not available", "url", c.cfg.BaseURL, "error", err)
		return false
	}
	if status < 200 || status >= 300 {
		slog.Debug("LLM: ollama availability check failed", "url", c.cfg.BaseURL, "status", status)
		return false
	}
	return c.modelAvailable(body)
}

// modelAvailable checks the /api/tags response for the configured
// model. A blank configured model or an unparseable response counts as
// available.
func (c *Client) modelAvailable(tagsBody []byte) bool {
	if c.cfg.Model == "" {
		return true
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(tagsBody, &tags); err != nil {
		slog.Debug("LLM: failed to parse ollama tags response", "error", err)
		return true
	}
	for _, m := range tags.Models {
		if m.Name == c.cfg.Model {
			slog.Debug("LLM: ollama model found", "model", c.cfg.Model)
			return true
		}
	}
	slog.Warn("LLM: configured model not found in ollama", "model", c.cfg.Model)
	return false
}

// Chat performs a blocking chat completion.
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body, err := c.buildRequestBody(req, false)
	if err != nil {
		return nil, llm.WrapError(providerName, err)
	}

	respBody, err := c.http.Post(ctx, providerName, c.cfg.BaseURL+chatEndpoint, body, nil, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = respBody.Close() }()

	var resp chatResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return nil, llm.WrapError(providerName, fmt.Errorf("failed to decode response: %w", err))
	}

	var content string
	if resp.Message != nil {
		content = resp.Message.Content
	}
	return &llm.ChatResponse{
		Content:      content,
		Model:        resp.Model,
		FinishReason: resp.DoneReason,
		Usage: llm.Usage{
			PromptTokens:     resp.PromptEvalCount,
			CompletionTokens: resp.EvalCount,
			TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
		},
	}, nil
}

// StreamChat performs a streaming chat completion. Ollama streams one
// JSON object per line; the object with done=true terminates.
func (c *Client) StreamChat(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) error {
	body, err := c.buildRequestBody(req, true)
	if err != nil {
		return llm.WrapError(providerName, err)
	}

	respBody, err := c.http.Post(ctx, providerName, c.cfg.BaseURL+chatEndpoint, body, nil, true)
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
		if line == "" {
			continue
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			slog.Warn("LLM: failed to parse ollama stream line", "line", line, "error", err)
			continue
		}

		if chunk.Message != nil && chunk.Message.Content != "" {
			fn(chunk.Message.Content, chunk.Done)
			chunkCount++
		} else if chunk.Done {
			fn("", true)
		}
		if chunk.Done {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return llm.WrapError(providerName, err)
	}

	fn("", true)
	slog.Debug("LLM: ollama stream ended without done flag", "chunkCount", chunkCount)
	return nil
}

func (c *Client) buildRequestBody(req *llm.ChatRequest, stream bool) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	messages := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = chatMessage{Role: string(m.Role), Content: m.Content}
	}

	temperature := c.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := c.cfg.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	return json.Marshal(chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   stream,
		Options: &chatOptions{
			Temperature: &temperature,
			NumPredict:  &maxTokens,
		},
	})
}

// API request/response types

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  *chatOptions  `json:"options,omitempty"`
}

type chatResponse struct {
	Model           string       `json:"model"`
	Message         *chatMessage `json:"message"`
	Done            bool         `json:"done"`
	DoneReason      string       `json:"done_reason"`
	PromptEvalCount int          `json:"prompt_eval_count"`
	EvalCount       int          `json:"eval_count"`
}
