// Package gemini implements the Google Gemini generateContent backend.
// Streaming uses the JSON-array framing of streamGenerateContent: the
// response is one JSON array delivered line by line.
package gemini

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
	providerName = "gemini"

	// Gemini names the assistant role "model".
	roleModel = "model"
)

func init() {
	llm.Register(llm.TypeGemini, New)
}

// Client talks to the Gemini generateContent API.
type Client struct {
	cfg  llm.Config
	http *llm.HTTPClient
}

// New creates a Gemini backend client.
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

// CheckAvailability probes the models listing endpoint.
func (c *Client) CheckAvailability(ctx context.Context) bool {
	status, _, err := c.http.Get(ctx, c.cfg.BaseURL+"/models?key="+c.cfg.APIKey, nil)
	if err != nil {
		slog.Debug("LLM: gemini not available", "url", c.cfg.BaseURL, "error", err)
		return false
	}
	available := status >= 200 && status < 300
	slog.Debug("LLM: gemini availability check", "url", c.cfg.BaseURL, "status", status, "available", available)
	return available
}

// Chat performs a blocking chat completion.
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := c.modelName(req)
	body, err := c.buildRequestBody(req)
	if err != nil {
		return nil, llm.WrapError(providerName, err)
	}

	respBody, err := c.http.Post(ctx, providerName, c.apiURL(model, false), body, nil, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = respBody.Close() }()

	var resp generateContentResponse
	if err := json.NewDecoder(respBody).Decode(&resp); err != nil {
		return nil, llm.WrapError(providerName, fmt.Errorf("failed to decode response: %w", err))
	}
	if len(resp.Candidates) == 0 {
		return nil, llm.WrapError(providerName, fmt.Errorf("no candidates in response"))
	}

	out := &llm.ChatResponse{
		FinishReason: resp.Candidates[0].FinishReason,
		Usage: llm.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		},
	}
	if parts := resp.Candidates[0].Content.Parts; len(parts) > 0 {
		out.Content = parts[0].Text
	}
	// The response reports the exact model version that served it.
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	} else {
		out.Model = model
	}
	return out, nil
}

// StreamChat performs a streaming chat completion. The wire format is a
// JSON array of generateContent responses; each line holding an array
// element is parsed individually, and the pure punctuation lines of the
// array framing are skipped.
func (c *Client) StreamChat(ctx context.Context, req *llm.ChatRequest, fn llm.StreamFunc) error {
	model := c.modelName(req)
	body, err := c.buildRequestBody(req)
	if err != nil {
		return llm.WrapError(providerName, err)
	}

	respBody, err := c.http.Post(ctx, providerName, c.apiURL(model, true), body, nil, true)
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
		if line == "" || line == "[" || line == "]" || line == "," {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, ","))

		var chunk generateContentResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			slog.Warn("LLM: failed to parse gemini stream line", "line", line, "error", err)
			continue
		}
		if len(chunk.Candidates) == 0 {
			continue
		}

		candidate := chunk.Candidates[0]
		done := candidate.FinishReason != "" && candidate.FinishReason != "null"

		if parts := candidate.Content.Parts; len(parts) > 0 && parts[0].Text != "" {
			fn(parts[0].Text, done)
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

	fn("", true)
	slog.Debug("LLM: gemini stream ended without finish reason", "chunkCount", chunkCount)
	return nil
}

func (c *Client) modelName(req *llm.ChatRequest) string {
	if req.Model != "" {
		return req.Model
	}
	return c.cfg.Model
}

func (c *Client) apiURL(model string, stream bool) string {
	action := "generateContent"
	if stream {
		action = "streamGenerateContent"
	}
	return c.cfg.BaseURL + "/models/" + model + ":" + action + "?key=" + c.cfg.APIKey
}

func (c *Client) buildRequestBody(req *llm.ChatRequest) ([]byte, error) {
	body := generateContentRequest{}

	// System messages fold into a single systemInstruction, joined with
	// newlines in request order.
	var systemParts []string
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		role := string(m.Role)
		if m.Role == llm.RoleAssistant {
			role = roleModel
		}
		body.Contents = append(body.Contents, content{
			Role:  role,
			Parts: []part{{Text: m.Content}},
		})
	}
	if len(systemParts) > 0 {
		body.SystemInstruction = &systemInstruction{
			Parts: []part{{Text: strings.Join(systemParts, "\n")}},
		}
	}

	temperature := c.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := c.cfg.MaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	body.GenerationConfig = &generationConfig{
		Temperature:     &temperature,
		MaxOutputTokens: &maxTokens,
	}

	return json.Marshal(body)
}

// API request/response types

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type systemInstruction struct {
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens *int     `json:"maxOutputTokens,omitempty"`
}

type generateContentRequest struct {
	SystemInstruction *systemInstruction `json:"systemInstruction,omitempty"`
	Contents          []content          `json:"contents"`
	GenerationConfig  *generationConfig  `json:"generationConfig,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}
