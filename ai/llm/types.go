// Package llm defines the chat types shared by all LLM backends and the
// manager that routes requests to the configured one.
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage creates a system message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage creates a user message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage creates an assistant message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ChatRequest is a provider-independent chat completion request.
// Model, Temperature and MaxTokens override the backend defaults when set.
type ChatRequest struct {
	Messages    []Message
	Model       string
	Temperature *float64
	MaxTokens   *int
}

// AddSystemMessage appends a system message.
func (r *ChatRequest) AddSystemMessage(content string) {
	r.Messages = append(r.Messages, SystemMessage(content))
}

// AddUserMessage appends a user message.
func (r *ChatRequest) AddUserMessage(content string) {
	r.Messages = append(r.Messages, UserMessage(content))
}

// AddMessage appends a message.
func (r *ChatRequest) AddMessage(m Message) {
	r.Messages = append(r.Messages, m)
}

// Usage reports token accounting for a completed request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// ChatResponse is a complete, non-streamed chat completion.
type ChatResponse struct {
	Content      string
	Model        string
	FinishReason string
	Usage        Usage
}

// StreamFunc receives streamed content. A successful stream delivers
// exactly one call with done=true; no chunks follow it.
type StreamFunc func(chunk string, done bool)

// Client is a provider-specific chat backend.
type Client interface {
	// Name returns the backend type name (openai, gemini, ollama).
	Name() string

	// Chat performs a blocking chat completion.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// StreamChat performs a streaming chat completion, delivering chunks
	// to fn. On error no terminal done chunk is guaranteed; the caller
	// owns error fan-out.
	StreamChat(ctx context.Context, req *ChatRequest, fn StreamFunc) error

	// CheckAvailability probes the backend and reports whether it can
	// serve requests right now.
	CheckAvailability(ctx context.Context) bool
}

// Service is the consumer-facing surface of the manager: chat plus an
// availability gate.
type Service interface {
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	StreamChat(ctx context.Context, req *ChatRequest, fn StreamFunc) error
	Available(ctx context.Context) bool
}

func float64Ptr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }

// Float64 returns a pointer to v for request overrides.
func Float64(v float64) *float64 { return float64Ptr(v) }

// Int returns a pointer to v for request overrides.
func Int(v int) *int { return intPtr(v) }
