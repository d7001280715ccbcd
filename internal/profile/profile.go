// Package profile holds the runtime configuration for the service.
package profile

import (
	"os"
	"strconv"
	"strings"

	"log/slog"

	"github.com/pkg/errors"
)

// Profile is configuration to start the chat service.
type Profile struct {
	// Mode is one of dev, prod.
	Mode string

	// LLM backend configuration
	LLMEnabled       bool
	LLMType          string // openai, gemini, ollama, none
	LLMAPIKey        string
	LLMBaseURL       string
	LLMModel         string
	LLMTimeout       int // seconds, default 120
	LLMTemperature   float64
	LLMMaxTokens     int
	LLMCheckInterval int // availability re-probe interval in seconds

	// Search index configuration
	SearchBaseURL   string
	SearchTimeout   int // seconds
	SearchMaxDocs   int
	ContentFields   string // comma-separated document fields fetched for grounding
	MaxRelevantDocs int
	MaxContextChars int

	// Chat configuration
	SystemPrompt       string
	Language           string // BCP 47 response language tag
	MaxSessionMessages int
	SessionIdleMinutes int

	// MetricsAddr exposes Prometheus metrics when non-empty.
	MetricsAddr string
}

// Provider default base URLs, applied when LLM_BASE_URL is not set.
var llmProviderDefaults = map[string]string{
	"openai": "https://api.openai.com/v1",
	"gemini": "https://generativelanguage.googleapis.com/v1beta",
	"ollama": "http://localhost:11434",
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// ContentFieldList splits the configured content fields.
func (p *Profile) ContentFieldList() []string {
	var out []string
	for _, f := range strings.Split(p.ContentFields, ",") {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvOrDefaultFloat returns environment variable value as float or default value.
func getEnvOrDefaultFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.Mode = getEnvOrDefault("RAGCHAT_MODE", "dev")

	p.LLMType = getEnvOrDefault("RAGCHAT_LLM_TYPE", "none")
	p.LLMAPIKey = getEnvOrDefault("RAGCHAT_LLM_API_KEY", "")
	p.LLMBaseURL = getEnvOrDefault("RAGCHAT_LLM_BASE_URL", "")
	p.LLMModel = getEnvOrDefault("RAGCHAT_LLM_MODEL", "")
	p.LLMTimeout = getEnvOrDefaultInt("RAGCHAT_LLM_TIMEOUT_SECONDS", 120)
	p.LLMTemperature = getEnvOrDefaultFloat("RAGCHAT_LLM_TEMPERATURE", 0.7)
	p.LLMMaxTokens = getEnvOrDefaultInt("RAGCHAT_LLM_MAX_TOKENS", 2000)
	p.LLMCheckInterval = getEnvOrDefaultInt("RAGCHAT_LLM_CHECK_INTERVAL_SECONDS", 60)
	p.LLMEnabled = getEnvOrDefault("RAGCHAT_LLM_ENABLED", "true") == "true"

	p.SearchBaseURL = getEnvOrDefault("RAGCHAT_SEARCH_BASE_URL", "http://localhost:8080/api/v1")
	p.SearchTimeout = getEnvOrDefaultInt("RAGCHAT_SEARCH_TIMEOUT_SECONDS", 30)
	p.SearchMaxDocs = getEnvOrDefaultInt("RAGCHAT_SEARCH_MAX_DOCS", 10)
	p.ContentFields = getEnvOrDefault("RAGCHAT_SEARCH_CONTENT_FIELDS", "content")
	p.MaxRelevantDocs = getEnvOrDefaultInt("RAGCHAT_CHAT_MAX_RELEVANT_DOCS", 5)
	p.MaxContextChars = getEnvOrDefaultInt("RAGCHAT_CHAT_MAX_CONTEXT_CHARS", 8000)

	p.SystemPrompt = getEnvOrDefault("RAGCHAT_CHAT_SYSTEM_PROMPT", "")
	p.Language = getEnvOrDefault("RAGCHAT_CHAT_LANGUAGE", "en")
	p.MaxSessionMessages = getEnvOrDefaultInt("RAGCHAT_CHAT_MAX_SESSION_MESSAGES", 20)
	p.SessionIdleMinutes = getEnvOrDefaultInt("RAGCHAT_CHAT_SESSION_IDLE_MINUTES", 30)

	p.MetricsAddr = getEnvOrDefault("RAGCHAT_METRICS_ADDR", "")
}

// Validate normalizes the profile and rejects unusable combinations.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}

	switch p.LLMType {
	case "none":
		p.LLMEnabled = false
	case "openai", "gemini", "ollama":
		if p.LLMBaseURL == "" {
			p.LLMBaseURL = llmProviderDefaults[p.LLMType]
		}
		if p.LLMAPIKey == "" && p.LLMType != "ollama" {
			return errors.Errorf("llm api key is required for provider %s", p.LLMType)
		}
	default:
		slog.Warn("unknown LLM provider, disabling LLM features", "provider", p.LLMType)
		p.LLMType = "none"
		p.LLMEnabled = false
	}

	if p.SearchBaseURL == "" {
		return errors.New("search base url is required")
	}
	if p.SearchMaxDocs <= 0 {
		p.SearchMaxDocs = 10
	}
	if p.MaxSessionMessages <= 0 {
		p.MaxSessionMessages = 20
	}

	return nil
}
