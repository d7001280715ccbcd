package llm

import "time"

// Config holds backend connection and default generation settings.
type Config struct {
	// APIKey authenticates cloud backends (openai, gemini).
	APIKey string
	// BaseURL is the API root, e.g. https://api.openai.com/v1 or
	// http://localhost:11434.
	BaseURL string
	// Model is the default model when a request does not name one.
	Model string
	// Timeout bounds non-streaming requests. Streaming requests rely on
	// context cancellation instead.
	Timeout time.Duration

	// Temperature and MaxTokens are the defaults applied when a request
	// leaves them unset.
	Temperature float64
	MaxTokens   int

	// Retry settings for non-streaming requests.
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig returns a Config with conservative defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         2 * time.Minute,
		Temperature:     0.7,
		MaxTokens:       2000,
		MaxRetries:      2,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Option is a functional option for Config.
type Option func(*Config)

// WithAPIKey sets the API key.
func WithAPIKey(apiKey string) Option {
	return func(c *Config) { c.APIKey = apiKey }
}

// WithBaseURL sets the API root URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Config) { c.BaseURL = baseURL }
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithTimeout sets the request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) { c.Timeout = timeout }
}

// WithTemperature sets the default sampling temperature.
func WithTemperature(temperature float64) Option {
	return func(c *Config) { c.Temperature = temperature }
}

// WithMaxTokens sets the default completion token limit.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Config) { c.MaxTokens = maxTokens }
}

// WithMaxRetries sets the retry attempt limit.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Config) { c.MaxRetries = maxRetries }
}

// NewConfig creates a Config from DefaultConfig with opts applied.
func NewConfig(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
