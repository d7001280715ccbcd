package llm

import (
	"fmt"
	"sort"
	"sync"
)

// Type identifies a backend implementation.
type Type string

const (
	TypeNone   Type = "none"
	TypeOllama Type = "ollama"
	TypeOpenAI Type = "openai"
	TypeGemini Type = "gemini"
)

// Constructor creates a backend client from its configuration.
type Constructor func(cfg Config) (Client, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Type]Constructor)
)

// Register adds a backend constructor. Called from provider package
// init functions.
func Register(t Type, fn Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[t] = fn
}

// NewClient constructs the backend for the given type.
func NewClient(t Type, cfg Config) (Client, error) {
	registryMu.RLock()
	fn, ok := registry[t]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, t)
	}
	return fn(cfg)
}

// RegisteredTypes returns the registered backend types, sorted.
func RegisteredTypes() []Type {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]Type, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// ParseType validates a backend type string.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeNone, TypeOllama, TypeOpenAI, TypeGemini:
		return Type(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
	}
}
