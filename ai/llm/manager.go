package llm

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ManagerConfig configures the backend manager.
type ManagerConfig struct {
	// Enabled is the feature flag; when false the manager never reports
	// available.
	Enabled bool
	// Type selects the backend. TypeNone disables the manager.
	Type Type
	// CheckInterval is the period between availability probes. Zero or
	// negative disables the periodic probe; availability is then probed
	// synchronously on first read only.
	CheckInterval time.Duration
}

// MetricsRecorder receives per-request accounting from the manager.
type MetricsRecorder interface {
	RecordLLMRequest(provider, model string, d time.Duration, success bool)
	RecordLLMTokens(model, tokenType string, count int)
}

// Manager routes chat requests to the configured backend and caches its
// availability. The cached bit is read lock-free and refreshed by a
// periodic probe; the first read before any probe result triggers a
// synchronous probe, deduplicated across concurrent callers.
type Manager struct {
	cfg     ManagerConfig
	client  Client
	metrics MetricsRecorder

	available atomic.Bool
	probed    atomic.Bool
	sf        singleflight.Group

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a manager for the given backend client. client may
// be nil when cfg.Type is TypeNone.
func NewManager(cfg ManagerConfig, client Client) *Manager {
	return &Manager{cfg: cfg, client: client}
}

// SetMetrics attaches a recorder for request counts, latency and token
// usage. Call before serving requests.
func (m *Manager) SetMetrics(rec MetricsRecorder) {
	m.metrics = rec
}

// Start launches the periodic availability probe. No-op when the
// manager is disabled or the interval is not positive.
func (m *Manager) Start(ctx context.Context) {
	if !m.cfg.Enabled || m.cfg.Type == TypeNone || m.client == nil {
		slog.Debug("LLM: availability check skipped", "enabled", m.cfg.Enabled, "type", m.cfg.Type)
		return
	}
	if m.cfg.CheckInterval <= 0 {
		slog.Debug("LLM: periodic availability check disabled", "type", m.cfg.Type)
		return
	}

	m.updateAvailability(ctx)

	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.updateAvailability(ctx)
			}
		}
	}()

	slog.Debug("LLM: started availability check", "type", m.cfg.Type, "interval", m.cfg.CheckInterval)
}

// Stop terminates the periodic probe.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}
}

func (m *Manager) updateAvailability(ctx context.Context) {
	previous := m.available.Load()
	known := m.probed.Load()
	current := m.client.CheckAvailability(ctx)
	m.available.Store(current)
	m.probed.Store(true)

	if !known || previous != current {
		slog.Info("LLM: availability changed", "type", m.cfg.Type, "previous", previous, "current", current)
	} else {
		slog.Debug("LLM: availability check completed", "type", m.cfg.Type, "available", current)
	}
}

// Available reports whether chat requests can be served. False when the
// feature flag is off, the type is none, or the backend probe failed.
func (m *Manager) Available(ctx context.Context) bool {
	if m.cfg.Type == TypeNone {
		slog.Debug("LLM: not available, type=none")
		return false
	}
	if !m.cfg.Enabled {
		slog.Debug("LLM: not available, disabled")
		return false
	}
	if m.client == nil {
		return false
	}
	if m.probed.Load() {
		return m.available.Load()
	}

	// First read before any probe result: probe synchronously, shared
	// across concurrent callers.
	v, _, _ := m.sf.Do("probe", func() (any, error) {
		m.updateAvailability(ctx)
		return m.available.Load(), nil
	})
	return v.(bool)
}

// Client returns the underlying backend client, or nil when none is
// configured.
func (m *Manager) Client() Client {
	return m.client
}

// Chat performs a blocking chat completion through the configured
// backend. Returns ErrUnavailable when the backend cannot serve.
func (m *Manager) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	if !m.Available(ctx) {
		slog.Warn("LLM: chat request rejected, client not available", "type", m.cfg.Type)
		return nil, ErrUnavailable
	}
	start := time.Now()
	resp, err := m.client.Chat(ctx, req)
	if err != nil {
		if m.metrics != nil {
			m.metrics.RecordLLMRequest(string(m.cfg.Type), req.Model, time.Since(start), false)
		}
		slog.Warn("LLM: chat request failed", "type", m.cfg.Type, "error", err, "elapsed", time.Since(start))
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.RecordLLMRequest(string(m.cfg.Type), resp.Model, time.Since(start), true)
		m.metrics.RecordLLMTokens(resp.Model, "prompt", resp.Usage.PromptTokens)
		m.metrics.RecordLLMTokens(resp.Model, "completion", resp.Usage.CompletionTokens)
	}
	slog.Debug("LLM: chat request completed", "type", m.cfg.Type,
		"contentLength", len(resp.Content), "elapsed", time.Since(start))
	return resp, nil
}

// StreamChat performs a streaming chat completion through the
// configured backend. Returns ErrUnavailable when the backend cannot
// serve.
func (m *Manager) StreamChat(ctx context.Context, req *ChatRequest, fn StreamFunc) error {
	if !m.Available(ctx) {
		slog.Warn("LLM: streaming chat request rejected, client not available", "type", m.cfg.Type)
		return ErrUnavailable
	}
	start := time.Now()
	if err := m.client.StreamChat(ctx, req, fn); err != nil {
		if m.metrics != nil {
			m.metrics.RecordLLMRequest(string(m.cfg.Type), req.Model, time.Since(start), false)
		}
		slog.Warn("LLM: streaming chat request failed", "type", m.cfg.Type, "error", err, "elapsed", time.Since(start))
		return err
	}
	if m.metrics != nil {
		m.metrics.RecordLLMRequest(string(m.cfg.Type), req.Model, time.Since(start), true)
	}
	slog.Debug("LLM: streaming chat request completed", "type", m.cfg.Type, "elapsed", time.Since(start))
	return nil
}

var _ Service = (*Manager)(nil)
