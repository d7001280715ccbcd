package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/cognisearch/ragchat/ai/llm"
	"github.com/cognisearch/ragchat/ai/metrics"
	"github.com/cognisearch/ragchat/ai/search"
)

// Source is one cited document, numbered as shown to the user.
type Source struct {
	Index    int             `json:"index"`
	Document search.Document `json:"document"`
}

// Message is one chat turn kept in session history.
type Message struct {
	Role        llm.Role  `json:"role"`
	Content     string    `json:"content"`
	HTMLContent string    `json:"htmlContent,omitempty"`
	Sources     []Source  `json:"sources,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Session is one conversation's history. All methods are safe for
// concurrent use.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time

	mu         sync.Mutex
	lastActive time.Time
	messages   []Message
}

func newSession(userID string, now time.Time) *Session {
	return &Session{
		ID:         shortuuid.New(),
		UserID:     userID,
		CreatedAt:  now,
		lastActive: now,
	}
}

// Touch marks the session active now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// LastActive returns when the session was last used.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// AddMessage appends a turn to the history.
func (s *Session) AddMessage(msg Message) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.lastActive = time.Now()
	s.mu.Unlock()
}

// Messages returns a copy of the history.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// History returns the stored turns as LLM messages, oldest first.
func (s *Session) History() []llm.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]llm.Message, 0, len(s.messages))
	for _, m := range s.messages {
		out = append(out, llm.Message{Role: m.Role, Content: m.Content})
	}
	return out
}

// TrimHistory drops the oldest turns until at most max remain. Turns
// are dropped in user/assistant pairs so the history keeps
// alternating; a no-op once the history fits.
func (s *Session) TrimHistory(max int) {
	if max <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) <= max {
		return
	}
	drop := len(s.messages) - max
	if drop%2 == 1 {
		drop++
	}
	if drop >= len(s.messages) {
		s.messages = nil
		return
	}
	s.messages = append([]Message(nil), s.messages[drop:]...)
}

// StoreConfig tunes the session store.
type StoreConfig struct {
	// MaxMessages caps turns retained per session.
	MaxMessages int
	// IdleTimeout evicts sessions inactive this long.
	IdleTimeout time.Duration
	// CleanupInterval is how often eviction runs.
	CleanupInterval time.Duration
}

// DefaultStoreConfig returns store defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		MaxMessages:     20,
		IdleTimeout:     30 * time.Minute,
		CleanupInterval: 5 * time.Minute,
	}
}

// Store keeps chat sessions in memory and evicts idle ones.
type Store struct {
	cfg     StoreConfig
	metrics *metrics.Metrics

	mu       sync.RWMutex
	sessions map[string]*Session

	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore creates a session store.
func NewStore(cfg StoreConfig) *Store {
	def := DefaultStoreConfig()
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = def.MaxMessages
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	return &Store{cfg: cfg, sessions: make(map[string]*Session)}
}

// MaxMessages returns the per-session history cap.
func (st *Store) MaxMessages() int { return st.cfg.MaxMessages }

// SetMetrics attaches a metrics collector for the live session gauge.
func (st *Store) SetMetrics(m *metrics.Metrics) {
	st.metrics = m
}

// recordLive updates the live session gauge. Callers must not hold
// st.mu.
func (st *Store) recordLive() {
	if st.metrics != nil {
		st.metrics.SetLiveSessions(st.Len())
	}
}

// GetOrCreate returns the session with the given id, creating a fresh
// one when the id is empty or unknown.
func (st *Store) GetOrCreate(sessionID, userID string) *Session {
	if sessionID != "" {
		st.mu.RLock()
		s, ok := st.sessions[sessionID]
		st.mu.RUnlock()
		if ok {
			s.Touch()
			return s
		}
	}

	s := newSession(userID, time.Now())
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	st.recordLive()
	slog.Debug("chat: session created", "sessionId", s.ID, "userId", userID)
	return s
}

// Get returns the session with the given id, or nil.
func (st *Store) Get(sessionID string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[sessionID]
}

// Delete removes a session.
func (st *Store) Delete(sessionID string) {
	st.mu.Lock()
	delete(st.sessions, sessionID)
	st.mu.Unlock()
	st.recordLive()
}

// Len returns the number of live sessions.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Start launches the background eviction loop.
func (st *Store) Start(ctx context.Context) {
	ctx, st.cancel = context.WithCancel(ctx)
	st.done = make(chan struct{})
	go func() {
		defer close(st.done)
		ticker := time.NewTicker(st.cfg.CleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st.evictIdle(time.Now())
			}
		}
	}()
}

// Stop terminates the eviction loop.
func (st *Store) Stop() {
	if st.cancel != nil {
		st.cancel()
		<-st.done
	}
}

func (st *Store) evictIdle(now time.Time) {
	cutoff := now.Add(-st.cfg.IdleTimeout)

	st.mu.Lock()
	var evicted []string
	for id, s := range st.sessions {
		if s.LastActive().Before(cutoff) {
			delete(st.sessions, id)
			evicted = append(evicted, id)
		}
	}
	st.mu.Unlock()

	if len(evicted) > 0 {
		st.recordLive()
		slog.Debug("chat: idle sessions evicted", "count", len(evicted))
	}
}
