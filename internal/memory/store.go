// Package memory keeps per-session conversation context and per-visitor
// profiles. Persistence is best-effort: backend failures are logged and the
// store keeps serving defaults.
package memory

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"estate-assistant/internal/domain"
	"estate-assistant/internal/ringbuf"
)

const (
	maxMessages     = 20
	maxReferences   = 50
	maxInteractions = 100
	maxSearches     = 100
	maxTopics       = 10
	hydrateTurns    = 10
)

// Persistence is the durable backend for profiles and interaction history.
type Persistence interface {
	LoadProfile(ctx context.Context, visitorID string) (domain.UserProfile, bool, error)
	SaveProfile(ctx context.Context, profile domain.UserProfile) error
	RecentInteractions(ctx context.Context, visitorID string, limit int) ([]domain.Turn, error)
	AppendInteraction(ctx context.Context, visitorID string, turn domain.Turn) error
}

type session struct {
	mu             sync.Mutex
	id             string
	messages       *ringbuf.Buffer[domain.Turn]
	references     *ringbuf.Buffer[domain.ContextualReference]
	currentTopic   domain.Intent
	lastUserIntent domain.Intent
	flow           *domain.FlowState
}

// Store is safe for concurrent use. Each session is guarded by its own lock so
// sessions never contend with each other.
type Store struct {
	persist Persistence
	logger  *slog.Logger
	rules   []ContextualRule
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*session

	profileMu sync.Mutex
	profiles  map[string]*domain.UserProfile
}

type Option func(*Store)

// WithPersistence sets the durable backend. Without it the store is memory only.
func WithPersistence(p Persistence) Option {
	return func(s *Store) { s.persist = p }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRules replaces the contextual response rules.
func WithRules(rules ...ContextualRule) Option {
	return func(s *Store) { s.rules = rules }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		logger:   slog.Default(),
		rules:    DefaultRules(),
		now:      func() time.Time { return time.Now().UTC() },
		sessions: make(map[string]*session),
		profiles: make(map[string]*domain.UserProfile),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetConversationContext returns a snapshot of the session context, creating
// it on first use and hydrating recent turns from the visitor's history.
func (s *Store) GetConversationContext(ctx context.Context, sessionID, visitorID string) domain.ConversationContext {
	if sess := s.lookup(sessionID); sess != nil {
		return sess.snapshot()
	}

	history := s.loadHistory(ctx, visitorID)

	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &session{
			id:         sessionID,
			messages:   ringbuf.From(maxMessages, history),
			references: ringbuf.New[domain.ContextualReference](maxReferences),
		}
		s.sessions[sessionID] = sess
	}
	s.mu.Unlock()

	return sess.snapshot()
}

// PeekConversationContext returns a snapshot of a known session without
// creating one.
func (s *Store) PeekConversationContext(sessionID string) (domain.ConversationContext, bool) {
	sess := s.lookup(sessionID)
	if sess == nil {
		return domain.ConversationContext{}, false
	}
	return sess.snapshot(), true
}

// UpdateConversationContext appends turn to a known session. Unknown sessions
// are ignored; call GetConversationContext first.
func (s *Store) UpdateConversationContext(sessionID string, turn domain.Turn) {
	sess := s.lookup(sessionID)
	if sess == nil {
		return
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = s.now()
	}
	turn.Entities = append([]domain.Entity(nil), turn.Entities...)

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.messages.Push(turn)
	if turn.Sender == domain.SenderUser && turn.Intent != "" {
		sess.currentTopic = turn.Intent
		sess.lastUserIntent = turn.Intent
	}
	for _, e := range turn.Entities {
		sess.references.Push(domain.ContextualReference{
			Type:      domain.ReferenceTypeFor(e.Type),
			Value:     e.Value,
			Timestamp: turn.Timestamp,
		})
	}
}

type FlowOption func(*domain.FlowState)

func WithNextStep(stepID string) FlowOption {
	return func(f *domain.FlowState) { f.NextStep = stepID }
}

// WithFlowContext sets the seed context a flow was started with.
func WithFlowContext(seed map[string]string) FlowOption {
	return func(f *domain.FlowState) { f.Context = maps.Clone(seed) }
}

func WithInterruption(i domain.Interruption) FlowOption {
	return func(f *domain.FlowState) { f.Interruption = &i }
}

// UpdateMultiStepFlow merges delta into the collected data of the session's
// flow and overwrites its pointer fields. An empty flowType clears the flow.
func (s *Store) UpdateMultiStepFlow(sessionID, flowType, currentStep string, delta map[string]string, opts ...FlowOption) {
	sess := s.lookup(sessionID)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if flowType == "" {
		sess.flow = nil
		return
	}

	next := &domain.FlowState{
		FlowType:      flowType,
		CurrentStep:   currentStep,
		CollectedData: map[string]string{},
	}
	if prev := sess.flow; prev != nil {
		maps.Copy(next.CollectedData, prev.CollectedData)
		next.Context = prev.Context
		next.Interruption = prev.Interruption
	}
	maps.Copy(next.CollectedData, delta)
	for _, opt := range opts {
		opt(next)
	}
	sess.flow = next
}

// ClearSession drops all short-term memory of a session.
func (s *Store) ClearSession(sessionID string) {
	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
}

// Summary describes a session for analytics.
type Summary struct {
	MessageCount    int             `json:"messageCount"`
	TopicsDiscussed []domain.Intent `json:"topicsDiscussed"`
	UserIntents     []domain.Intent `json:"userIntents"`
	Duration        time.Duration   `json:"duration"`
}

func (s *Store) ConversationSummary(sessionID string) (Summary, bool) {
	sess := s.lookup(sessionID)
	if sess == nil {
		return Summary{}, false
	}
	c := sess.snapshot()

	out := Summary{
		MessageCount:    len(c.Messages),
		TopicsDiscussed: []domain.Intent{},
		UserIntents:     []domain.Intent{},
	}
	seen := map[domain.Intent]bool{}
	for _, m := range c.Messages {
		if m.Intent == "" {
			continue
		}
		if !seen[m.Intent] {
			seen[m.Intent] = true
			out.TopicsDiscussed = append(out.TopicsDiscussed, m.Intent)
		}
		if m.Sender == domain.SenderUser {
			out.UserIntents = append(out.UserIntents, m.Intent)
		}
	}
	if len(c.Messages) > 0 {
		out.Duration = s.now().Sub(c.Messages[0].Timestamp)
	}
	return out, true
}

func (s *Store) lookup(sessionID string) *session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

func (s *Store) loadHistory(ctx context.Context, visitorID string) []domain.Turn {
	if s.persist == nil || visitorID == "" {
		return nil
	}
	turns, err := s.persist.RecentInteractions(ctx, visitorID, hydrateTurns)
	if err != nil {
		s.logger.Warn("memory: load conversation history failed", "visitor_id", visitorID, "err", err)
		return nil
	}
	s.logger.Debug("memory: hydrated conversation history", "visitor_id", visitorID, "turns", len(turns))
	return turns
}

func (sess *session) snapshot() domain.ConversationContext {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	c := domain.ConversationContext{
		SessionID:      sess.id,
		Messages:       sess.messages.Slice(),
		CurrentTopic:   sess.currentTopic,
		LastUserIntent: sess.lastUserIntent,
		References:     sess.references.Slice(),
	}
	if f := sess.flow; f != nil {
		cp := *f
		cp.CollectedData = maps.Clone(f.CollectedData)
		cp.Context = maps.Clone(f.Context)
		if f.Interruption != nil {
			i := *f.Interruption
			cp.Interruption = &i
		}
		c.Flow = &cp
	}
	return c
}
