package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"estate-assistant/internal/domain"
	"estate-assistant/internal/flow"
	"estate-assistant/internal/memory"
	"estate-assistant/internal/metrics"
	"estate-assistant/internal/nlu"
)

const (
	defaultMaxMessageLen     = 1000
	defaultGenerationTimeout = 20 * time.Second
	historyTurns             = 8

	leadFormToken = "[LEAD_FORM]"

	apologyMessage  = "Desculpe, ocorreu um erro ao processar a sua pergunta. Por favor, tente novamente."
	leadFormMessage = "Não tenho essa informação de momento, mas um dos nossos consultores pode ajudar."
)

// ActionCollectLead tells the front end to switch to contact collection.
const ActionCollectLead = "collect_lead"

type Generator interface {
	Generate(ctx context.Context, systemPrompt string, turns []domain.ChatMessage) (string, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, query string, filters map[string]string) ([]string, error)
}

type Moderator interface {
	Moderate(ctx context.Context, input string) (bool, error)
}

type LeadScorer interface {
	Process(sessionID, visitorID string, answers map[string]string) domain.Lead
}

type LeadStore interface {
	SaveLead(ctx context.Context, lead domain.Lead) error
}

type ParamGetter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// RelevanceFunc reports whether message answers the current flow step.
type RelevanceFunc func(message string, step flow.StepPrompt) bool

// ChatService runs the per-message conversation logic. Messages of one
// session are handled one at a time; sessions never block each other.
type ChatService struct {
	mem       *memory.Store
	engine    *flow.Engine
	analyzer  *nlu.Analyzer
	generator Generator
	retriever Retriever
	scorer    LeadScorer
	leads     LeadStore
	moderator Moderator
	relevant  RelevanceFunc
	logger    *slog.Logger

	maxMessageLen     int
	generationTimeout time.Duration

	locks sessionLocks

	params      ParamGetter
	paramPrefix string
	personaMu   sync.RWMutex
	persona     string
	personaSet  bool
}

type ChatInput struct {
	SessionID string
	VisitorID string
	Message   string
}

type ChatOutput struct {
	SessionID     string        `json:"sessionId"`
	VisitorID     string        `json:"visitorId"`
	Response      string        `json:"response"`
	Intent        domain.Intent `json:"intent,omitempty"`
	FlowActive    bool          `json:"flowActive"`
	FlowType      string        `json:"flowType,omitempty"`
	FlowStep      string        `json:"flowStep,omitempty"`
	FlowOptions   []string      `json:"flowOptions,omitempty"`
	Completed     bool          `json:"completed,omitempty"`
	Suggestions   []string      `json:"suggestions,omitempty"`
	Action        string        `json:"action,omitempty"`
	ResumeMessage string        `json:"resumeMessage,omitempty"`
	Lead          *domain.Lead  `json:"lead,omitempty"`
}

type Option func(*ChatService)

func WithRetriever(r Retriever) Option {
	return func(s *ChatService) { s.retriever = r }
}

func WithModerator(m Moderator) Option {
	return func(s *ChatService) { s.moderator = m }
}

func WithLeadStore(l LeadStore) Option {
	return func(s *ChatService) { s.leads = l }
}

func WithRelevance(fn RelevanceFunc) Option {
	return func(s *ChatService) {
		if fn != nil {
			s.relevant = fn
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *ChatService) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMaxMessageLen(n int) Option {
	return func(s *ChatService) {
		if n > 0 {
			s.maxMessageLen = n
		}
	}
}

func WithGenerationTimeout(d time.Duration) Option {
	return func(s *ChatService) {
		if d > 0 {
			s.generationTimeout = d
		}
	}
}

// WithPersona loads the assistant persona from <prefix>/persona_prompt on
// first use.
func WithPersona(p ParamGetter, prefix string) Option {
	return func(s *ChatService) {
		s.params = p
		s.paramPrefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	}
}

func NewChatService(mem *memory.Store, engine *flow.Engine, analyzer *nlu.Analyzer, gen Generator, scorer LeadScorer, opts ...Option) (*ChatService, error) {
	if mem == nil {
		return nil, errors.New("usecase: memory store must not be nil")
	}
	if engine == nil {
		return nil, errors.New("usecase: flow engine must not be nil")
	}
	if analyzer == nil {
		return nil, errors.New("usecase: analyzer must not be nil")
	}
	if gen == nil {
		return nil, errors.New("usecase: generator must not be nil")
	}
	if scorer == nil {
		return nil, errors.New("usecase: lead scorer must not be nil")
	}
	s := &ChatService{
		mem:               mem,
		engine:            engine,
		analyzer:          analyzer,
		generator:         gen,
		scorer:            scorer,
		relevant:          DefaultRelevance,
		logger:            slog.Default(),
		maxMessageLen:     defaultMaxMessageLen,
		generationTimeout: defaultGenerationTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.params != nil && s.paramPrefix == "" {
		return nil, errors.New("usecase: parameter prefix must not be empty")
	}
	return s, nil
}

// HandleMessage answers one visitor message.
func (s *ChatService) HandleMessage(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = newUUID()
	}
	visitorID := strings.TrimSpace(in.VisitorID)
	if visitorID == "" {
		visitorID = newUUID()
	}

	if s.moderator != nil {
		flagged, err := s.moderator.Moderate(ctx, message)
		switch {
		case err != nil:
			s.logger.Warn("usecase: moderation failed", "session_id", sessionID, "err", err)
		case flagged:
			metrics.Inc(metrics.ModerationRejections)
			return ChatOutput{}, newError(ErrorInvalidQuestion, "moderation_flagged", nil)
		}
	}

	unlock := s.locks.lock(sessionID)
	defer unlock()
	metrics.Inc(metrics.MessagesTotal)

	out := ChatOutput{SessionID: sessionID, VisitorID: visitorID}
	convo := s.mem.GetConversationContext(ctx, sessionID, visitorID)

	// An interrupted flow is re-offered after the fresh answer.
	var resume *flow.StepPrompt
	if convo.Flow != nil && convo.Flow.FlowType != "" {
		handled, r := s.continueFlow(ctx, sessionID, visitorID, message, convo, &out)
		if handled {
			return out, nil
		}
		resume = r
	}

	analysis := s.analyzer.Analyze(message)
	out.Intent = analysis.Intent
	// Contextual rules key on the intent of the previous user turn.
	shortcut, hasShortcut := s.mem.GenerateContextualResponse(sessionID, message)
	s.remember(ctx, sessionID, visitorID, domain.Turn{
		Text:     message,
		Sender:   domain.SenderUser,
		Intent:   analysis.Intent,
		Entities: analysis.Entities,
	})
	s.mergePreferences(ctx, visitorID, analysis)

	flowActive := s.engine.Status(ctx, sessionID, visitorID).Active
	if !flowActive {
		if flowID, ok := matchTrigger(analysis, message); ok {
			if prompt := s.startFlow(ctx, sessionID, visitorID, flowID, analysis); prompt != nil {
				setPrompt(&out, *prompt)
				s.reply(ctx, sessionID, visitorID, prompt.Message)
				return out, nil
			}
		}
	}

	if hasShortcut {
		metrics.Inc(metrics.ContextualShortcuts)
		out.Response = shortcut
	} else {
		out.Response = s.generate(ctx, sessionID, visitorID, message, analysis)
	}

	if strings.Contains(out.Response, leadFormToken) {
		out.Response = strings.TrimSpace(strings.ReplaceAll(out.Response, leadFormToken, ""))
		out.Action = ActionCollectLead
		if !flowActive {
			if prompt := s.startFlow(ctx, sessionID, visitorID, flow.LeadQualification().ID, analysis); prompt != nil {
				out.Response = joinParagraphs(out.Response, prompt.Message)
				setPrompt(&out, *prompt)
			}
		}
		if out.Response == "" {
			out.Response = leadFormMessage
		}
	}

	if resume != nil {
		out.Response = joinParagraphs(out.Response, out.ResumeMessage+" "+resume.Message)
		setPrompt(&out, *resume)
	}
	out.Suggestions = s.mem.GetContextualSuggestions(sessionID, visitorID)
	s.reply(ctx, sessionID, visitorID, out.Response)
	return out, nil
}

// continueFlow feeds the message to the active flow. It reports handled when
// out is final; otherwise the message is treated as a fresh query and the
// returned prompt, if any, is offered again afterwards.
func (s *ChatService) continueFlow(ctx context.Context, sessionID, visitorID, message string, convo domain.ConversationContext, out *ChatOutput) (bool, *flow.StepPrompt) {
	current, err := s.engine.Resume(ctx, sessionID, visitorID)
	if err != nil {
		s.logger.Warn("usecase: active flow unavailable", "session_id", sessionID, "err", err)
		return false, nil
	}
	status := s.engine.Status(ctx, sessionID, visitorID)

	if status.CanInterrupt && !s.relevant(message, *current) {
		metrics.Inc(metrics.FlowInterruptions)
		ir := s.engine.HandleInterruption(ctx, sessionID, visitorID, message)
		if !ir.CanResume {
			return false, nil
		}
		out.ResumeMessage = ir.ResumeMessage
		return false, current
	}

	res, err := s.engine.ProcessInput(ctx, sessionID, visitorID, message)
	if err != nil {
		s.logger.Warn("usecase: flow input failed", "session_id", sessionID, "flow", current.FlowType, "err", err)
		return false, nil
	}

	s.remember(ctx, sessionID, visitorID, domain.Turn{Text: message, Sender: domain.SenderUser})
	out.Response = res.Message
	out.FlowType = res.FlowType
	out.FlowStep = res.StepID
	if res.Completed {
		metrics.Inc(metrics.FlowsCompleted)
		out.Completed = true
		out.Lead = s.applyCompletion(ctx, sessionID, visitorID, res, convo.Flow.Context)
		out.Suggestions = s.mem.GetContextualSuggestions(sessionID, visitorID)
	} else {
		out.FlowActive = true
		out.FlowOptions = res.Options
	}
	s.reply(ctx, sessionID, visitorID, out.Response)
	return true, nil
}

func (s *ChatService) startFlow(ctx context.Context, sessionID, visitorID, flowID string, a domain.Analysis) *flow.StepPrompt {
	seed := map[string]string{"intent": string(a.Intent)}
	if e, ok := domain.FirstEntity(a.Entities, domain.EntityApartmentID); ok {
		seed[seedPropertyID] = strings.ToUpper(e.Value)
	}
	prompt, err := s.engine.StartFlow(ctx, sessionID, visitorID, flowID, seed, false)
	if err != nil {
		s.logger.Warn("usecase: flow not started", "session_id", sessionID, "flow", flowID, "err", err)
		return nil
	}
	metrics.Inc(metrics.FlowsStarted)
	return prompt
}

func (s *ChatService) mergePreferences(ctx context.Context, visitorID string, a domain.Analysis) {
	if prefs := nlu.ExtractLeadQualification(a.Entities).Preferences(); !prefs.IsZero() {
		s.mem.UpdateUserPreferences(ctx, visitorID, prefs)
	}
	seen := map[string]bool{}
	for _, e := range a.Entities {
		id := strings.ToUpper(e.Value)
		if e.Type != domain.EntityApartmentID || seen[id] {
			continue
		}
		seen[id] = true
		s.mem.AddPropertyInteraction(ctx, visitorID, domain.PropertyInteraction{
			PropertyID:      id,
			InteractionType: domain.InteractionInquiry,
			Details:         map[string]string{"message": a.OriginalText},
		})
	}
}

// generate answers from retrieved context. Failures and timeouts yield the
// apology message.
func (s *ChatService) generate(ctx context.Context, sessionID, visitorID, message string, a domain.Analysis) string {
	metrics.Inc(metrics.GenerationsTotal)
	gctx, cancel := context.WithTimeout(ctx, s.generationTimeout)
	defer cancel()

	var docs []string
	if s.retriever != nil {
		filters := map[string]string{}
		if e, ok := domain.FirstEntity(a.Entities, domain.EntityApartmentID); ok {
			filters[seedPropertyID] = strings.ToUpper(e.Value)
		}
		var err error
		docs, err = s.retriever.Retrieve(gctx, message, filters)
		if err != nil {
			s.logger.Warn("usecase: retrieval failed", "session_id", sessionID, "err", err)
			docs = nil
		}
	}

	convo := s.mem.GetConversationContext(ctx, sessionID, visitorID)
	profile := s.mem.GetUserProfile(ctx, visitorID)
	system := buildSystemPrompt(promptContext{
		persona:     s.loadPersona(ctx),
		documents:   docs,
		analysis:    a,
		preferences: profile.Preferences,
	})

	reply, err := s.generator.Generate(gctx, system, conversationTurns(convo.Messages, historyTurns))
	if err != nil {
		metrics.Inc(metrics.GenerationFailures)
		s.logger.Error("usecase: generation failed", "session_id", sessionID, "err", err)
		return apologyMessage
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		metrics.Inc(metrics.GenerationFailures)
		s.logger.Error("usecase: generation returned no text", "session_id", sessionID)
		return apologyMessage
	}
	return reply
}

// remember records a turn in session memory and in the visitor's history.
func (s *ChatService) remember(ctx context.Context, sessionID, visitorID string, turn domain.Turn) {
	s.mem.UpdateConversationContext(sessionID, turn)
	s.mem.RecordInteraction(ctx, visitorID, turn)
}

func (s *ChatService) reply(ctx context.Context, sessionID, visitorID, text string) {
	s.remember(ctx, sessionID, visitorID, domain.Turn{Text: text, Sender: domain.SenderBot})
}

func (s *ChatService) loadPersona(ctx context.Context) string {
	if s.params == nil {
		return defaultPersona
	}
	s.personaMu.RLock()
	if s.personaSet {
		p := s.persona
		s.personaMu.RUnlock()
		return p
	}
	s.personaMu.RUnlock()

	s.personaMu.Lock()
	defer s.personaMu.Unlock()
	if s.personaSet {
		return s.persona
	}
	persona, err := s.params.GetParameter(ctx, s.paramPrefix+"/persona_prompt")
	if err != nil {
		s.logger.Warn("usecase: load persona failed, using default", "err", err)
		return defaultPersona
	}
	if strings.TrimSpace(persona) == "" {
		persona = defaultPersona
	}
	s.persona = persona
	s.personaSet = true
	return persona
}

// Analyze exposes the NLU for tooling.
func (s *ChatService) Analyze(text string) domain.Analysis {
	return s.analyzer.Analyze(text)
}

func (s *ChatService) FlowStatus(ctx context.Context, sessionID, visitorID string) flow.Status {
	return s.engine.Status(ctx, sessionID, visitorID)
}

func (s *ChatService) CancelFlow(sessionID string) {
	unlock := s.locks.lock(sessionID)
	defer unlock()
	s.engine.Cancel(sessionID)
}

func (s *ChatService) AvailableFlows() []flow.Summary {
	return s.engine.AvailableFlows()
}

func (s *ChatService) ClearSession(sessionID string) {
	unlock := s.locks.lock(sessionID)
	defer unlock()
	s.mem.ClearSession(sessionID)
}

func (s *ChatService) Summary(sessionID string) (memory.Summary, bool) {
	return s.mem.ConversationSummary(sessionID)
}

func setPrompt(out *ChatOutput, p flow.StepPrompt) {
	out.FlowActive = true
	out.FlowType = p.FlowType
	out.FlowStep = p.StepID
	out.FlowOptions = p.Options
	if out.Response == "" {
		out.Response = p.Message
	}
}

func joinParagraphs(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

var newUUID = func() string {
	return uuid.NewString()
}
