package flow

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"math"
	"slices"
	"time"

	"estate-assistant/internal/domain"
	"estate-assistant/internal/memory"
)

const (
	invalidAnswer = "Por favor, forneça uma resposta válida."
	defaultResume = "Podemos continuar onde ficámos?"
)

// Memory is the part of the conversation store the engine keeps its state in.
type Memory interface {
	GetConversationContext(ctx context.Context, sessionID, visitorID string) domain.ConversationContext
	PeekConversationContext(sessionID string) (domain.ConversationContext, bool)
	UpdateMultiStepFlow(sessionID, flowType, currentStep string, delta map[string]string, opts ...memory.FlowOption)
}

// StepPrompt is a question to show the user.
type StepPrompt struct {
	FlowType string   `json:"flowType"`
	StepID   string   `json:"flowStep"`
	Message  string   `json:"message"`
	Options  []string `json:"options,omitempty"`
}

// StepResult is the outcome of an answer. When Completed is set the flow has
// been cleared and Data holds every collected answer.
type StepResult struct {
	StepPrompt
	Completed bool              `json:"completed"`
	Data      map[string]string `json:"data,omitempty"`
}

type InterruptionResult struct {
	CanResume     bool   `json:"canResume"`
	ResumeMessage string `json:"resumeMessage,omitempty"`
}

type Status struct {
	Active       bool   `json:"active"`
	FlowType     string `json:"flowType,omitempty"`
	CurrentStep  string `json:"currentStep,omitempty"`
	Progress     int    `json:"progress"`
	CanInterrupt bool   `json:"canInterrupt"`
}

type Engine struct {
	mem    Memory
	flows  *Registry
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(mem Memory, flows *Registry, opts ...Option) (*Engine, error) {
	if mem == nil {
		return nil, errors.New("flow: memory must not be nil")
	}
	if flows == nil {
		return nil, errors.New("flow: registry must not be nil")
	}
	e := &Engine{
		mem:    mem,
		flows:  flows,
		logger: slog.Default(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// StartFlow begins flowID at its initial step. An active flow is replaced
// only when overwrite is set.
func (e *Engine) StartFlow(ctx context.Context, sessionID, visitorID, flowID string, seed map[string]string, overwrite bool) (*StepPrompt, error) {
	def, ok := e.flows.Lookup(flowID)
	if !ok {
		e.logger.Error("flow: definition not found", "flow", flowID)
		return nil, ErrUnknownFlow
	}

	c := e.mem.GetConversationContext(ctx, sessionID, visitorID)
	if active(c) {
		if !overwrite {
			return nil, ErrFlowActive
		}
		e.logger.Info("flow: replacing active flow", "session_id", sessionID, "from", c.Flow.FlowType, "to", flowID)
		e.mem.UpdateMultiStepFlow(sessionID, "", "", nil)
	}

	step := def.Steps[def.InitialStep]
	e.mem.UpdateMultiStepFlow(sessionID, def.ID, step.ID, nil,
		memory.WithFlowContext(seed),
		memory.WithNextStep(staticNext(step)),
	)
	e.logger.Info("flow: started", "session_id", sessionID, "flow", def.ID, "step", step.ID)
	return prompt(def.ID, step), nil
}

// ProcessInput answers the current step of the active flow.
func (e *Engine) ProcessInput(ctx context.Context, sessionID, visitorID, input string) (*StepResult, error) {
	state, def, step, err := e.current(ctx, sessionID, visitorID)
	if err != nil {
		return nil, err
	}

	if step.Validate != nil {
		if ok, msg := step.Validate(input); !ok {
			if msg == "" {
				msg = invalidAnswer
			}
			e.logger.Debug("flow: answer rejected", "session_id", sessionID, "flow", def.ID, "step", step.ID)
			return &StepResult{StepPrompt: StepPrompt{
				FlowType: def.ID,
				StepID:   step.ID,
				Message:  msg,
				Options:  slices.Clone(step.Options),
			}}, nil
		}
	}

	data := maps.Clone(state.CollectedData)
	if data == nil {
		data = map[string]string{}
	}
	data[step.ID] = input

	nextID := resolve(step, input)
	if nextID == "" {
		return e.complete(ctx, sessionID, def, step, data), nil
	}
	if step.Type == StepAction {
		e.runHook(ctx, sessionID, def.ID, step, data)
	}
	next, ok := def.Steps[nextID]
	if !ok {
		e.logger.Error("flow: next step not found", "flow", def.ID, "step", step.ID, "next", nextID)
		return nil, ErrBrokenDefinition
	}
	if next.Type == StepCompletion {
		return e.complete(ctx, sessionID, def, next, data), nil
	}

	e.mem.UpdateMultiStepFlow(sessionID, def.ID, next.ID,
		map[string]string{step.ID: input},
		memory.WithNextStep(staticNext(next)),
	)
	e.logger.Info("flow: advanced", "session_id", sessionID, "flow", def.ID, "from", step.ID, "to", next.ID)
	return &StepResult{StepPrompt: *prompt(def.ID, next)}, nil
}

// HandleInterruption records an off-topic message against an interruptible
// flow without moving its step.
func (e *Engine) HandleInterruption(ctx context.Context, sessionID, visitorID, message string) InterruptionResult {
	c := e.mem.GetConversationContext(ctx, sessionID, visitorID)
	if !active(c) {
		return InterruptionResult{}
	}
	def, ok := e.flows.Lookup(c.Flow.FlowType)
	if !ok || !def.CanInterrupt {
		return InterruptionResult{}
	}

	e.mem.UpdateMultiStepFlow(sessionID, def.ID, c.Flow.CurrentStep, nil,
		memory.WithNextStep(c.Flow.NextStep),
		memory.WithInterruption(domain.Interruption{
			Message:   message,
			Timestamp: e.now(),
			Step:      c.Flow.CurrentStep,
		}),
	)
	e.logger.Info("flow: interrupted", "session_id", sessionID, "flow", def.ID, "step", c.Flow.CurrentStep)

	msg := def.ResumeMessage
	if msg == "" {
		msg = defaultResume
	}
	return InterruptionResult{CanResume: true, ResumeMessage: msg}
}

// Resume re-emits the current step of the active flow.
func (e *Engine) Resume(ctx context.Context, sessionID, visitorID string) (*StepPrompt, error) {
	_, def, step, err := e.current(ctx, sessionID, visitorID)
	if err != nil {
		return nil, err
	}
	return prompt(def.ID, step), nil
}

func (e *Engine) Cancel(sessionID string) {
	e.mem.UpdateMultiStepFlow(sessionID, "", "", nil)
	e.logger.Info("flow: cancelled", "session_id", sessionID)
}

// Status never creates a session, so unknown ids report an inactive flow.
func (e *Engine) Status(_ context.Context, sessionID, _ string) Status {
	c, ok := e.mem.PeekConversationContext(sessionID)
	if !ok || !active(c) {
		return Status{}
	}
	def, ok := e.flows.Lookup(c.Flow.FlowType)
	if !ok || len(def.Steps) == 0 {
		return Status{}
	}
	progress := math.Round(100 * float64(len(c.Flow.CollectedData)) / float64(len(def.Steps)))
	return Status{
		Active:       true,
		FlowType:     def.ID,
		CurrentStep:  c.Flow.CurrentStep,
		Progress:     int(progress),
		CanInterrupt: def.CanInterrupt,
	}
}

func (e *Engine) AvailableFlows() []Summary {
	return e.flows.Summaries()
}

func (e *Engine) current(ctx context.Context, sessionID, visitorID string) (*domain.FlowState, Definition, Step, error) {
	c := e.mem.GetConversationContext(ctx, sessionID, visitorID)
	if !active(c) {
		return nil, Definition{}, Step{}, ErrNoActiveFlow
	}
	def, ok := e.flows.Lookup(c.Flow.FlowType)
	if !ok {
		e.logger.Error("flow: definition not found", "session_id", sessionID, "flow", c.Flow.FlowType)
		return nil, Definition{}, Step{}, ErrUnknownFlow
	}
	step, ok := def.Steps[c.Flow.CurrentStep]
	if !ok {
		e.logger.Error("flow: current step not found", "session_id", sessionID, "flow", def.ID, "step", c.Flow.CurrentStep)
		return nil, Definition{}, Step{}, ErrBrokenDefinition
	}
	return c.Flow, def, step, nil
}

func (e *Engine) complete(ctx context.Context, sessionID string, def Definition, step Step, data map[string]string) *StepResult {
	e.runHook(ctx, sessionID, def.ID, step, data)
	e.mem.UpdateMultiStepFlow(sessionID, "", "", nil)
	e.logger.Info("flow: completed", "session_id", sessionID, "flow", def.ID, "answers", len(data))
	return &StepResult{
		StepPrompt: StepPrompt{FlowType: def.ID, StepID: step.ID, Message: step.Message},
		Completed:  true,
		Data:       data,
	}
}

func (e *Engine) runHook(ctx context.Context, sessionID, flowID string, step Step, data map[string]string) {
	if step.OnComplete == nil {
		return
	}
	if err := step.OnComplete(ctx, maps.Clone(data)); err != nil {
		e.logger.Error("flow: step hook failed", "session_id", sessionID, "flow", flowID, "step", step.ID, "err", err)
	}
}

func active(c domain.ConversationContext) bool {
	return c.Flow != nil && c.Flow.FlowType != ""
}

func resolve(s Step, input string) string {
	if s.Next == nil {
		return ""
	}
	return s.Next.resolve(input)
}

func staticNext(s Step) string {
	if next, ok := s.Next.(Static); ok {
		return string(next)
	}
	return ""
}

func prompt(flowID string, s Step) *StepPrompt {
	return &StepPrompt{
		FlowType: flowID,
		StepID:   s.ID,
		Message:  s.Message,
		Options:  slices.Clone(s.Options),
	}
}
