// Package flow runs scripted multi-step conversations (property search, lead
// qualification, visit scheduling) on top of the session memory.
package flow

import (
	"context"
	"errors"
	"fmt"
)

type StepType string

const (
	StepQuestion     StepType = "question"
	StepAction       StepType = "action"
	StepConfirmation StepType = "confirmation"
	StepCompletion   StepType = "completion"
)

// Validator accepts or rejects an answer. A rejection may carry a message
// shown to the user instead of the generic one.
type Validator func(input string) (ok bool, msg string)

// NextStep resolves the id of the step that follows an answer. An empty id
// ends the flow.
type NextStep interface {
	resolve(input string) string
}

// Static always moves to the named step.
type Static string

func (s Static) resolve(string) string { return string(s) }

// Computed picks the next step from the answer.
type Computed func(input string) string

func (c Computed) resolve(input string) string {
	if c == nil {
		return ""
	}
	return c(input)
}

// CompleteFunc receives the collected answers when a completion step is reached
// or an action step is answered.
type CompleteFunc func(ctx context.Context, data map[string]string) error

type Step struct {
	ID         string
	Type       StepType
	Message    string
	Options    []string
	Validate   Validator
	Next       NextStep
	OnComplete CompleteFunc
}

type Definition struct {
	ID            string
	Name          string
	Description   string
	Steps         map[string]Step
	InitialStep   string
	CanInterrupt  bool
	ResumeMessage string
}

// Summary is the public description of a flow.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

var (
	ErrUnknownFlow      = errors.New("flow: unknown flow")
	ErrFlowActive       = errors.New("flow: a flow is already active")
	ErrNoActiveFlow     = errors.New("flow: no active flow")
	ErrBrokenDefinition = errors.New("flow: broken definition")
)

// Registry holds validated flow definitions in registration order.
type Registry struct {
	defs  map[string]Definition
	order []string
}

// NewRegistry validates every definition: unique ids, an existing initial
// step, step keys matching step ids and static transitions naming existing
// steps.
func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		if err := validate(d); err != nil {
			return nil, err
		}
		if _, dup := r.defs[d.ID]; dup {
			return nil, fmt.Errorf("flow: NewRegistry: duplicate flow %q: %w", d.ID, ErrBrokenDefinition)
		}
		r.defs[d.ID] = d
		r.order = append(r.order, d.ID)
	}
	return r, nil
}

// DefaultRegistry returns the built-in flows.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(PropertySearch(), LeadQualification(), VisitScheduling())
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Lookup(id string) (Definition, bool) {
	d, ok := r.defs[id]
	return d, ok
}

func (r *Registry) Summaries() []Summary {
	out := make([]Summary, 0, len(r.order))
	for _, id := range r.order {
		d := r.defs[id]
		out = append(out, Summary{ID: d.ID, Name: d.Name, Description: d.Description})
	}
	return out
}

func validate(d Definition) error {
	if d.ID == "" {
		return fmt.Errorf("flow: definition without id: %w", ErrBrokenDefinition)
	}
	if _, ok := d.Steps[d.InitialStep]; !ok {
		return fmt.Errorf("flow: %s: initial step %q not found: %w", d.ID, d.InitialStep, ErrBrokenDefinition)
	}
	for key, s := range d.Steps {
		if s.ID != key {
			return fmt.Errorf("flow: %s: step key %q does not match id %q: %w", d.ID, key, s.ID, ErrBrokenDefinition)
		}
		next, ok := s.Next.(Static)
		if !ok || next == "" {
			continue
		}
		if _, ok := d.Steps[string(next)]; !ok {
			return fmt.Errorf("flow: %s: step %q points to unknown step %q: %w", d.ID, key, next, ErrBrokenDefinition)
		}
	}
	return nil
}
