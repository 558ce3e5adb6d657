package flow

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"estate-assistant/internal/memory"
)

func newTestEngine(t *testing.T, defs ...Definition) (*Engine, *memory.Store) {
	t.Helper()
	mem := memory.New()
	reg := DefaultRegistry()
	if len(defs) > 0 {
		var err error
		reg, err = NewRegistry(defs...)
		require.NoError(t, err)
	}
	e, err := NewEngine(mem, reg)
	require.NoError(t, err)
	mem.GetConversationContext(context.Background(), "s1", "v1")
	return e, mem
}

func TestNewEngine_RejectsNil(t *testing.T) {
	_, err := NewEngine(nil, DefaultRegistry())
	require.Error(t, err)
	_, err = NewEngine(memory.New(), nil)
	require.Error(t, err)
}

func TestStartFlow(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()

	p, err := e.StartFlow(ctx, "s1", "v1", "property_search", map[string]string{"source": "chat"}, false)
	require.NoError(t, err)
	require.Equal(t, "budget", p.StepID)
	require.Equal(t, "Para lhe mostrar as melhores opções, qual é o seu orçamento aproximado?", p.Message)
	require.Len(t, p.Options, 4)

	c := mem.GetConversationContext(ctx, "s1", "v1")
	require.Equal(t, "property_search", c.Flow.FlowType)
	require.Equal(t, "budget", c.Flow.CurrentStep)
	require.Equal(t, "property_type", c.Flow.NextStep)
	require.Empty(t, c.Flow.CollectedData)
	require.Equal(t, "chat", c.Flow.Context["source"])
}

func TestStartFlow_UnknownFlow(t *testing.T) {
	e, _ := newTestEngine(t)
	p, err := e.StartFlow(context.Background(), "s1", "v1", "mortgage", nil, false)
	require.ErrorIs(t, err, ErrUnknownFlow)
	require.Nil(t, p)
}

func TestStartFlow_ActiveFlow(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := e.StartFlow(ctx, "s1", "v1", "property_search", nil, false)
	require.NoError(t, err)
	_, err = e.ProcessInput(ctx, "s1", "v1", "Até 300.000€")
	require.NoError(t, err)

	_, err = e.StartFlow(ctx, "s1", "v1", "visit_scheduling", nil, false)
	require.ErrorIs(t, err, ErrFlowActive)

	p, err := e.StartFlow(ctx, "s1", "v1", "visit_scheduling", nil, true)
	require.NoError(t, err)
	require.Equal(t, "visit_type", p.StepID)

	st := e.Status(ctx, "s1", "v1")
	require.Equal(t, "visit_scheduling", st.FlowType)
	require.Zero(t, st.Progress)
}

func TestProcessInput_NoActiveFlow(t *testing.T) {
	e, _ := newTestEngine(t)
	res, err := e.ProcessInput(context.Background(), "s1", "v1", "T2")
	require.ErrorIs(t, err, ErrNoActiveFlow)
	require.Nil(t, res)
}

func TestProcessInput_PropertySearchCompletes(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	_, err := e.StartFlow(ctx, "s1", "v1", "property_search", nil, false)
	require.NoError(t, err)

	res, err := e.ProcessInput(ctx, "s1", "v1", "Até 300.000€")
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.Equal(t, "property_type", res.StepID)
	require.Equal(t, 25, e.Status(ctx, "s1", "v1").Progress)

	res, err = e.ProcessInput(ctx, "s1", "v1", "T2")
	require.NoError(t, err)
	require.Equal(t, "timeline", res.StepID)
	require.Equal(t, 50, e.Status(ctx, "s1", "v1").Progress)

	res, err = e.ProcessInput(ctx, "s1", "v1", "Imediatamente")
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, "completion", res.StepID)
	require.Equal(t, "Perfeito! Com base nas suas preferências, vou mostrar-lhe as melhores opções disponíveis.", res.Message)
	require.Equal(t, map[string]string{
		"budget":        "Até 300.000€",
		"property_type": "T2",
		"timeline":      "Imediatamente",
	}, res.Data)

	require.Nil(t, mem.GetConversationContext(ctx, "s1", "v1").Flow)
	require.False(t, e.Status(ctx, "s1", "v1").Active)
}

func TestProcessInput_ValidationRejects(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	_, err := e.StartFlow(ctx, "s1", "v1", "lead_qualification", nil, false)
	require.NoError(t, err)

	res, err := e.ProcessInput(ctx, "s1", "v1", "Maria Silva")
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.Equal(t, "contact_collection", res.StepID)
	require.Equal(t, "Por favor, forneça nome e email válido (ex: Maria Silva - maria@email.com)", res.Message)
	require.Equal(t, []string{"Exemplo: Maria Silva - maria@email.com"}, res.Options)

	c := mem.GetConversationContext(ctx, "s1", "v1")
	require.Equal(t, "contact_collection", c.Flow.CurrentStep)
	require.Empty(t, c.Flow.CollectedData)
}

func TestProcessInput_GenericRejection(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := e.StartFlow(ctx, "s1", "v1", "property_search", nil, false)
	require.NoError(t, err)

	res, err := e.ProcessInput(ctx, "s1", "v1", "  ")
	require.NoError(t, err)
	require.Equal(t, "Por favor, forneça uma resposta válida.", res.Message)
	require.Equal(t, "budget", res.StepID)
}

func TestProcessInput_LeadQualificationStopsAtActionStep(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	_, err := e.StartFlow(ctx, "s1", "v1", "lead_qualification", nil, false)
	require.NoError(t, err)

	answers := []string{
		"Maria Silva - maria@email.com",
		"+351 912 345 678",
		"300.000€ - 400.000€",
		"Sou eu que decido",
		"Habitação própria",
	}
	for _, a := range answers {
		res, err := e.ProcessInput(ctx, "s1", "v1", a)
		require.NoError(t, err)
		require.False(t, res.Completed)
	}
	require.Equal(t, 63, e.Status(ctx, "s1", "v1").Progress)

	res, err := e.ProcessInput(ctx, "s1", "v1", "Imediatamente")
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.Equal(t, "qualification_scoring", res.StepID)
	require.Equal(t, "A processar a sua qualificação...", res.Message)
	require.Equal(t, "qualification_scoring", e.Status(ctx, "s1", "v1").CurrentStep)

	res, err = e.ProcessInput(ctx, "s1", "v1", "ok")
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, "agent_handoff", res.StepID)
	require.Len(t, res.Data, 7)
	require.Equal(t, "Sou eu que decido", res.Data["authority"])
	require.Equal(t, "Imediatamente", res.Data["timeline_qualification"])
	require.False(t, e.Status(ctx, "s1", "v1").Active)
}

func TestProcessInput_ComputedNextAndHooks(t *testing.T) {
	var actionData, doneData map[string]string
	def := Definition{
		ID:          "financing",
		InitialStep: "has_credit",
		Steps: map[string]Step{
			"has_credit": {
				ID: "has_credit",
				Next: Computed(func(in string) string {
					if in == "sim" {
						return "bank"
					}
					return "check"
				}),
			},
			"bank": {ID: "bank", Next: Static("check")},
			"check": {
				ID:   "check",
				Type: StepAction,
				Next: Static("done"),
				OnComplete: func(_ context.Context, data map[string]string) error {
					actionData = data
					return errors.New("scoring unavailable")
				},
			},
			"done": {
				ID:   "done",
				Type: StepCompletion,
				OnComplete: func(_ context.Context, data map[string]string) error {
					doneData = data
					return nil
				},
			},
		},
	}
	e, _ := newTestEngine(t, def)
	ctx := context.Background()

	_, err := e.StartFlow(ctx, "s1", "v1", "financing", nil, false)
	require.NoError(t, err)
	res, err := e.ProcessInput(ctx, "s1", "v1", "sim")
	require.NoError(t, err)
	require.Equal(t, "bank", res.StepID)

	res, err = e.ProcessInput(ctx, "s1", "v1", "CGD")
	require.NoError(t, err)
	require.False(t, res.Completed)
	require.Equal(t, "check", res.StepID)
	require.Nil(t, actionData)

	res, err = e.ProcessInput(ctx, "s1", "v1", "continuar")
	require.NoError(t, err)
	require.True(t, res.Completed)
	want := map[string]string{"has_credit": "sim", "bank": "CGD", "check": "continuar"}
	require.Equal(t, want, actionData)
	require.Equal(t, want, doneData)
}

func TestProcessInput_TerminalStepWithoutCompletion(t *testing.T) {
	def := Definition{
		ID:          "single",
		InitialStep: "q",
		Steps:       map[string]Step{"q": {ID: "q", Message: "Obrigado!"}},
	}
	e, _ := newTestEngine(t, def)
	ctx := context.Background()
	_, err := e.StartFlow(ctx, "s1", "v1", "single", nil, false)
	require.NoError(t, err)

	res, err := e.ProcessInput(ctx, "s1", "v1", "ok")
	require.NoError(t, err)
	require.True(t, res.Completed)
	require.Equal(t, "Obrigado!", res.Message)
	require.Equal(t, map[string]string{"q": "ok"}, res.Data)
}

func TestProcessInput_ComputedToMissingStep(t *testing.T) {
	def := Definition{
		ID:          "broken",
		InitialStep: "q",
		Steps: map[string]Step{
			"q": {ID: "q", Next: Computed(func(string) string { return "ghost" })},
		},
	}
	e, mem := newTestEngine(t, def)
	ctx := context.Background()
	_, err := e.StartFlow(ctx, "s1", "v1", "broken", nil, false)
	require.NoError(t, err)

	res, err := e.ProcessInput(ctx, "s1", "v1", "x")
	require.ErrorIs(t, err, ErrBrokenDefinition)
	require.Nil(t, res)
	require.Equal(t, "q", mem.GetConversationContext(ctx, "s1", "v1").Flow.CurrentStep)
}

func TestHandleInterruptionAndResume(t *testing.T) {
	ts := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	mem := memory.New()
	e, err := NewEngine(mem, DefaultRegistry(), WithClock(func() time.Time { return ts }))
	require.NoError(t, err)
	ctx := context.Background()
	mem.GetConversationContext(ctx, "s1", "v1")

	require.False(t, e.HandleInterruption(ctx, "s1", "v1", "Qual é o preço?").CanResume)

	_, err = e.StartFlow(ctx, "s1", "v1", "property_search", nil, false)
	require.NoError(t, err)
	_, err = e.ProcessInput(ctx, "s1", "v1", "Até 300.000€")
	require.NoError(t, err)

	res := e.HandleInterruption(ctx, "s1", "v1", "Qual é o preço do A1?")
	require.True(t, res.CanResume)
	require.Equal(t, "Vamos continuar a procurar a propriedade ideal para si.", res.ResumeMessage)

	c := mem.GetConversationContext(ctx, "s1", "v1")
	require.Equal(t, "property_type", c.Flow.CurrentStep)
	require.Equal(t, "timeline", c.Flow.NextStep)
	require.Equal(t, map[string]string{"budget": "Até 300.000€"}, c.Flow.CollectedData)
	require.NotNil(t, c.Flow.Interruption)
	require.Equal(t, "Qual é o preço do A1?", c.Flow.Interruption.Message)
	require.Equal(t, "property_type", c.Flow.Interruption.Step)
	require.Equal(t, ts, c.Flow.Interruption.Timestamp)

	p, err := e.Resume(ctx, "s1", "v1")
	require.NoError(t, err)
	require.Equal(t, "property_type", p.StepID)
	require.Equal(t, "Que tipo de propriedade procura?", p.Message)
}

func TestHandleInterruption_VisitSchedulingCannotResume(t *testing.T) {
	e, mem := newTestEngine(t)
	ctx := context.Background()
	_, err := e.StartFlow(ctx, "s1", "v1", "visit_scheduling", nil, false)
	require.NoError(t, err)

	res := e.HandleInterruption(ctx, "s1", "v1", "Qual é o preço?")
	require.False(t, res.CanResume)
	require.Empty(t, res.ResumeMessage)
	require.Nil(t, mem.GetConversationContext(ctx, "s1", "v1").Flow.Interruption)
}

func TestHandleInterruption_DefaultResumeMessage(t *testing.T) {
	def := Definition{
		ID:           "quick",
		InitialStep:  "q",
		CanInterrupt: true,
		Steps:        map[string]Step{"q": {ID: "q"}},
	}
	e, _ := newTestEngine(t, def)
	ctx := context.Background()
	_, err := e.StartFlow(ctx, "s1", "v1", "quick", nil, false)
	require.NoError(t, err)
	require.Equal(t, "Podemos continuar onde ficámos?", e.HandleInterruption(ctx, "s1", "v1", "?").ResumeMessage)
}

func TestStatus_UnknownSessionIsNotCreated(t *testing.T) {
	e, mem := newTestEngine(t)

	st := e.Status(context.Background(), "ghost", "v9")
	require.False(t, st.Active)
	_, ok := mem.PeekConversationContext("ghost")
	require.False(t, ok)
}

func TestResume_NoActiveFlow(t *testing.T) {
	e, _ := newTestEngine(t)
	_, err := e.Resume(context.Background(), "s1", "v1")
	require.ErrorIs(t, err, ErrNoActiveFlow)
}

func TestCancelAndStatus(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	require.Equal(t, Status{}, e.Status(ctx, "s1", "v1"))

	_, err := e.StartFlow(ctx, "s1", "v1", "lead_qualification", nil, false)
	require.NoError(t, err)
	st := e.Status(ctx, "s1", "v1")
	require.Equal(t, Status{Active: true, FlowType: "lead_qualification", CurrentStep: "contact_collection", CanInterrupt: true}, st)

	e.Cancel("s1")
	require.False(t, e.Status(ctx, "s1", "v1").Active)
	require.Len(t, e.AvailableFlows(), 3)
}
