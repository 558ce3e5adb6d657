package leadscore

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"estate-assistant/internal/domain"
)

func TestScore(t *testing.T) {
	cases := []struct {
		name     string
		answers  map[string]string
		total    int
		grade    domain.Grade
		priority domain.Priority
	}{
		{
			name: "hot buyer",
			answers: map[string]string{
				KeyBudget: "Acima de 400.000€", KeyAuthority: "Sou eu que decido",
				KeyNeed: "Habitação própria", KeyTimeline: "Imediatamente",
			},
			total: 100, grade: domain.GradeA, priority: domain.PriorityHigh,
		},
		{
			name: "grade B with near timeline",
			answers: map[string]string{
				KeyBudget: "200.000€ - 300.000€", KeyAuthority: "Há outras pessoas envolvidas",
				KeyNeed: "Segunda habitação", KeyTimeline: "Nos próximos 3 meses",
			},
			total: 65, grade: domain.GradeB, priority: domain.PriorityHigh,
		},
		{
			name: "grade B without urgency",
			answers: map[string]string{
				KeyBudget: "300.000€ - 400.000€", KeyAuthority: "Decido com o meu cônjuge/parceiro",
				KeyNeed: "Investimento para arrendar", KeyTimeline: "Até ao final do ano",
			},
			total: 70, grade: domain.GradeB, priority: domain.PriorityMedium,
		},
		{
			name: "grade C",
			answers: map[string]string{
				KeyBudget: "Até 200.000€", KeyAuthority: "Há outras pessoas envolvidas",
				KeyNeed: "Investimento para arrendar", KeyTimeline: "Nos próximos 3 meses",
			},
			total: 55, grade: domain.GradeC, priority: domain.PriorityMedium,
		},
		{
			name:    "unknown answers",
			answers: map[string]string{KeyBudget: "não sei"},
			total:   20, grade: domain.GradeD, priority: domain.PriorityLow,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := Score(tc.answers)
			require.Equal(t, tc.total, q.Total)
			require.Equal(t, q.Budget+q.Authority+q.Need+q.Timeline, q.Total)
			require.Equal(t, tc.grade, q.Grade)
			require.Equal(t, tc.priority, q.Priority)
		})
	}
}

func TestParseContact(t *testing.T) {
	c := ParseContact("Maria Silva - maria@email.com", " +351 912 345 678 ")
	require.Equal(t, domain.Contact{Name: "Maria Silva", Email: "maria@email.com", Phone: "+351 912 345 678"}, c)

	c = ParseContact("maria@email.com", "")
	require.Equal(t, "maria@email.com", c.Email)
	require.Equal(t, "maria@email.com", c.Name)

	c = ParseContact("", "")
	require.Equal(t, "Nome não fornecido", c.Name)
	require.Empty(t, c.Email)
}

func TestProcess(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }))

	lead := s.Process("s1", "v1", map[string]string{
		KeyContact:   "Maria Silva - maria@email.com",
		KeyPhone:     "+351 912 345 678",
		KeyBudget:    "Acima de 400.000€",
		KeyAuthority: "Sou eu que decido",
		KeyNeed:      "Habitação própria",
		KeyTimeline:  "Imediatamente",
	})

	require.Regexp(t, regexp.MustCompile(`^LEAD-[0-9A-Z]+-[0-9A-F]{5}$`), lead.ID)
	require.Equal(t, "s1", lead.SessionID)
	require.Equal(t, "v1", lead.VisitorID)
	require.Equal(t, "Maria Silva", lead.Contact.Name)
	require.Equal(t, domain.GradeA, lead.Qualification.Grade)
	require.Equal(t, domain.StatusHot, lead.Qualification.Status())
	require.Equal(t, "joao.silva@viriato.pt", lead.AssignedAgent)
	require.Equal(t, "new", lead.Status)
	require.Equal(t, now, lead.CreatedAt)
	require.Equal(t, now.Add(2*time.Hour), lead.NextFollowUp)
	require.Len(t, lead.Answers, 6)
}

func TestProcess_AgentsAndFollowUp(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return now }), WithAgents("ana@viriato.pt", "rui@viriato.pt"))

	low := s.Process("s1", "v1", nil)
	require.Equal(t, domain.PriorityLow, low.Qualification.Priority)
	require.Equal(t, "ana@viriato.pt", low.AssignedAgent)
	require.Equal(t, now.Add(72*time.Hour), low.NextFollowUp)

	medium := s.Process("s1", "v1", map[string]string{
		KeyBudget: "300.000€ - 400.000€", KeyAuthority: "Decido com o meu cônjuge/parceiro",
		KeyNeed: "Investimento para arrendar", KeyTimeline: "Até ao final do ano",
	})
	require.Equal(t, "rui@viriato.pt", medium.AssignedAgent)
	require.Equal(t, now.Add(24*time.Hour), medium.NextFollowUp)

	unassigned := New(WithAgents()).Process("s1", "v1", nil)
	require.Empty(t, unassigned.AssignedAgent)
}
