// Package leadscore turns the answers of the lead qualification flow into a
// BANT-scored lead assigned to a sales agent.
package leadscore

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"estate-assistant/internal/domain"
)

// Answer keys written by the lead qualification flow.
const (
	KeyContact   = "contact_collection"
	KeyPhone     = "phone_collection"
	KeyBudget    = "budget_qualification"
	KeyAuthority = "authority"
	KeyNeed      = "need"
	KeyTimeline  = "timeline_qualification"
)

const (
	StatusNew     = "new"
	Unnamed       = "Nome não fornecido"
	fallbackScore = 5
)

var (
	budgetScores = map[string]int{
		"Acima de 400.000€":   25,
		"300.000€ - 400.000€": 20,
		"200.000€ - 300.000€": 15,
		"Até 200.000€":        10,
	}
	authorityScores = map[string]int{
		"Sou eu que decido":                 25,
		"Decido com o meu cônjuge/parceiro": 20,
		"Há outras pessoas envolvidas":      10,
	}
	needScores = map[string]int{
		"Habitação própria":          25,
		"Segunda habitação":          20,
		"Investimento para arrendar": 15,
		"Outro":                      10,
	}
	timelineScores = map[string]int{
		"Imediatamente":         25,
		"Nos próximos 3 meses":  20,
		"Até ao final do ano":   15,
		"Sem pressa específica": 5,
	}

	emailRe      = regexp.MustCompile(`(\S+@\S+\.\S+)`)
	emailTailRe  = regexp.MustCompile(`\s*-\s*\S+@\S+\.\S+.*`)
	followUpWait = map[domain.Priority]time.Duration{
		domain.PriorityHigh:   2 * time.Hour,
		domain.PriorityMedium: 24 * time.Hour,
		domain.PriorityLow:    72 * time.Hour,
	}
)

// DefaultAgents receive High, Medium and Low priority leads respectively.
var DefaultAgents = []string{
	"joao.silva@viriato.pt",
	"maria.santos@viriato.pt",
	"pedro.costa@viriato.pt",
}

type Scorer struct {
	agents []string
	now    func() time.Time
	newID  func() string
}

type Option func(*Scorer)

// WithAgents overrides the agent roster. An empty roster leaves leads unassigned.
func WithAgents(agents ...string) Option {
	return func(s *Scorer) { s.agents = agents }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scorer) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *Scorer {
	s := &Scorer{
		agents: DefaultAgents,
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.newID = s.leadID
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score grades the answers. Unknown answers score 5 points per dimension.
func Score(answers map[string]string) domain.Qualification {
	q := domain.Qualification{
		Budget:    lookup(budgetScores, answers[KeyBudget]),
		Authority: lookup(authorityScores, answers[KeyAuthority]),
		Need:      lookup(needScores, answers[KeyNeed]),
		Timeline:  lookup(timelineScores, answers[KeyTimeline]),
	}
	q.Total = q.Budget + q.Authority + q.Need + q.Timeline
	q.Grade = grade(q.Total)
	q.Priority = priority(q.Grade, q.Timeline)
	return q
}

// ParseContact splits "Name - email" into its parts.
func ParseContact(contact, phone string) domain.Contact {
	c := domain.Contact{Phone: strings.TrimSpace(phone)}
	if m := emailRe.FindStringSubmatch(contact); m != nil {
		c.Email = m[1]
	}
	c.Name = strings.TrimSpace(emailTailRe.ReplaceAllString(contact, ""))
	if c.Name == "" {
		c.Name = Unnamed
	}
	return c
}

// Process scores the answers and builds a new lead.
func (s *Scorer) Process(sessionID, visitorID string, answers map[string]string) domain.Lead {
	q := Score(answers)
	now := s.now()
	kept := make(map[string]string, len(answers))
	for k, v := range answers {
		kept[k] = v
	}
	return domain.Lead{
		ID:            s.newID(),
		SessionID:     sessionID,
		VisitorID:     visitorID,
		Contact:       ParseContact(answers[KeyContact], answers[KeyPhone]),
		Qualification: q,
		AssignedAgent: s.assign(q.Priority),
		Status:        StatusNew,
		CreatedAt:     now,
		NextFollowUp:  now.Add(followUpWait[q.Priority]),
		Answers:       kept,
	}
}

func (s *Scorer) assign(p domain.Priority) string {
	if len(s.agents) == 0 {
		return ""
	}
	idx := 2
	switch p {
	case domain.PriorityHigh:
		idx = 0
	case domain.PriorityMedium:
		idx = 1
	}
	return s.agents[idx%len(s.agents)]
}

// leadID yields LEAD-<base36 millis>-<5 random chars>, upper-cased.
func (s *Scorer) leadID() string {
	ts := strconv.FormatInt(s.now().UnixMilli(), 36)
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
	return strings.ToUpper("LEAD-" + ts + "-" + random)
}

func lookup(table map[string]int, answer string) int {
	if v, ok := table[strings.TrimSpace(answer)]; ok {
		return v
	}
	return fallbackScore
}

func grade(total int) domain.Grade {
	switch {
	case total >= 80:
		return domain.GradeA
	case total >= 65:
		return domain.GradeB
	case total >= 50:
		return domain.GradeC
	default:
		return domain.GradeD
	}
}

func priority(g domain.Grade, timeline int) domain.Priority {
	switch {
	case g == domain.GradeA, g == domain.GradeB && timeline >= 20:
		return domain.PriorityHigh
	case g == domain.GradeB, g == domain.GradeC:
		return domain.PriorityMedium
	default:
		return domain.PriorityLow
	}
}
