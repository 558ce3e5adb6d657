package memory

import (
	"strings"

	"estate-assistant/internal/domain"
)

// ContextualRule is a hand-authored follow-up answer. It fires when the last
// user intent equals Topic, the message contains one of Triggers and, when
// PriorReferences is set, a remembered reference contains one of them.
type ContextualRule struct {
	Name            string
	Topic           domain.Intent
	Triggers        []string
	PriorReferences []string
	Response        string
}

// DefaultRules returns the pool-near-the-park follow-up and the generic
// continuation answer.
func DefaultRules() []ContextualRule {
	return []ContextualRule{
		{
			Name:            "pool_near_park",
			Topic:           domain.IntentApartmentInquiry,
			Triggers:        []string{"pool", "piscina"},
			PriorReferences: []string{"park", "parque"},
			Response:        "Sim, além da proximidade ao parque que mencionou, este empreendimento também tem piscina comunitária. É perfeito para famílias que valorizam espaços verdes e lazer!",
		},
		{
			Name:     "continue_property_topic",
			Topic:    domain.IntentApartmentInquiry,
			Triggers: []string{"any", "algum"},
			Response: "Com base no que discutimos anteriormente, posso sugerir algumas opções que se adequam ao que procura.",
		},
	}
}

// GenerateContextualResponse returns the response of the first matching rule.
func (s *Store) GenerateContextualResponse(sessionID, message string) (string, bool) {
	sess := s.lookup(sessionID)
	if sess == nil {
		return "", false
	}
	c := sess.snapshot()
	lower := strings.ToLower(message)

	for _, r := range s.rules {
		if c.LastUserIntent != r.Topic || !containsAny(lower, r.Triggers) {
			continue
		}
		if len(r.PriorReferences) > 0 && !referencesMention(c.References, r.PriorReferences) {
			continue
		}
		s.logger.Debug("memory: contextual rule matched", "session_id", sessionID, "rule", r.Name)
		return r.Response, true
	}
	return "", false
}

func referencesMention(refs []domain.ContextualReference, keywords []string) bool {
	for _, ref := range refs {
		if containsAny(strings.ToLower(ref.Value), keywords) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
