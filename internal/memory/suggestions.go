package memory

import (
	"strings"

	"estate-assistant/internal/domain"
	"estate-assistant/internal/nlu"
)

const (
	suggestionWindow = 5
	maxSuggestions   = 4
)

// GetContextualSuggestions derives follow-up suggestions from the last few
// references of the session and the visitor's cached preferences.
func (s *Store) GetContextualSuggestions(sessionID, visitorID string) []string {
	sess := s.lookup(sessionID)
	if sess == nil {
		return []string{}
	}
	sess.mu.Lock()
	recent := sess.references.Last(suggestionWindow)
	sess.mu.Unlock()

	var suggestions []string
	for _, ref := range recent {
		if strings.Contains(strings.ToLower(ref.Value), "park") {
			suggestions = append(suggestions, "🏊 Tem piscina?", "🌳 Que outras comodidades tem na área?")
			break
		}
	}
	for _, ref := range recent {
		if ref.Type == domain.ReferenceProperty {
			suggestions = append(suggestions, "📅 Agendar visita", "💰 Informações sobre preço", "🏠 Ver propriedades similares")
			break
		}
	}

	s.profileMu.Lock()
	p, ok := s.profiles[visitorID]
	immediate := ok && p.Preferences.Timeline == nlu.TimelineImmediately
	s.profileMu.Unlock()
	if immediate {
		suggestions = append(suggestions, "🚀 Propriedades disponíveis imediatamente")
	}

	if len(suggestions) > maxSuggestions {
		suggestions = suggestions[:maxSuggestions]
	}
	if suggestions == nil {
		return []string{}
	}
	return suggestions
}
