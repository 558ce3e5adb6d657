package usecase

import (
	"fmt"
	"strings"

	"estate-assistant/internal/domain"
)

const defaultPersona = "És o Viriato, assistente imobiliário da Viriato. Ajudas visitantes a conhecer o empreendimento Evergreen Pure e as suas unidades."

type promptContext struct {
	persona     string
	documents   []string
	analysis    domain.Analysis
	preferences domain.Preferences
}

func buildSystemPrompt(ctx promptContext) string {
	sections := []string{
		strings.TrimSpace(ctx.persona),
		"",
		"Behavior Rules:",
		behaviorRules(),
		"",
		"Relevant Documents:",
		documentsSection(ctx.documents),
		"",
		fmt.Sprintf("User Intent: %s", ctx.analysis.Intent),
		"Extracted Entities: " + entitiesSection(ctx.analysis.Entities),
	}
	if prefs := preferencesSection(ctx.preferences); prefs != "" {
		sections = append(sections, "Known Preferences: "+prefs)
	}
	return strings.Join(sections, "\n")
}

func behaviorRules() string {
	return strings.Join([]string{
		"1) Responde sempre em português de Portugal.",
		"2) Sê profissional, simpático e conciso.",
		"3) Usa apenas os documentos fornecidos e o histórico da conversa.",
		"4) Quando falares de uma unidade específica, concentra a resposta nessa unidade.",
		"5) Sugere agendar uma visita quando fizer sentido.",
		"6) Se a resposta não estiver nos documentos, responde apenas com \"" + leadFormToken + "\".",
	}, "\n")
}

func documentsSection(docs []string) string {
	if len(docs) == 0 {
		return "(nenhum)"
	}
	lines := make([]string, 0, len(docs))
	for i, d := range docs {
		lines = append(lines, fmt.Sprintf("[%d] %s", i+1, normalizePromptInput(d)))
	}
	return strings.Join(lines, "\n")
}

func entitiesSection(entities []domain.Entity) string {
	if len(entities) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(entities))
	for _, e := range entities {
		parts = append(parts, fmt.Sprintf("%s=%s", e.Type, e.Value))
	}
	return strings.Join(parts, ", ")
}

func preferencesSection(p domain.Preferences) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("priceRange", p.PriceRange)
	add("propertyType", p.PropertyType)
	add("location", p.Location)
	if p.Bedrooms > 0 {
		add("bedrooms", fmt.Sprint(p.Bedrooms))
	}
	add("timeline", p.Timeline)
	add("financing", p.Financing)
	return strings.Join(parts, ", ")
}

// conversationTurns maps the last n remembered turns to chat messages. The
// result always starts with a user turn.
func conversationTurns(history []domain.Turn, n int) []domain.ChatMessage {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	out := make([]domain.ChatMessage, 0, len(history))
	for _, t := range history {
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		role := "user"
		if t.Sender == domain.SenderBot {
			role = "assistant"
		}
		if len(out) == 0 && role != "user" {
			continue
		}
		out = append(out, domain.ChatMessage{Role: role, Content: text})
	}
	return out
}

func normalizePromptInput(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
