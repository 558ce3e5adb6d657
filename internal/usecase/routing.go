package usecase

import (
	"strings"
	"unicode"

	"estate-assistant/internal/domain"
	"estate-assistant/internal/flow"
)

type trigger struct {
	flowID   string
	intents  []domain.Intent
	keywords []string
}

// triggers are checked in order; the first match wins. Keywords match whole
// words only, so "visitar" or "agendado" do not start a flow.
var triggers = []trigger{
	{
		flowID:   "lead_qualification",
		intents:  []domain.Intent{domain.IntentRegisterInterest},
		keywords: []string{"registar interesse", "register interest", "quero comprar", "want to buy"},
	},
	{
		flowID:   "visit_scheduling",
		keywords: []string{"agendar", "marcar visita", "marcar uma visita", "schedule a visit", "book a visit"},
	},
	{
		flowID:   "property_search",
		keywords: []string{"procuro", "search"},
	},
}

func matchTrigger(a domain.Analysis, message string) (string, bool) {
	words := " " + strings.Join(strings.FieldsFunc(strings.ToLower(message), notWordRune), " ") + " "
	for _, t := range triggers {
		for _, in := range t.intents {
			if a.Intent == in {
				return t.flowID, true
			}
		}
		for _, kw := range t.keywords {
			if strings.Contains(words, " "+kw+" ") {
				return t.flowID, true
			}
		}
	}
	return "", false
}

func notWordRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

var interrogatives = map[string]bool{
	"qual": true, "quais": true, "quanto": true, "quanta": true, "quantos": true, "quantas": true,
	"quando": true, "onde": true, "como": true, "porque": true, "porquê": true, "quem": true,
	"what": true, "which": true, "how": true, "where": true, "when": true, "why": true, "who": true,
}

// DefaultRelevance treats a message as an answer when it names one of the
// step's options or is not phrased as a question.
func DefaultRelevance(message string, step flow.StepPrompt) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, opt := range step.Options {
		o := strings.ToLower(strings.TrimSpace(opt))
		if o != "" && (lower == o || strings.Contains(lower, o)) {
			return true
		}
	}
	if strings.Contains(lower, "?") {
		return false
	}
	fields := strings.Fields(lower)
	if len(fields) == 0 {
		return true
	}
	if fields[0] == "o" && len(fields) > 1 && fields[1] == "que" {
		return false
	}
	return !interrogatives[strings.Trim(fields[0], ",.!")]
}
