// Package nlu classifies chat messages into intents and extracts entities
// using keyword and regular expression tables.
package nlu

import (
	"regexp"
	"slices"
	"strings"

	"estate-assistant/internal/domain"
)

const (
	entityConfidence  = 0.8
	defaultConfidence = 0.3
	keywordWeight     = 0.6
	patternWeight     = 0.4
	entityBoost       = 0.2
)

type compiledIntent struct {
	intent   domain.Intent
	keywords []string
	patterns []*regexp.Regexp
	boosts   []domain.EntityType
}

type compiledEntity struct {
	entity   domain.EntityType
	patterns []*regexp.Regexp
}

// Analyzer is safe for concurrent use. All patterns are compiled by New.
type Analyzer struct {
	intents  []compiledIntent
	entities []compiledEntity
}

func New() *Analyzer {
	a := &Analyzer{}
	for _, r := range intentRules {
		ci := compiledIntent{intent: r.intent, boosts: r.boosts}
		for _, k := range r.keywords {
			ci.keywords = append(ci.keywords, strings.ToLower(k))
		}
		for _, p := range r.patterns {
			ci.patterns = append(ci.patterns, regexp.MustCompile(`(?i)`+p))
		}
		a.intents = append(a.intents, ci)
	}
	for _, r := range entityRules {
		ce := compiledEntity{entity: r.entity}
		for _, p := range r.patterns {
			ce.patterns = append(ce.patterns, regexp.MustCompile(`(?i)`+p))
		}
		a.entities = append(a.entities, ce)
	}
	return a
}

// Analyze extracts entities from text and classifies its intent. The returned
// entities are limited to the types relevant to the winning intent.
func (a *Analyzer) Analyze(text string) domain.Analysis {
	entities := a.ExtractEntities(text)
	intent, confidence := a.classify(strings.ToLower(strings.TrimSpace(text)), entities)
	return domain.Analysis{
		Intent:       intent,
		Confidence:   confidence,
		Entities:     filterRelevant(intent, entities),
		OriginalText: text,
	}
}

// ExtractEntities returns every match of every entity pattern, in table order.
func (a *Analyzer) ExtractEntities(text string) []domain.Entity {
	entities := []domain.Entity{}
	for _, ce := range a.entities {
		for _, re := range ce.patterns {
			for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
				value := text[m[0]:m[1]]
				if len(m) >= 4 && m[2] >= 0 && m[3] > m[2] {
					value = text[m[2]:m[3]]
				}
				entities = append(entities, domain.Entity{
					Type:       ce.entity,
					Value:      strings.TrimSpace(value),
					Confidence: entityConfidence,
					Start:      m[0],
					End:        m[1],
				})
			}
		}
	}
	return entities
}

func (a *Analyzer) classify(text string, entities []domain.Entity) (domain.Intent, float64) {
	best, bestScore := domain.IntentGeneralInquiry, defaultConfidence
	for _, ci := range a.intents {
		if score := ci.score(text, entities); score > bestScore {
			best, bestScore = ci.intent, score
		}
	}
	return best, bestScore
}

func (ci compiledIntent) score(text string, entities []domain.Entity) float64 {
	var score float64
	keywordHits := 0
	for _, k := range ci.keywords {
		if strings.Contains(text, k) {
			keywordHits++
		}
	}
	if keywordHits > 0 {
		score += float64(keywordHits) / float64(len(ci.keywords)) * keywordWeight
	}
	patternHits := 0
	for _, re := range ci.patterns {
		if re.MatchString(text) {
			patternHits++
		}
	}
	if patternHits > 0 {
		score += float64(patternHits) / float64(len(ci.patterns)) * patternWeight
	}
	for _, e := range entities {
		if slices.Contains(ci.boosts, e.Type) {
			score += entityBoost
			break
		}
	}
	return score
}

func filterRelevant(intent domain.Intent, entities []domain.Entity) []domain.Entity {
	relevant := relevantEntities[intent]
	out := make([]domain.Entity, 0, len(entities))
	for _, e := range entities {
		if slices.Contains(relevant, e.Type) {
			out = append(out, e)
		}
	}
	return out
}
