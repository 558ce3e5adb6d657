package nlu

import (
	"regexp"
	"strconv"
	"strings"

	"estate-assistant/internal/domain"
)

// Normalized budget buckets.
const (
	BudgetUnder300k = "under_300k"
	Budget300to400k = "300k_400k"
	BudgetOver400k  = "over_400k"
	BudgetNone      = "no_budget"
)

// Normalized timeline buckets.
const (
	TimelineImmediately   = "immediately"
	TimelineWithin3Months = "within_3_months"
	TimelineWithinYear    = "within_year"
	TimelineJustLooking   = "just_looking"
)

var firstNumber = regexp.MustCompile(`(\d+(?:\.\d+)?)`)

// LeadQualification holds the qualification hints found in one message.
type LeadQualification struct {
	BudgetRange     string `json:"budgetRange,omitempty"`
	UnitType        string `json:"unitType,omitempty"`
	Timeline        string `json:"timeline,omitempty"`
	ProjectInterest string `json:"projectInterest,omitempty"`
}

func (q LeadQualification) IsZero() bool {
	return q == LeadQualification{}
}

// Preferences converts the hints into a partial profile update.
func (q LeadQualification) Preferences() domain.Preferences {
	return domain.Preferences{
		PriceRange:   q.BudgetRange,
		PropertyType: q.UnitType,
		Timeline:     q.Timeline,
	}
}

// ExtractLeadQualification picks the first budget, unit type, timeline and
// project entity and normalizes them.
func ExtractLeadQualification(entities []domain.Entity) LeadQualification {
	var q LeadQualification
	if e, ok := domain.FirstEntity(entities, domain.EntityBudgetRange); ok {
		q.BudgetRange = NormalizeBudgetRange(e.Value)
	}
	if e, ok := domain.FirstEntity(entities, domain.EntityUnitType); ok {
		q.UnitType = strings.ToUpper(e.Value)
	}
	if e, ok := domain.FirstEntity(entities, domain.EntityTimeline); ok {
		q.Timeline = NormalizeTimeline(e.Value)
	}
	if e, ok := domain.FirstEntity(entities, domain.EntityProjectName); ok {
		q.ProjectInterest = e.Value
	}
	return q
}

func NormalizeBudgetRange(budget string) string {
	s := strings.ToLower(budget)
	switch {
	case strings.Contains(s, "200"), strings.Contains(s, "300"):
		return BudgetUnder300k
	case strings.Contains(s, "400"):
		return Budget300to400k
	case strings.Contains(s, "500"):
		return BudgetOver400k
	}
	if m := firstNumber.FindString(s); m != "" && (strings.Contains(s, "k") || strings.Contains(s, "mil")) {
		n, err := strconv.ParseFloat(m, 64)
		if err == nil {
			switch {
			case n < 300:
				return BudgetUnder300k
			case n <= 400:
				return Budget300to400k
			default:
				return BudgetOver400k
			}
		}
	}
	return BudgetNone
}

func NormalizeTimeline(timeline string) string {
	s := strings.ToLower(timeline)
	switch {
	case containsAny(s, "imediatamente", "immediately", "agora"):
		return TimelineImmediately
	case containsAny(s, "brevemente", "soon", "breve"):
		return TimelineWithin3Months
	case containsAny(s, "este ano", "this year", "próximo", "next"):
		return TimelineWithinYear
	}
	return TimelineJustLooking
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
