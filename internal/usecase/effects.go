package usecase

import (
	"context"
	"strings"

	"estate-assistant/internal/domain"
	"estate-assistant/internal/flow"
	"estate-assistant/internal/leadscore"
	"estate-assistant/internal/metrics"
	"estate-assistant/internal/nlu"
)

const (
	seedPropertyID    = "property_id"
	defaultPropertyID = "evergreen-pure"
)

// applyCompletion stores what a finished flow collected. It returns the lead
// created by lead qualification.
func (s *ChatService) applyCompletion(ctx context.Context, sessionID, visitorID string, res *flow.StepResult, seed map[string]string) *domain.Lead {
	data := res.Data
	switch res.FlowType {
	case flow.PropertySearch().ID:
		s.mem.UpdateUserPreferences(ctx, visitorID, domain.Preferences{
			PriceRange:   data["budget"],
			PropertyType: data["property_type"],
			Timeline:     timelineFromAnswer(data["timeline"]),
		})
		s.mem.AddSearch(ctx, visitorID, searchQuery(data), nil)

	case flow.LeadQualification().ID:
		lead := s.scorer.Process(sessionID, visitorID, data)
		s.mem.UpdateLeadStatus(ctx, visitorID, lead.Qualification.Total, lead.Qualification.Status())
		s.mem.UpdatePersonalInfo(ctx, visitorID, personalInfo(lead.Contact))
		if s.leads != nil {
			if err := s.leads.SaveLead(ctx, lead); err != nil {
				s.logger.Error("usecase: save lead failed", "session_id", sessionID, "lead_id", lead.ID, "err", err)
			}
		}
		metrics.Inc(metrics.LeadsCaptured)
		s.logger.Info("usecase: lead captured", "session_id", sessionID, "lead_id", lead.ID,
			"grade", lead.Qualification.Grade, "score", lead.Qualification.Total)
		return &lead

	case flow.VisitScheduling().ID:
		contact := leadscore.ParseContact(data["contact_info"], data["phone_number"])
		s.mem.UpdatePersonalInfo(ctx, visitorID, personalInfo(contact))
		property := seed[seedPropertyID]
		if property == "" {
			property = defaultPropertyID
		}
		s.mem.AddPropertyInteraction(ctx, visitorID, domain.PropertyInteraction{
			PropertyID:      property,
			InteractionType: domain.InteractionVisitRequest,
			Details: map[string]string{
				"visitType":     data["visit_type"],
				"preferredDate": data["preferred_date"],
				"preferredTime": data["preferred_time"],
			},
		})
	}
	return nil
}

// timelineFromAnswer maps the property search timeline options to the
// normalized timeline buckets.
func timelineFromAnswer(answer string) string {
	lower := strings.ToLower(answer)
	switch {
	case lower == "":
		return ""
	case strings.Contains(lower, "imediat"):
		return nlu.TimelineImmediately
	case strings.Contains(lower, "3 meses"):
		return nlu.TimelineWithin3Months
	case strings.Contains(lower, "6 meses"):
		return nlu.TimelineWithinYear
	default:
		return nlu.TimelineJustLooking
	}
}

func searchQuery(data map[string]string) string {
	var parts []string
	for _, k := range []string{"budget", "property_type", "timeline"} {
		if v := strings.TrimSpace(data[k]); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " | ")
}

func personalInfo(c domain.Contact) domain.PersonalInfo {
	info := domain.PersonalInfo{Email: c.Email, Phone: c.Phone}
	if c.Name != leadscore.Unnamed {
		info.Name = c.Name
	}
	return info
}
