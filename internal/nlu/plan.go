package nlu

import "estate-assistant/internal/domain"

// ResponsePlan describes how a front end should follow up on an analysis.
type ResponsePlan struct {
	ResponseType     string            `json:"responseType"`
	SuggestedActions []string          `json:"suggestedActions"`
	ContextData      map[string]string `json:"contextData,omitempty"`
}

const defaultProjectName = "Evergreen Pure"

// Plan maps an analysis to a response type and suggested follow-up actions.
func Plan(a domain.Analysis) ResponsePlan {
	first := func(t domain.EntityType) string {
		e, _ := domain.FirstEntity(a.Entities, t)
		return e.Value
	}
	switch a.Intent {
	case domain.IntentProjectInfo:
		project := first(domain.EntityProjectName)
		if project == "" {
			project = defaultProjectName
		}
		return ResponsePlan{
			ResponseType:     "project_information",
			SuggestedActions: []string{"show_apartments", "schedule_visit", "get_pricing"},
			ContextData:      map[string]string{"projectName": project, "requestedInfo": "general"},
		}
	case domain.IntentPaymentPlans:
		return ResponsePlan{
			ResponseType:     "financing_information",
			SuggestedActions: []string{"show_payment_options", "calculate_mortgage", "contact_advisor"},
			ContextData:      compact(map[string]string{"budgetRange": first(domain.EntityBudgetRange)}),
		}
	case domain.IntentRegisterInterest:
		return ResponsePlan{
			ResponseType:     "lead_capture",
			SuggestedActions: []string{"collect_contact_info", "schedule_callback", "send_brochure"},
			ContextData: compact(map[string]string{
				"interestLevel": "high",
				"apartmentId":   first(domain.EntityApartmentID),
				"unitType":      first(domain.EntityUnitType),
			}),
		}
	case domain.IntentApartmentInquiry:
		return ResponsePlan{
			ResponseType:     "apartment_details",
			SuggestedActions: []string{"show_apartment_details", "compare_units", "schedule_visit"},
			ContextData: compact(map[string]string{
				"apartmentId": first(domain.EntityApartmentID),
				"unitType":    first(domain.EntityUnitType),
				"budgetRange": first(domain.EntityBudgetRange),
			}),
		}
	case domain.IntentGreeting:
		return ResponsePlan{
			ResponseType:     "greeting_response",
			SuggestedActions: []string{"show_welcome_options", "ask_preferences"},
		}
	default:
		return ResponsePlan{
			ResponseType:     "general_assistance",
			SuggestedActions: []string{"clarify_request", "show_options"},
		}
	}
}

func compact(m map[string]string) map[string]string {
	for k, v := range m {
		if v == "" {
			delete(m, k)
		}
	}
	return m
}
