package domain

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentProjectInfo      Intent = "project_info"
	IntentPaymentPlans     Intent = "payment_plans"
	IntentRegisterInterest Intent = "register_interest"
	IntentApartmentInquiry Intent = "apartment_inquiry"
	IntentGreeting         Intent = "greeting"
	IntentGeneralInquiry   Intent = "general_inquiry"
)

// Intents lists every intent in classification order. general_inquiry is the
// fallback and is never scored.
var Intents = []Intent{
	IntentProjectInfo,
	IntentPaymentPlans,
	IntentRegisterInterest,
	IntentApartmentInquiry,
	IntentGreeting,
}

func (i Intent) IsValid() bool {
	switch i {
	case IntentProjectInfo, IntentPaymentPlans, IntentRegisterInterest,
		IntentApartmentInquiry, IntentGreeting, IntentGeneralInquiry:
		return true
	}
	return false
}

// EntityType names a kind of structured value extracted from free text.
type EntityType string

const (
	EntityProjectName EntityType = "project_name"
	EntityApartmentID EntityType = "apartment_id"
	EntityUnitType    EntityType = "unit_type"
	EntityBudgetRange EntityType = "budget_range"
	EntityLocation    EntityType = "location"
	EntityTimeline    EntityType = "timeline"
)

// EntityTypes lists every entity type in extraction order.
var EntityTypes = []EntityType{
	EntityProjectName,
	EntityApartmentID,
	EntityUnitType,
	EntityBudgetRange,
	EntityLocation,
	EntityTimeline,
}

// Entity is a single extracted value. Start and End are byte offsets into the
// analyzed text.
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Start      int        `json:"start"`
	End        int        `json:"end"`
}

// Analysis is the NLU result for one message.
type Analysis struct {
	Intent       Intent   `json:"intent"`
	Confidence   float64  `json:"confidence"`
	Entities     []Entity `json:"entities"`
	OriginalText string   `json:"originalText"`
}

// FirstEntity returns the first entity of type t.
func FirstEntity(entities []Entity, t EntityType) (Entity, bool) {
	for _, e := range entities {
		if e.Type == t {
			return e, true
		}
	}
	return Entity{}, false
}
