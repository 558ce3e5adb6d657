package domain

import "time"

type QualificationStatus string

const (
	StatusUnqualified QualificationStatus = "unqualified"
	StatusQualifying  QualificationStatus = "qualifying"
	StatusQualified   QualificationStatus = "qualified"
	StatusHot         QualificationStatus = "hot"
)

// Preferences are the visitor's long-term search preferences. Empty fields are
// unknown.
type Preferences struct {
	PriceRange   string `json:"priceRange,omitempty"`
	PropertyType string `json:"propertyType,omitempty"`
	Location     string `json:"location,omitempty"`
	Bedrooms     int    `json:"bedrooms,omitempty"`
	Timeline     string `json:"timeline,omitempty"`
	Financing    string `json:"financing,omitempty"`
}

// Merge applies the non-empty fields of p over base.
func (base Preferences) Merge(p Preferences) Preferences {
	if p.PriceRange != "" {
		base.PriceRange = p.PriceRange
	}
	if p.PropertyType != "" {
		base.PropertyType = p.PropertyType
	}
	if p.Location != "" {
		base.Location = p.Location
	}
	if p.Bedrooms != 0 {
		base.Bedrooms = p.Bedrooms
	}
	if p.Timeline != "" {
		base.Timeline = p.Timeline
	}
	if p.Financing != "" {
		base.Financing = p.Financing
	}
	return base
}

// IsZero reports whether no preference is set.
func (p Preferences) IsZero() bool {
	return p == Preferences{}
}

type SearchEntry struct {
	Query     string    `json:"query"`
	Timestamp time.Time `json:"timestamp"`
	Results   []string  `json:"results,omitempty"`
}

type InteractionType string

const (
	InteractionView         InteractionType = "view"
	InteractionInquiry      InteractionType = "inquiry"
	InteractionFavorite     InteractionType = "favorite"
	InteractionVisitRequest InteractionType = "visit_request"
)

type PropertyInteraction struct {
	PropertyID      string            `json:"propertyId"`
	InteractionType InteractionType   `json:"interactionType"`
	Timestamp       time.Time         `json:"timestamp"`
	Details         map[string]string `json:"details,omitempty"`
}

type ConversationSummary struct {
	TotalInteractions   int                 `json:"totalInteractions"`
	CommonTopics        []string            `json:"commonTopics"`
	LastInteractionDate time.Time           `json:"lastInteractionDate"`
	LeadScore           int                 `json:"leadScore"`
	QualificationStatus QualificationStatus `json:"qualificationStatus"`
}

type PersonalInfo struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// UserProfile is the durable lead record of a visitor.
type UserProfile struct {
	VisitorID            string                `json:"visitorId"`
	Preferences          Preferences           `json:"preferences"`
	SearchHistory        []SearchEntry         `json:"searchHistory"`
	PropertyInteractions []PropertyInteraction `json:"propertyInteractions"`
	Summary              ConversationSummary   `json:"conversationSummary"`
	PersonalInfo         PersonalInfo          `json:"personalInfo"`
}

// NewUserProfile returns the default profile for a first-time visitor.
func NewUserProfile(visitorID string, now time.Time) UserProfile {
	return UserProfile{
		VisitorID:            visitorID,
		SearchHistory:        []SearchEntry{},
		PropertyInteractions: []PropertyInteraction{},
		Summary: ConversationSummary{
			CommonTopics:        []string{},
			LastInteractionDate: now,
			QualificationStatus: StatusUnqualified,
		},
	}
}
