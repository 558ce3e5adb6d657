package domain

import "time"

type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Qualification is a BANT score, each dimension worth up to 25 points.
type Qualification struct {
	Budget    int      `json:"budget"`
	Authority int      `json:"authority"`
	Need      int      `json:"need"`
	Timeline  int      `json:"timeline"`
	Total     int      `json:"total"`
	Grade     Grade    `json:"grade"`
	Priority  Priority `json:"priority"`
}

// Status maps a grade to the profile qualification status.
func (q Qualification) Status() QualificationStatus {
	switch q.Grade {
	case GradeA:
		return StatusHot
	case GradeB:
		return StatusQualified
	case GradeC:
		return StatusQualifying
	default:
		return StatusUnqualified
	}
}

type Contact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Lead is a qualified visitor handed to the sales team.
type Lead struct {
	ID            string            `json:"id"`
	SessionID     string            `json:"sessionId"`
	VisitorID     string            `json:"visitorId"`
	Contact       Contact           `json:"contact"`
	Qualification Qualification     `json:"qualification"`
	AssignedAgent string            `json:"assignedAgent,omitempty"`
	Status        string            `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	NextFollowUp  time.Time         `json:"nextFollowUp"`
	Answers       map[string]string `json:"answers"`
}
