// Package education tracks continuing-education credits against the annual
// requirement each professional must meet.
package education

import (
	"time"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

// Credit is one completed course.
type Credit struct {
	ID          id.EntryID
	Principal   id.PrincipalID
	CourseName  string
	Credits     float64
	CompletedOn string
	Provider    string
	LoggedBy    id.PrincipalID
	LoggedAt    time.Time
}

// Status is a principal's standing over the trailing period.
type Status struct {
	UserID      string  `json:"userId"`
	PeriodStart string  `json:"periodStart"`
	PeriodEnd   string  `json:"periodEnd"`
	Earned      float64 `json:"earned"`
	Required    int     `json:"required"`
	Remaining   float64 `json:"remaining"`
	Compliant   bool    `json:"compliant"`
	Courses     int     `json:"courses"`
}
