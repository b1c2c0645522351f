// Package saga runs multi-step fan-outs that cannot be one transaction.
//
// An intent record is persisted before any effect. Each step is keyed by
// the intent id and must be idempotent for it, so a step that ran but was
// not marked done can safely run again on resume. A failed run leaves the
// intent pending at the failing step; Resume continues from the first step
// not yet done and Compensate undoes done steps in reverse order.
package saga

import (
	"encoding/json"
	"slices"
	"time"

	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusDone        Status = "done"
	StatusCompensated Status = "compensated"
)

type StepStatus string

const (
	StepPending     StepStatus = "pending"
	StepDone        StepStatus = "done"
	StepCompensated StepStatus = "compensated"
)

// Step is one persisted unit of an intent.
type Step struct {
	Key    string
	Status StepStatus
}

// Intent is the durable record of one saga run.
type Intent struct {
	ID         id.IntentID
	Kind       string
	Actor      id.PrincipalID
	Payload    json.RawMessage
	Steps      []Step
	Status     Status
	Attempts   int
	FailedStep string
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Decode unmarshals the payload into v.
func (i Intent) Decode(v any) error {
	return json.Unmarshal(i.Payload, v)
}

// Done reports whether step key has completed.
func (i Intent) Done(key string) bool {
	for _, s := range i.Steps {
		if s.Key == key {
			return s.Status == StepDone
		}
	}
	return false
}

// Completed counts done steps.
func (i Intent) Completed() int {
	n := 0
	for _, s := range i.Steps {
		if s.Status == StepDone {
			n++
		}
	}
	return n
}

func (i Intent) clone() Intent {
	i.Steps = slices.Clone(i.Steps)
	i.Payload = slices.Clone(i.Payload)
	return i
}

func (i *Intent) setStep(key string, status StepStatus) {
	for n := range i.Steps {
		if i.Steps[n].Key == key {
			i.Steps[n].Status = status
			return
		}
	}
}
