package contracts

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/remote"
	"github.com/InteriMed/Medishift-sub005/internal/saga"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

// TerminationSaga is the saga kind of terminate_employment.
const TerminationSaga = "contracts.terminate"

const (
	stepLetter   = "letter"
	stepContract = "contract"
	stepShifts   = "shifts"
	stepBatch    = "batch"
)

var terminationSteps = []string{stepLetter, stepContract, stepShifts, stepBatch}

type terminationPayload struct {
	ContractID    id.ContractID  `json:"contractId"`
	Reason        string         `json:"reason"`
	EffectiveDate string         `json:"effectiveDate"`
	Actor         id.PrincipalID `json:"actor"`
}

type terminateInput struct {
	ContractID    string `json:"contractId"`
	Reason        string `json:"reason"`
	EffectiveDate string `json:"effectiveDate"`
}

type terminateResult struct {
	ContractID      string `json:"contractId"`
	Status          Status `json:"status"`
	IntentID        string `json:"intentId"`
	LetterURL       string `json:"letterUrl"`
	BatchJobID      string `json:"batchJobId"`
	CancelledShifts int    `json:"cancelledShifts"`
}

func (m *Module) terminateEmployment() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "contracts.terminate_employment",
		Permission:  access.ContractTerminate,
		Label:       "Terminate employment",
		Description: "End a contract, issue the termination letter and cancel future shifts at the facility",
		Keywords:    []string{"contract", "terminate", "dismiss", "offboarding"},
		Schema: schema.New(
			schema.String("contractId").Required().Len(1, 128),
			schema.String("reason").Required().Len(1, 1000),
			schema.String("effectiveDate").Date().Describe("defaults to today"),
		),
		Metadata: actions.Metadata{Risk: actions.RiskHigh},
	}, m.handleTerminate)
}

func (m *Module) handleTerminate(ctx context.Context, in terminateInput, ec *actions.ExecutionContext) (terminateResult, error) {
	c, err := m.loadContract(ctx, id.ContractID(in.ContractID))
	if err != nil {
		return terminateResult{}, err
	}
	if c.Status == StatusTerminated {
		return terminateResult{}, dErrors.Newf(dErrors.CodeBusinessRule, "contract %s is already terminated", c.ID)
	}
	effective := in.EffectiveDate
	if effective == "" {
		effective = workforce.Today(ec.Now).Format(workforce.DateLayout)
	}

	intent, err := m.sagas.Start(ctx, TerminationSaga, ec.Principal, terminationPayload{
		ContractID:    c.ID,
		Reason:        in.Reason,
		EffectiveDate: effective,
		Actor:         ec.Principal,
	}, terminationSteps)
	if !intent.ID.IsNil() {
		ec.Record("contract", c.ID.String(), "intentId", intent.ID.String(), "stepsDone", intent.Completed())
	}
	if err != nil {
		return terminateResult{}, err
	}

	done, err := m.loadContract(ctx, c.ID)
	if err != nil {
		return terminateResult{}, err
	}
	out := terminateResult{ContractID: done.ID.String(), Status: done.Status, IntentID: intent.ID.String()}
	if t := done.Termination; t != nil {
		out.LetterURL = t.LetterURL
		out.BatchJobID = t.BatchJobID
		out.CancelledShifts = t.CancelledShifts
		ec.Annotate("cancelledShifts", t.CancelledShifts, "effectiveDate", t.EffectiveDate)
	}
	return out, nil
}

// terminationStep runs one step. Each step checks the progress recorded on
// the contract first, so a resumed intent skips what already happened.
func (m *Module) terminationStep(ctx context.Context, intent saga.Intent, step string) error {
	var p terminationPayload
	if err := intent.Decode(&p); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "decode termination payload")
	}
	return m.locker.Do(ctx, contractKey(p.ContractID), func(ctx context.Context) error {
		c, err := m.loadContract(ctx, p.ContractID)
		if err != nil {
			return err
		}
		if c.Termination == nil {
			c.Termination = &Termination{Reason: p.Reason, EffectiveDate: p.EffectiveDate, TerminatedBy: p.Actor}
		}
		t := c.Termination

		switch step {
		case stepLetter:
			if t.LetterURL != "" {
				return nil
			}
			url, err := m.letter(ctx, intent, c)
			if err != nil {
				return err
			}
			t.LetterURL = url
		case stepContract:
			if c.Status == StatusTerminated {
				return nil
			}
			c.Status = StatusTerminated
			t.TerminatedAt = intent.UpdatedAt
		case stepShifts:
			n, err := m.cancelShifts(ctx, c, t.EffectiveDate)
			if err != nil {
				return err
			}
			t.CancelledShifts += n
		case stepBatch:
			if t.BatchJobID != "" {
				return nil
			}
			job, err := m.batch(ctx, intent, c)
			if err != nil {
				return err
			}
			t.BatchJobID = job
		default:
			return dErrors.Newf(dErrors.CodeInternal, "unknown termination step %s", step)
		}

		if _, err := m.store.SaveContract(ctx, c); err != nil {
			return workforce.Translate(err, "save contract")
		}
		return nil
	})
}

func (m *Module) letter(ctx context.Context, intent saga.Intent, c Contract) (string, error) {
	raw, err := m.remote.Call(ctx, remote.TerminationLetter, map[string]string{
		"idempotencyKey": intent.ID.String(),
		"contractId":     c.ID.String(),
		"userId":         c.Principal.String(),
		"facilityId":     c.Facility.String(),
		"reason":         c.Termination.Reason,
		"effectiveDate":  c.Termination.EffectiveDate,
	})
	if err != nil {
		return "", err
	}
	var doc renderResponse
	if err := json.Unmarshal(raw, &doc); err != nil || doc.DocumentURL == "" {
		return "", dErrors.New(dErrors.CodeUnavailable, "termination letter service returned no document")
	}
	return doc.DocumentURL, nil
}

func (m *Module) batch(ctx context.Context, intent saga.Intent, c Contract) (string, error) {
	raw, err := m.remote.Call(ctx, remote.TerminationBatch, map[string]string{
		"idempotencyKey": intent.ID.String(),
		"userId":         c.Principal.String(),
		"facilityId":     c.Facility.String(),
		"effectiveDate":  c.Termination.EffectiveDate,
	})
	if err != nil {
		return "", err
	}
	var job struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(raw, &job); err != nil || job.JobID == "" {
		return "", dErrors.New(dErrors.CodeUnavailable, "termination batch returned no job")
	}
	return job.JobID, nil
}

// cancelShifts cancels the principal's shifts at the contract's facility
// dated after the effective date. Shifts already cancelled or completed are
// left alone, which makes the step safe to repeat.
func (m *Module) cancelShifts(ctx context.Context, c Contract, effective string) (int, error) {
	cutoff, err := workforce.ParseDate(effective)
	if err != nil {
		return 0, err
	}
	shifts, err := m.workforce.ShiftsOf(ctx, c.Principal)
	if err != nil {
		return 0, workforce.Translate(err, "load shifts")
	}
	n := 0
	for _, s := range shifts {
		if s.Facility != c.Facility || s.Status == workforce.ShiftCancelled || s.Status == workforce.ShiftCompleted {
			continue
		}
		day, err := workforce.ParseDate(s.Date)
		if err != nil || !day.After(cutoff) {
			continue
		}
		s.Status = workforce.ShiftCancelled
		if _, err := m.workforce.SaveShift(ctx, s); err != nil {
			return n, workforce.Translate(err, fmt.Sprintf("cancel shift %s", s.ID))
		}
		n++
	}
	return n, nil
}
