package contracts

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/InteriMed/Medishift-sub005/internal/access"
	"github.com/InteriMed/Medishift-sub005/internal/actions"
	"github.com/InteriMed/Medishift-sub005/internal/actions/schema"
	"github.com/InteriMed/Medishift-sub005/internal/remote"
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
	id "github.com/InteriMed/Medishift-sub005/pkg/domain"
	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

var roles = []string{
	string(workforce.RoleEmployee), string(workforce.RoleManager), string(workforce.RoleHR),
	string(workforce.RolePayrollOfficer), string(workforce.RoleFiduciary),
	string(workforce.RoleOrgAdmin), string(workforce.RoleAdmin),
}

func contractKey(c id.ContractID) string {
	return "contract:" + c.String()
}

func (m *Module) loadContract(ctx context.Context, contract id.ContractID) (Contract, error) {
	c, err := m.store.Contract(ctx, contract)
	if err != nil {
		return Contract{}, workforce.Translate(err, "contract not found")
	}
	return c, nil
}

// -----------------------------------------------------------------------------
// Create
// -----------------------------------------------------------------------------

type createInput struct {
	UserID        string   `json:"userId"`
	FacilityID    string   `json:"facilityId"`
	Role          string   `json:"role"`
	StartDate     string   `json:"startDate"`
	EndDate       string   `json:"endDate"`
	WeeklyHours   int      `json:"weeklyHours"`
	HourlyRate    *float64 `json:"hourlyRate"`
	MonthlySalary *float64 `json:"monthlySalary"`
	ManagerID     string   `json:"managerId"`
}

type renderRequest struct {
	ContractID string `json:"contractId"`
	Contract   View   `json:"contract"`
	Employee   string `json:"employeeName"`
}

type renderResponse struct {
	DocumentURL string `json:"documentUrl"`
}

func (m *Module) createContract() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "contracts.create_contract",
		Permission:  access.ContractCreate,
		Label:       "Create contract",
		Description: "Draft an employment contract and render its PDF",
		Keywords:    []string{"contract", "hire", "employment"},
		Schema: schema.New(
			schema.String("userId").Required().Len(1, 128),
			schema.String("facilityId").Required().Len(1, 128),
			schema.String("role").Required().Enum(roles...),
			schema.String("startDate").Required().Date(),
			schema.String("endDate").Date(),
			schema.Integer("weeklyHours").Required().Range(1, 50),
			schema.Number("hourlyRate").Range(0, 10000),
			schema.Number("monthlySalary").Range(0, 1000000),
			schema.String("managerId").Len(1, 128),
		).With(
			schema.DateNotBefore("startDate", "endDate"),
			schema.AtLeastOne("hourlyRate", "monthlySalary"),
		),
		Metadata: actions.Metadata{Risk: actions.RiskHigh},
	}, m.handleCreate)
}

// handleCreate renders the PDF before writing anything, so a remote failure
// leaves no half-created contract behind.
func (m *Module) handleCreate(ctx context.Context, in createInput, ec *actions.ExecutionContext) (View, error) {
	employee, err := m.workforce.Principal(ctx, id.PrincipalID(in.UserID))
	if err != nil {
		return View{}, workforce.Translate(err, "employee not found")
	}
	if employee.Status == workforce.StatusTerminated {
		return View{}, dErrors.Newf(dErrors.CodeBusinessRule, "employee %s is terminated", employee.ID)
	}
	facility, err := access.TargetFacility(ctx, m.workforce, ec, in.FacilityID)
	if err != nil {
		return View{}, err
	}

	c := Contract{
		ID:            id.ContractID(uuid.NewString()),
		Principal:     employee.ID,
		Facility:      facility.ID,
		Role:          workforce.Role(in.Role),
		Manager:       id.PrincipalID(in.ManagerID),
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		WeeklyHours:   in.WeeklyHours,
		HourlyRate:    in.HourlyRate,
		MonthlySalary: in.MonthlySalary,
		Status:        StatusDraft,
		CreatedBy:     ec.Principal,
		CreatedAt:     ec.Now,
	}
	raw, err := m.remote.Call(ctx, remote.RenderContractPDF, renderRequest{
		ContractID: c.ID.String(),
		Contract:   viewOf(c, true),
		Employee:   employee.DisplayName(),
	})
	if err != nil {
		return View{}, err
	}
	var doc renderResponse
	if err := json.Unmarshal(raw, &doc); err != nil || doc.DocumentURL == "" {
		return View{}, dErrors.New(dErrors.CodeUnavailable, "contract renderer returned no document")
	}
	c.DocumentURL = doc.DocumentURL

	saved, err := m.store.SaveContract(ctx, c)
	if err != nil {
		return View{}, workforce.Translate(err, "save contract")
	}
	ec.Record("contract", saved.ID.String(),
		"userId", saved.Principal.String(),
		"facilityId", saved.Facility.String(),
		"role", string(saved.Role),
	)
	return viewOf(saved, true), nil
}

// -----------------------------------------------------------------------------
// Read
// -----------------------------------------------------------------------------

type getInput struct {
	ContractID string `json:"contractId"`
}

var (
	isSelf = actions.NewPredicate("isSelf", func(ec *actions.ExecutionContext, c Contract) bool {
		return c.Principal == ec.Principal
	})
	isElevated = actions.HasPermission[Contract]("isElevated", access.ContractViewComp, access.AdminAccess)
	isManager  = actions.NewPredicate("isManager", func(ec *actions.ExecutionContext, c Contract) bool {
		return !c.Manager.IsZero() && c.Manager == ec.Principal
	})
)

func (m *Module) getContract() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "contracts.get_contract",
		Permission:  access.ContractView,
		Label:       "View contract",
		Description: "Show a contract; compensation is visible to HR and administrators only",
		Keywords:    []string{"contract", "salary", "employment"},
		Schema: schema.New(
			schema.String("contractId").Required().Len(1, 128),
		),
		Metadata: actions.Metadata{Risk: actions.RiskLow, AutoSurface: true},
	}, m.handleGet)
}

func (m *Module) handleGet(ctx context.Context, in getInput, ec *actions.ExecutionContext) (View, error) {
	c, err := m.loadContract(ctx, id.ContractID(in.ContractID))
	if err != nil {
		return View{}, err
	}
	if err := actions.Require(ec, c, actions.AnyOf(isSelf, isElevated, isManager)); err != nil {
		return View{}, err
	}
	// Compensation is for elevated viewers; the subject and the manager get
	// the redacted view.
	withCompensation := actions.Holds(ec, c, isElevated)[isElevated.Name]
	ec.Record("contract", c.ID.String(), "redacted", !withCompensation)
	return viewOf(c, withCompensation), nil
}

// -----------------------------------------------------------------------------
// Sign
// -----------------------------------------------------------------------------

func (m *Module) signContract() actions.Definition {
	return actions.Define(actions.Spec{
		ID:          "contracts.sign_contract",
		Permission:  access.ContractSign,
		Label:       "Sign contract",
		Description: "Sign your own draft contract",
		Keywords:    []string{"contract", "sign"},
		Schema: schema.New(
			schema.String("contractId").Required().Len(1, 128),
		),
		Metadata: actions.Metadata{Risk: actions.RiskMedium},
	}, m.handleSign)
}

func (m *Module) handleSign(ctx context.Context, in getInput, ec *actions.ExecutionContext) (View, error) {
	contractID := id.ContractID(in.ContractID)
	var out View
	err := m.locker.Do(ctx, contractKey(contractID), func(ctx context.Context) error {
		c, err := m.loadContract(ctx, contractID)
		if err != nil {
			return err
		}
		if err := actions.Require(ec, c, isSelf); err != nil {
			return err
		}
		if c.Status != StatusDraft {
			return dErrors.Newf(dErrors.CodeBusinessRule, "contract is %s, only DRAFT contracts can be signed", c.Status)
		}
		c.Status = StatusSigned
		c.SignedAt = ec.Now
		saved, err := m.store.SaveContract(ctx, c)
		if err != nil {
			return workforce.Translate(err, "save contract")
		}
		ec.Record("contract", saved.ID.String(), "status", string(saved.Status))
		out = viewOf(saved, actions.Holds(ec, saved, isElevated)[isElevated.Name])
		return nil
	})
	return out, err
}
