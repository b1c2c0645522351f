// Package access resolves a principal's permission set from their
// memberships. The action framework consumes the result and never derives
// permissions itself.
package access

import (
	"github.com/InteriMed/Medishift-sub005/internal/workforce"
)

// Permission tokens.
const (
	LeaveRequest   = "leave.request"
	LeaveApprove   = "leave.approve"
	LeaveView      = "leave.view"
	ShiftSwap      = "shift.swap"
	PayrollView    = "payroll.view"
	PayrollEdit    = "payroll.edit"
	PayrollLock    = "payroll.lock"
	PayrollApprove = "payroll.approve"
	PayrollExport  = "payroll.export"
	PayrollPublish = "payroll.publish"

	ContractCreate      = "contract.create"
	ContractView        = "contract.view"
	ContractViewComp    = "contract.view_compensation"
	ContractSign        = "contract.sign"
	ContractTerminate   = "contract.terminate"
	RiskBlockUser       = "risk.block_user"
	RiskReport          = "risk.report"
	OrgGovernance       = "org.governance"
	EducationLog        = "education.log"
	EducationView       = "education.view"
	EducationViewOthers = "education.view_others"
	TeamEdit            = "team.edit"
	TeamView            = "team.view"
	AdminAccess         = "admin.access"
)

var employee = []string{
	LeaveRequest, LeaveView, ShiftSwap,
	ContractView, ContractSign,
	EducationLog, EducationView,
	TeamView, RiskReport,
}

var manager = append(clone(employee),
	LeaveApprove, TeamEdit, PayrollView, EducationViewOthers,
)

var hr = append(clone(manager),
	ContractCreate, ContractTerminate, ContractViewComp, RiskBlockUser,
)

var payrollOfficer = append(clone(employee),
	PayrollView, PayrollEdit, PayrollLock, PayrollExport, PayrollPublish,
)

var fiduciary = []string{PayrollView, PayrollApprove, PayrollExport}

var orgAdmin = union(hr, payrollOfficer, fiduciary, []string{OrgGovernance})

var admin = append(clone(orgAdmin), AdminAccess)

// roleGrants is the role to permission table.
var roleGrants = map[workforce.Role][]string{
	workforce.RoleEmployee:       employee,
	workforce.RoleManager:        manager,
	workforce.RoleHR:             hr,
	workforce.RolePayrollOfficer: payrollOfficer,
	workforce.RoleFiduciary:      fiduciary,
	workforce.RoleOrgAdmin:       orgAdmin,
	workforce.RoleAdmin:          admin,
}

// Grants returns the permissions of role.
func Grants(role workforce.Role) []string {
	return clone(roleGrants[role])
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}

func union(sets ...[]string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, set := range sets {
		for _, p := range set {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}
