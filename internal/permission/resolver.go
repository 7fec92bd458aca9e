package permission

import (
	"context"
	"errors"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoleSet is the capability view of one user inside one company. A user
// absent from the company (or a deactivated company) resolves to a zero
// RoleSet whose predicates all return false.
type RoleSet struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      string
	Member    bool
}

// CanSubmit reports whether the principal may submit expense reports.
// Tax processors are a back-office role and are barred from drafting.
func (r RoleSet) CanSubmit() bool {
	return r.Member && r.Role != model.RoleTaxProcessor
}

// CanApproveStep reports whether the principal holds an approval-eligible role.
func (r RoleSet) CanApproveStep() bool {
	switch r.Role {
	case model.RoleApprover, model.RoleFinancialApprover, model.RoleAdmin, model.RoleOwner:
		return r.Member
	}
	return false
}

// IsFinancialApprover reports whether the principal holds the role guaranteed
// to appear in every non-restricted approval chain.
func (r RoleSet) IsFinancialApprover() bool {
	return r.Member && r.Role == model.RoleFinancialApprover
}

// IsAdminTier covers company administration roles.
func (r RoleSet) IsAdminTier() bool {
	return r.Member && (r.Role == model.RoleAdmin || r.Role == model.RoleOwner)
}

// IsPayrollTier covers the roles allowed to submit salary-related (and
// therefore restricted) reports and to mark reports paid.
func (r RoleSet) IsPayrollTier() bool {
	return r.IsFinancialApprover() || r.IsAdminTier()
}

// CanManageTax reports whether the principal runs the post-payment tax sub-flow.
func (r RoleSet) CanManageTax() bool {
	return r.Member && r.Role == model.RoleTaxProcessor
}

// CanViewRestricted is true iff the principal is the drafter of the report or
// holds the tax-processing role. This governs both listing inclusion and
// detail redaction.
func (r RoleSet) CanViewRestricted(report *model.ExpenseReport) bool {
	if !r.Member {
		return false
	}
	return report.DrafterID == r.UserID || r.Role == model.RoleTaxProcessor
}

// CanDelete is true for the drafter and for admin-tier principals, and only
// matters while the report is in WAIT.
func (r RoleSet) CanDelete(report *model.ExpenseReport) bool {
	if !r.Member {
		return false
	}
	return report.DrafterID == r.UserID || r.IsAdminTier()
}

// Resolver resolves the capability set a user holds within a company.
type Resolver interface {
	Resolve(ctx context.Context, userID, companyID uuid.UUID) (RoleSet, error)
}

type resolver struct {
	memberships repository.MembershipRepository
	companies   repository.CompanyRepository
}

func NewResolver(memberships repository.MembershipRepository, companies repository.CompanyRepository) Resolver {
	return &resolver{memberships: memberships, companies: companies}
}

// Resolve looks the principal up in the given company only. Missing
// membership and deactivated company both yield "no access" rather than an
// error, so callers uniformly fail with PermissionDenied.
func (r *resolver) Resolve(ctx context.Context, userID, companyID uuid.UUID) (RoleSet, error) {
	none := RoleSet{UserID: userID, CompanyID: companyID}

	company, err := r.companies.FindByID(ctx, companyID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return none, nil
		}
		return none, fmt.Errorf("failed to resolve company: %w", err)
	}
	if !company.Active {
		return none, nil
	}

	m, err := r.memberships.FindApproved(ctx, companyID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return none, nil
		}
		return none, fmt.Errorf("failed to resolve membership: %w", err)
	}

	return RoleSet{
		UserID:    userID,
		CompanyID: companyID,
		Role:      m.Role,
		Member:    true,
	}, nil
}
