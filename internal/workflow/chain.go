package workflow

import (
	"context"
	"errors"
	"fmt"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/permission"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FinancialApproverFinder locates a fallback financial approver in a company.
type FinancialApproverFinder interface {
	FirstByRole(ctx context.Context, companyID uuid.UUID, role string) (*model.Membership, error)
}

// ChainResolver builds the ordered approval step list for a non-restricted
// report. Every chain it produces carries at least one financial approver.
type ChainResolver struct {
	resolver permission.Resolver
	finder   FinancialApproverFinder
}

func NewChainResolver(resolver permission.Resolver, finder FinancialApproverFinder) *ChainResolver {
	return &ChainResolver{resolver: resolver, finder: finder}
}

// Build validates the caller-supplied approver ids and appends a fallback
// financial-approver step when none was supplied. Positions are explicit and
// deterministic, starting at 1.
func (c *ChainResolver) Build(ctx context.Context, companyID uuid.UUID, approverIDs []uuid.UUID) ([]model.ApprovalStep, error) {
	steps := make([]model.ApprovalStep, 0, len(approverIDs)+1)
	hasFinancial := false
	seen := make(map[uuid.UUID]bool, len(approverIDs))

	for i, approverID := range approverIDs {
		if seen[approverID] {
			return nil, apperr.Newf(apperr.KindValidation, "approver %s appears more than once in the chain", approverID)
		}
		seen[approverID] = true

		rs, err := c.resolver.Resolve(ctx, approverID, companyID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve approver: %w", err)
		}
		if !rs.CanApproveStep() {
			return nil, apperr.Newf(apperr.KindValidation, "approver %s does not hold an approval-eligible role", approverID)
		}
		if rs.IsFinancialApprover() {
			hasFinancial = true
		}

		steps = append(steps, model.ApprovalStep{
			Position:   i + 1,
			ApproverID: approverID,
			Status:     model.StepStatusWait,
		})
	}

	if !hasFinancial {
		fallback, err := c.finder.FirstByRole(ctx, companyID, model.RoleFinancialApprover)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.Validation("company has no financial approver to complete the chain")
			}
			return nil, fmt.Errorf("failed to find financial approver: %w", err)
		}
		if seen[fallback.UserID] {
			// Supplied under a different role check earlier; should not happen
			// since role is single-valued, but guard against a duplicate step.
			return steps, nil
		}
		steps = append(steps, model.ApprovalStep{
			Position:   len(steps) + 1,
			ApproverID: fallback.UserID,
			Status:     model.StepStatusWait,
		})
	}

	return steps, nil
}

// NextStep prepares an appended step after all existing ones. Appending
// requires that work has already begun: at least one step must be approved.
func (c *ChainResolver) NextStep(ctx context.Context, companyID uuid.UUID, steps []model.ApprovalStep, newApproverID uuid.UUID) (*model.ApprovalStep, error) {
	approvedAny := false
	maxPosition := 0
	for _, step := range steps {
		if step.Status == model.StepStatusApproved {
			approvedAny = true
		}
		if step.Position > maxPosition {
			maxPosition = step.Position
		}
		if step.ApproverID == newApproverID {
			return nil, apperr.Validation("approver already present in the chain")
		}
	}
	if !approvedAny {
		return nil, apperr.Conflict("cannot append an approver before any step has been approved")
	}

	rs, err := c.resolver.Resolve(ctx, newApproverID, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve approver: %w", err)
	}
	if !rs.CanApproveStep() {
		return nil, apperr.Newf(apperr.KindValidation, "approver %s does not hold an approval-eligible role", newApproverID)
	}

	return &model.ApprovalStep{
		Position:   maxPosition + 1,
		ApproverID: newApproverID,
		Status:     model.StepStatusWait,
	}, nil
}
