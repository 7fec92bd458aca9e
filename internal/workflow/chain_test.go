package workflow

import (
	"context"
	"testing"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/permission"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeResolver maps user ids to roles within a single test company.
type fakeResolver struct {
	roles map[uuid.UUID]string
}

func (f *fakeResolver) Resolve(_ context.Context, userID, companyID uuid.UUID) (permission.RoleSet, error) {
	role, ok := f.roles[userID]
	if !ok {
		return permission.RoleSet{UserID: userID, CompanyID: companyID}, nil
	}
	return permission.RoleSet{UserID: userID, CompanyID: companyID, Role: role, Member: true}, nil
}

type fakeFinder struct {
	member *model.Membership
}

func (f *fakeFinder) FirstByRole(context.Context, uuid.UUID, string) (*model.Membership, error) {
	if f.member == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return f.member, nil
}

func TestChainBuildAppendsFallbackFinancialApprover(t *testing.T) {
	companyID := uuid.New()
	approver := uuid.New()
	financial := uuid.New()

	chain := NewChainResolver(
		&fakeResolver{roles: map[uuid.UUID]string{approver: model.RoleApprover, financial: model.RoleFinancialApprover}},
		&fakeFinder{member: &model.Membership{UserID: financial, CompanyID: companyID, Role: model.RoleFinancialApprover}},
	)

	steps, err := chain.Build(context.Background(), companyID, []uuid.UUID{approver})
	require.NoError(t, err)
	require.Len(t, steps, 2)

	assert.Equal(t, 1, steps[0].Position)
	assert.Equal(t, approver, steps[0].ApproverID)
	assert.Equal(t, 2, steps[1].Position)
	assert.Equal(t, financial, steps[1].ApproverID)
	for _, step := range steps {
		assert.Equal(t, model.StepStatusWait, step.Status)
	}
}

func TestChainBuildKeepsSuppliedFinancialApprover(t *testing.T) {
	companyID := uuid.New()
	financial := uuid.New()

	chain := NewChainResolver(
		&fakeResolver{roles: map[uuid.UUID]string{financial: model.RoleFinancialApprover}},
		&fakeFinder{}, // would fail if consulted
	)

	steps, err := chain.Build(context.Background(), companyID, []uuid.UUID{financial})
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, financial, steps[0].ApproverID)
}

func TestChainBuildEmptyChainGetsFinancialApproverOnly(t *testing.T) {
	companyID := uuid.New()
	financial := uuid.New()

	chain := NewChainResolver(
		&fakeResolver{roles: map[uuid.UUID]string{financial: model.RoleFinancialApprover}},
		&fakeFinder{member: &model.Membership{UserID: financial, CompanyID: companyID, Role: model.RoleFinancialApprover}},
	)

	steps, err := chain.Build(context.Background(), companyID, nil)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, 1, steps[0].Position)
	assert.Equal(t, financial, steps[0].ApproverID)
}

func TestChainBuildRejectsIneligibleApprover(t *testing.T) {
	employee := uuid.New()

	chain := NewChainResolver(
		&fakeResolver{roles: map[uuid.UUID]string{employee: model.RoleEmployee}},
		&fakeFinder{},
	)

	_, err := chain.Build(context.Background(), uuid.New(), []uuid.UUID{employee})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestChainBuildRejectsDuplicateApprover(t *testing.T) {
	approver := uuid.New()

	chain := NewChainResolver(
		&fakeResolver{roles: map[uuid.UUID]string{approver: model.RoleApprover}},
		&fakeFinder{},
	)

	_, err := chain.Build(context.Background(), uuid.New(), []uuid.UUID{approver, approver})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestChainBuildFailsWithoutAnyFinancialApprover(t *testing.T) {
	approver := uuid.New()

	chain := NewChainResolver(
		&fakeResolver{roles: map[uuid.UUID]string{approver: model.RoleApprover}},
		&fakeFinder{}, // nobody holds the role
	)

	_, err := chain.Build(context.Background(), uuid.New(), []uuid.UUID{approver})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "no financial approver")
}

func TestChainNextStepRequiresAnApprovedStep(t *testing.T) {
	newApprover := uuid.New()

	chain := NewChainResolver(
		&fakeResolver{roles: map[uuid.UUID]string{newApprover: model.RoleApprover}},
		&fakeFinder{},
	)

	steps := []model.ApprovalStep{
		{Position: 1, ApproverID: uuid.New(), Status: model.StepStatusWait},
	}
	_, err := chain.NextStep(context.Background(), uuid.New(), steps, newApprover)
	require.Error(t, err)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestChainNextStepAppendsAfterMaxPosition(t *testing.T) {
	newApprover := uuid.New()

	chain := NewChainResolver(
		&fakeResolver{roles: map[uuid.UUID]string{newApprover: model.RoleApprover}},
		&fakeFinder{},
	)

	steps := []model.ApprovalStep{
		{Position: 1, ApproverID: uuid.New(), Status: model.StepStatusApproved},
		{Position: 2, ApproverID: uuid.New(), Status: model.StepStatusWait},
	}
	step, err := chain.NextStep(context.Background(), uuid.New(), steps, newApprover)
	require.NoError(t, err)
	assert.Equal(t, 3, step.Position)
	assert.Equal(t, newApprover, step.ApproverID)
	assert.Equal(t, model.StepStatusWait, step.Status)
}

func TestChainNextStepRejectsExistingApprover(t *testing.T) {
	existing := uuid.New()

	chain := NewChainResolver(
		&fakeResolver{roles: map[uuid.UUID]string{existing: model.RoleApprover}},
		&fakeFinder{},
	)

	steps := []model.ApprovalStep{
		{Position: 1, ApproverID: existing, Status: model.StepStatusApproved},
	}
	_, err := chain.NextStep(context.Background(), uuid.New(), steps, existing)
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
