package permission

import (
	"context"
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeCompanies struct {
	companies map[uuid.UUID]*model.Company
}

func (f *fakeCompanies) Create(context.Context, *model.Company) error { return nil }
func (f *fakeCompanies) Save(context.Context, *model.Company) error   { return nil }
func (f *fakeCompanies) FindByName(context.Context, string) (*model.Company, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeCompanies) FindByID(_ context.Context, id uuid.UUID) (*model.Company, error) {
	if c, ok := f.companies[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeMemberships struct {
	memberships []model.Membership
}

func (f *fakeMemberships) Create(context.Context, *model.Membership) error { return nil }
func (f *fakeMemberships) Save(context.Context, *model.Membership) error   { return nil }
func (f *fakeMemberships) FindByID(context.Context, uuid.UUID) (*model.Membership, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeMemberships) FindApproved(_ context.Context, companyID, userID uuid.UUID) (*model.Membership, error) {
	for i := range f.memberships {
		m := &f.memberships[i]
		if m.CompanyID == companyID && m.UserID == userID && m.Status == model.MembershipApproved {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeMemberships) FirstByRole(context.Context, uuid.UUID, string) (*model.Membership, error) {
	return nil, gorm.ErrRecordNotFound
}
func (f *fakeMemberships) CountByRoles(context.Context, uuid.UUID, []string) (int64, error) {
	return 0, nil
}
func (f *fakeMemberships) ListByCompany(context.Context, uuid.UUID, string, int, int) ([]model.Membership, int64, error) {
	return nil, 0, nil
}

func TestResolve(t *testing.T) {
	active := &model.Company{ID: uuid.New(), Name: "acme", Active: true}
	inactive := &model.Company{ID: uuid.New(), Name: "gone", Active: false}

	approver := uuid.New()
	pending := uuid.New()

	r := NewResolver(
		&fakeMemberships{memberships: []model.Membership{
			{CompanyID: active.ID, UserID: approver, Role: model.RoleApprover, Status: model.MembershipApproved},
			{CompanyID: active.ID, UserID: pending, Role: model.RoleEmployee, Status: model.MembershipPending},
			{CompanyID: inactive.ID, UserID: approver, Role: model.RoleOwner, Status: model.MembershipApproved},
		}},
		&fakeCompanies{companies: map[uuid.UUID]*model.Company{active.ID: active, inactive.ID: inactive}},
	)

	t.Run("approved member resolves with role", func(t *testing.T) {
		rs, err := r.Resolve(context.Background(), approver, active.ID)
		require.NoError(t, err)
		assert.True(t, rs.Member)
		assert.Equal(t, model.RoleApprover, rs.Role)
	})

	t.Run("pending membership yields no access", func(t *testing.T) {
		rs, err := r.Resolve(context.Background(), pending, active.ID)
		require.NoError(t, err)
		assert.False(t, rs.Member)
	})

	t.Run("unknown company yields no access", func(t *testing.T) {
		rs, err := r.Resolve(context.Background(), approver, uuid.New())
		require.NoError(t, err)
		assert.False(t, rs.Member)
	})

	t.Run("deactivated company yields no access even for approved member", func(t *testing.T) {
		rs, err := r.Resolve(context.Background(), approver, inactive.ID)
		require.NoError(t, err)
		assert.False(t, rs.Member)
	})
}

func TestRoleSetPredicates(t *testing.T) {
	userID := uuid.New()
	member := func(role string) RoleSet {
		return RoleSet{UserID: userID, Role: role, Member: true}
	}

	tests := []struct {
		role       string
		canSubmit  bool
		canApprove bool
		payroll    bool
		admin      bool
		tax        bool
	}{
		{model.RoleEmployee, true, false, false, false, false},
		{model.RoleApprover, true, true, false, false, false},
		{model.RoleFinancialApprover, true, true, true, false, false},
		{model.RoleTaxProcessor, false, false, false, false, true},
		{model.RoleAdmin, true, true, true, true, false},
		{model.RoleOwner, true, true, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			rs := member(tt.role)
			assert.Equal(t, tt.canSubmit, rs.CanSubmit())
			assert.Equal(t, tt.canApprove, rs.CanApproveStep())
			assert.Equal(t, tt.payroll, rs.IsPayrollTier())
			assert.Equal(t, tt.admin, rs.IsAdminTier())
			assert.Equal(t, tt.tax, rs.CanManageTax())
		})
	}

	t.Run("zero roleset denies everything", func(t *testing.T) {
		var rs RoleSet
		assert.False(t, rs.CanSubmit())
		assert.False(t, rs.CanApproveStep())
		assert.False(t, rs.IsPayrollTier())
		assert.False(t, rs.CanManageTax())
		assert.False(t, rs.CanViewRestricted(&model.ExpenseReport{}))
	})
}

func TestCanViewRestricted(t *testing.T) {
	drafter := uuid.New()
	report := &model.ExpenseReport{DrafterID: drafter, Restricted: true}

	assert.True(t, RoleSet{UserID: drafter, Role: model.RoleEmployee, Member: true}.CanViewRestricted(report))
	assert.True(t, RoleSet{UserID: uuid.New(), Role: model.RoleTaxProcessor, Member: true}.CanViewRestricted(report))
	assert.False(t, RoleSet{UserID: uuid.New(), Role: model.RoleOwner, Member: true}.CanViewRestricted(report))
	assert.False(t, RoleSet{UserID: uuid.New(), Role: model.RoleFinancialApprover, Member: true}.CanViewRestricted(report))
}
