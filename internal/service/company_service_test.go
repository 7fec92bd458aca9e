package service

import (
	"context"
	"testing"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/permission"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type memCompanyRepo struct {
	companies map[uuid.UUID]*model.Company
}

func newMemCompanyRepo() *memCompanyRepo {
	return &memCompanyRepo{companies: make(map[uuid.UUID]*model.Company)}
}

func (r *memCompanyRepo) Create(_ context.Context, company *model.Company) error {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	r.companies[company.ID] = company
	return nil
}

func (r *memCompanyRepo) Save(context.Context, *model.Company) error { return nil }

func (r *memCompanyRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Company, error) {
	if c, ok := r.companies[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memCompanyRepo) FindByName(_ context.Context, name string) (*model.Company, error) {
	for _, c := range r.companies {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type memMembershipRepo struct {
	memberships map[uuid.UUID]*model.Membership
}

func newMemMembershipRepo() *memMembershipRepo {
	return &memMembershipRepo{memberships: make(map[uuid.UUID]*model.Membership)}
}

func (r *memMembershipRepo) Create(_ context.Context, m *model.Membership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.memberships[m.ID] = m
	return nil
}

func (r *memMembershipRepo) Save(context.Context, *model.Membership) error { return nil }

func (r *memMembershipRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Membership, error) {
	if m, ok := r.memberships[id]; ok {
		return m, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memMembershipRepo) FindApproved(_ context.Context, companyID, userID uuid.UUID) (*model.Membership, error) {
	for _, m := range r.memberships {
		if m.CompanyID == companyID && m.UserID == userID && m.Status == model.MembershipApproved {
			return m, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memMembershipRepo) FirstByRole(context.Context, uuid.UUID, string) (*model.Membership, error) {
	return nil, gorm.ErrRecordNotFound
}

func (r *memMembershipRepo) CountByRoles(_ context.Context, companyID uuid.UUID, roles []string) (int64, error) {
	var count int64
	for _, m := range r.memberships {
		if m.CompanyID != companyID || m.Status != model.MembershipApproved {
			continue
		}
		for _, role := range roles {
			if m.Role == role {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *memMembershipRepo) ListByCompany(_ context.Context, companyID uuid.UUID, status string, _, _ int) ([]model.Membership, int64, error) {
	var out []model.Membership
	for _, m := range r.memberships {
		if m.CompanyID != companyID {
			continue
		}
		if status != "" && m.Status != status {
			continue
		}
		out = append(out, *m)
	}
	return out, int64(len(out)), nil
}

type memUserRepo struct {
	users map[uuid.UUID]*model.User
}

func (r *memUserRepo) Create(context.Context, *model.User) error { return nil }
func (r *memUserRepo) FindByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (r *memUserRepo) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *memUserRepo) FindByUsername(context.Context, string) (*model.User, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *memUserRepo) SaveRefreshToken(context.Context, *model.RefreshToken) error { return nil }
func (r *memUserRepo) FindRefreshToken(context.Context, string) (*model.RefreshToken, error) {
	return nil, gorm.ErrRecordNotFound
}
func (r *memUserRepo) DeleteRefreshTokens(context.Context, uuid.UUID) error { return nil }

type companyEnv struct {
	companies   *memCompanyRepo
	memberships *memMembershipRepo
	users       *memUserRepo
	svc         CompanyService
}

func newCompanyEnv(t *testing.T) *companyEnv {
	t.Helper()
	env := &companyEnv{
		companies:   newMemCompanyRepo(),
		memberships: newMemMembershipRepo(),
		users:       &memUserRepo{users: make(map[uuid.UUID]*model.User)},
	}
	resolver := permission.NewResolver(env.memberships, env.companies)
	env.svc = NewCompanyService(env.companies, env.memberships, env.users, &memAuditRepo{}, passthroughTx{}, resolver, zap.NewNop())
	return env
}

func (e *companyEnv) user(t *testing.T, superAdmin bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	e.users.users[id] = &model.User{ID: id, Username: "u-" + id.String()[:8], IsSuperAdmin: superAdmin}
	return id
}

func TestRegisterCompanyCreatesOwner(t *testing.T) {
	env := newCompanyEnv(t)
	owner := env.user(t, false)

	company, err := env.svc.Register(context.Background(), owner, RegisterCompanyRequest{Name: "acme"})
	require.NoError(t, err)
	assert.True(t, company.Active)

	companyID, err := uuid.Parse(company.ID)
	require.NoError(t, err)
	m, err := env.memberships.FindApproved(context.Background(), companyID, owner)
	require.NoError(t, err)
	assert.Equal(t, model.RoleOwner, m.Role)

	t.Run("name collision conflicts", func(t *testing.T) {
		_, err := env.svc.Register(context.Background(), env.user(t, false), RegisterCompanyRequest{Name: "acme"})
		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})
}

func TestDeactivateCompany(t *testing.T) {
	env := newCompanyEnv(t)
	ctx := context.Background()
	owner := env.user(t, false)
	superAdmin := env.user(t, true)

	company, err := env.svc.Register(ctx, owner, RegisterCompanyRequest{Name: "acme"})
	require.NoError(t, err)

	t.Run("owner alone is not enough", func(t *testing.T) {
		_, err := env.svc.Deactivate(ctx, owner, company.ID)
		require.Error(t, err)
		assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	})

	deactivated, err := env.svc.Deactivate(ctx, superAdmin, company.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	t.Run("twice conflicts", func(t *testing.T) {
		_, err := env.svc.Deactivate(ctx, superAdmin, company.ID)
		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("members lose access once deactivated", func(t *testing.T) {
		companyID, parseErr := uuid.Parse(company.ID)
		require.NoError(t, parseErr)
		_, _, err := env.svc.ListMembers(ctx, Actor{UserID: owner, CompanyID: companyID}, "", 1, 20)
		require.Error(t, err)
		assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	})
}

func TestMembershipLifecycle(t *testing.T) {
	env := newCompanyEnv(t)
	ctx := context.Background()
	owner := env.user(t, false)
	joiner := env.user(t, false)

	company, err := env.svc.Register(ctx, owner, RegisterCompanyRequest{Name: "acme"})
	require.NoError(t, err)
	companyID, err := uuid.Parse(company.ID)
	require.NoError(t, err)
	ownerActor := Actor{UserID: owner, CompanyID: companyID}

	pending, err := env.svc.RequestJoin(ctx, joiner, company.ID)
	require.NoError(t, err)
	assert.Equal(t, model.MembershipPending, pending.Status)

	t.Run("pending members cannot approve others", func(t *testing.T) {
		_, err := env.svc.ApproveMembership(ctx, Actor{UserID: joiner, CompanyID: companyID}, pending.ID, model.RoleApprover)
		require.Error(t, err)
		assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	})

	approved, err := env.svc.ApproveMembership(ctx, ownerActor, pending.ID, model.RoleApprover)
	require.NoError(t, err)
	assert.Equal(t, model.MembershipApproved, approved.Status)
	assert.Equal(t, model.RoleApprover, approved.Role)

	t.Run("re-approval conflicts", func(t *testing.T) {
		_, err := env.svc.ApproveMembership(ctx, ownerActor, pending.ID, model.RoleApprover)
		require.Error(t, err)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("invalid role rejected", func(t *testing.T) {
		_, err := env.svc.ChangeRole(ctx, ownerActor, approved.ID, "SUPERVISOR")
		require.Error(t, err)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	changed, err := env.svc.ChangeRole(ctx, ownerActor, approved.ID, model.RoleFinancialApprover)
	require.NoError(t, err)
	assert.Equal(t, model.RoleFinancialApprover, changed.Role)
}

func TestChangeRoleGuards(t *testing.T) {
	env := newCompanyEnv(t)
	ctx := context.Background()
	owner := env.user(t, false)

	company, err := env.svc.Register(ctx, owner, RegisterCompanyRequest{Name: "acme"})
	require.NoError(t, err)
	companyID, err := uuid.Parse(company.ID)
	require.NoError(t, err)
	ownerActor := Actor{UserID: owner, CompanyID: companyID}

	ownerMembership, err := env.memberships.FindApproved(ctx, companyID, owner)
	require.NoError(t, err)

	t.Run("no self role change", func(t *testing.T) {
		_, err := env.svc.ChangeRole(ctx, ownerActor, ownerMembership.ID.String(), model.RoleEmployee)
		require.Error(t, err)
		assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	})

	t.Run("demoted owner loses admin standing", func(t *testing.T) {
		admin := env.user(t, false)
		adminMembership := &model.Membership{
			CompanyID: companyID,
			UserID:    admin,
			Role:      model.RoleAdmin,
			Status:    model.MembershipApproved,
		}
		require.NoError(t, env.memberships.Create(ctx, adminMembership))

		adminActor := Actor{UserID: admin, CompanyID: companyID}

		// Two owner-equivalents exist, so one demotion is fine.
		_, err := env.svc.ChangeRole(ctx, adminActor, ownerMembership.ID.String(), model.RoleEmployee)
		require.NoError(t, err)

		// The admin is now the last one standing; the owner cannot demote them back.
		_, err = env.svc.ChangeRole(ctx, Actor{UserID: owner, CompanyID: companyID}, adminMembership.ID.String(), model.RoleEmployee)
		require.Error(t, err)
		assert.Equal(t, apperr.KindPermission, apperr.KindOf(err))
	})
}

func TestRequestJoinInactiveCompanyIsNotFound(t *testing.T) {
	env := newCompanyEnv(t)
	ctx := context.Background()
	owner := env.user(t, false)
	superAdmin := env.user(t, true)

	company, err := env.svc.Register(ctx, owner, RegisterCompanyRequest{Name: "acme"})
	require.NoError(t, err)
	_, err = env.svc.Deactivate(ctx, superAdmin, company.ID)
	require.NoError(t, err)

	_, err = env.svc.RequestJoin(ctx, env.user(t, false), company.ID)
	require.Error(t, err)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}
