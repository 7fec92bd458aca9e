package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/permission"
	"backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- DTOs ---

type RegisterCompanyRequest struct {
	Name string `json:"name" binding:"required"`
}

type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type CompanyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Active    bool   `json:"active"`
	CreatedAt string `json:"created_at"`
}

type MembershipResponse struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

// --- Interface ---

type CompanyService interface {
	Register(ctx context.Context, ownerID uuid.UUID, req RegisterCompanyRequest) (CompanyResponse, error)
	Deactivate(ctx context.Context, actorID uuid.UUID, companyID string) (CompanyResponse, error)
	RequestJoin(ctx context.Context, userID uuid.UUID, companyID string) (MembershipResponse, error)
	ApproveMembership(ctx context.Context, actor Actor, membershipID, role string) (MembershipResponse, error)
	ChangeRole(ctx context.Context, actor Actor, membershipID, newRole string) (MembershipResponse, error)
	ListMembers(ctx context.Context, actor Actor, status string, page, limit int) ([]MembershipResponse, int64, error)
}

type companyService struct {
	companies   repository.CompanyRepository
	memberships repository.MembershipRepository
	users       repository.UserRepository
	audits      repository.AuditRepository
	txManager   repository.TransactionManager
	resolver    permission.Resolver
	log         *zap.Logger
}

func NewCompanyService(
	companies repository.CompanyRepository,
	memberships repository.MembershipRepository,
	users repository.UserRepository,
	audits repository.AuditRepository,
	txManager repository.TransactionManager,
	resolver permission.Resolver,
	log *zap.Logger,
) CompanyService {
	return &companyService{
		companies:   companies,
		memberships: memberships,
		users:       users,
		audits:      audits,
		txManager:   txManager,
		resolver:    resolver,
		log:         log,
	}
}

// --- Implementation ---

// Register creates the company and its owner membership in one transaction.
func (s *companyService) Register(ctx context.Context, ownerID uuid.UUID, req RegisterCompanyRequest) (CompanyResponse, error) {
	if _, err := s.companies.FindByName(ctx, req.Name); err == nil {
		return CompanyResponse{}, apperr.Conflict("a company with this name already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return CompanyResponse{}, fmt.Errorf("failed to check company name: %w", err)
	}

	company := model.Company{Name: req.Name, Active: true}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.companies.Create(txCtx, &company); createErr != nil {
			return fmt.Errorf("failed to create company: %w", createErr)
		}

		owner := model.Membership{
			CompanyID: company.ID,
			UserID:    ownerID,
			Role:      model.RoleOwner,
			Status:    model.MembershipApproved,
		}
		if createErr := s.memberships.Create(txCtx, &owner); createErr != nil {
			return fmt.Errorf("failed to create owner membership: %w", createErr)
		}

		entry := &model.AuditLog{
			CompanyID:  &company.ID,
			UserID:     &ownerID,
			Action:     model.ActionRegisterCompany,
			EntityID:   company.ID.String(),
			EntityName: company.Name,
		}
		if auditErr := s.audits.Log(txCtx, entry); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return CompanyResponse{}, err
	}

	return toCompanyResponse(company), nil
}

// Deactivate soft-disables a tenant. Super administrators only; companies
// are never hard-deleted.
func (s *companyService) Deactivate(ctx context.Context, actorID uuid.UUID, companyID string) (CompanyResponse, error) {
	actor, err := s.users.FindByID(ctx, actorID)
	if err != nil {
		return CompanyResponse{}, notFoundOr(err, "user")
	}
	if !actor.IsSuperAdmin {
		s.log.Warn("permission denied",
			zap.String("operation", "deactivate-company"),
			zap.String("user_id", actorID.String()))
		return CompanyResponse{}, apperr.Permission("requires super administrator standing")
	}

	id, err := parseID(companyID, "company id")
	if err != nil {
		return CompanyResponse{}, err
	}

	company, err := s.companies.FindByID(ctx, id)
	if err != nil {
		return CompanyResponse{}, notFoundOr(err, "company")
	}
	if !company.Active {
		return CompanyResponse{}, apperr.Conflict("company is already deactivated")
	}

	company.Active = false
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if saveErr := s.companies.Save(txCtx, company); saveErr != nil {
			return fmt.Errorf("failed to deactivate company: %w", saveErr)
		}
		entry := &model.AuditLog{
			CompanyID:  &company.ID,
			UserID:     &actorID,
			Action:     model.ActionDeactivateCompany,
			EntityID:   company.ID.String(),
			EntityName: company.Name,
		}
		if auditErr := s.audits.Log(txCtx, entry); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return CompanyResponse{}, err
	}

	return toCompanyResponse(*company), nil
}

// RequestJoin records a pending membership. A principal only exists in the
// company once an admin approves it.
func (s *companyService) RequestJoin(ctx context.Context, userID uuid.UUID, companyID string) (MembershipResponse, error) {
	id, err := parseID(companyID, "company id")
	if err != nil {
		return MembershipResponse{}, err
	}

	company, err := s.companies.FindByID(ctx, id)
	if err != nil {
		return MembershipResponse{}, notFoundOr(err, "company")
	}
	if !company.Active {
		return MembershipResponse{}, apperr.NotFound("company")
	}

	m := model.Membership{
		CompanyID: company.ID,
		UserID:    userID,
		Role:      model.RoleEmployee,
		Status:    model.MembershipPending,
	}
	if err := s.memberships.Create(ctx, &m); err != nil {
		return MembershipResponse{}, fmt.Errorf("failed to create membership request: %w", err)
	}

	return toMembershipResponse(m), nil
}

func (s *companyService) ApproveMembership(ctx context.Context, actor Actor, membershipID, role string) (MembershipResponse, error) {
	if role == "" {
		role = model.RoleEmployee
	}
	if !model.ValidRole(role) {
		return MembershipResponse{}, apperr.Newf(apperr.KindValidation, "invalid role %q", role)
	}

	id, err := parseID(membershipID, "membership id")
	if err != nil {
		return MembershipResponse{}, err
	}

	var m *model.Membership
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rs, resolveErr := s.resolver.Resolve(txCtx, actor.UserID, actor.CompanyID)
		if resolveErr != nil {
			return fmt.Errorf("failed to resolve permissions: %w", resolveErr)
		}
		if !rs.IsAdminTier() {
			return s.deny(actor, "approve-membership", "requires admin-tier standing")
		}

		m, err = s.memberships.FindByID(txCtx, id)
		if err != nil {
			return notFoundOr(err, "membership")
		}
		if m.CompanyID != actor.CompanyID {
			return apperr.NotFound("membership")
		}
		if m.Status != model.MembershipPending {
			return apperr.Newf(apperr.KindConflict, "membership is already %s", m.Status)
		}

		m.Status = model.MembershipApproved
		m.Role = role
		if saveErr := s.memberships.Save(txCtx, m); saveErr != nil {
			return fmt.Errorf("failed to approve membership: %w", saveErr)
		}

		details, _ := json.Marshal(map[string]string{"role": role})
		entry := &model.AuditLog{
			CompanyID: &actor.CompanyID,
			UserID:    &actor.UserID,
			Action:    model.ActionApproveMembership,
			EntityID:  m.ID.String(),
			Details:   string(details),
		}
		if auditErr := s.audits.Log(txCtx, entry); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return MembershipResponse{}, err
	}

	return toMembershipResponse(*m), nil
}

// ChangeRole mutates a principal's role, guarded so a company can never lose
// its last owner-equivalent principal and nobody can demote themselves.
func (s *companyService) ChangeRole(ctx context.Context, actor Actor, membershipID, newRole string) (MembershipResponse, error) {
	if !model.ValidRole(newRole) {
		return MembershipResponse{}, apperr.Newf(apperr.KindValidation, "invalid role %q", newRole)
	}

	id, err := parseID(membershipID, "membership id")
	if err != nil {
		return MembershipResponse{}, err
	}

	var m *model.Membership
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rs, resolveErr := s.resolver.Resolve(txCtx, actor.UserID, actor.CompanyID)
		if resolveErr != nil {
			return fmt.Errorf("failed to resolve permissions: %w", resolveErr)
		}
		if !rs.IsAdminTier() {
			return s.deny(actor, "change-role", "requires admin-tier standing")
		}

		m, err = s.memberships.FindByID(txCtx, id)
		if err != nil {
			return notFoundOr(err, "membership")
		}
		if m.CompanyID != actor.CompanyID {
			return apperr.NotFound("membership")
		}
		if m.Status != model.MembershipApproved {
			return apperr.Conflict("membership is not approved")
		}
		if m.UserID == actor.UserID {
			return apperr.Permission("cannot change your own role")
		}

		demotingOwnerEquivalent := (m.Role == model.RoleOwner || m.Role == model.RoleAdmin) &&
			newRole != model.RoleOwner && newRole != model.RoleAdmin
		if demotingOwnerEquivalent {
			count, countErr := s.memberships.CountByRoles(txCtx, actor.CompanyID, []string{model.RoleOwner, model.RoleAdmin})
			if countErr != nil {
				return fmt.Errorf("failed to count owner-equivalent principals: %w", countErr)
			}
			if count <= 1 {
				return apperr.Conflict("cannot demote the last owner-equivalent principal")
			}
		}

		previous := m.Role
		m.Role = newRole
		if saveErr := s.memberships.Save(txCtx, m); saveErr != nil {
			return fmt.Errorf("failed to change role: %w", saveErr)
		}

		details, _ := json.Marshal(map[string]string{"from": previous, "to": newRole})
		entry := &model.AuditLog{
			CompanyID: &actor.CompanyID,
			UserID:    &actor.UserID,
			Action:    model.ActionChangeRole,
			EntityID:  m.ID.String(),
			Details:   string(details),
		}
		if auditErr := s.audits.Log(txCtx, entry); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}
		return nil
	})
	if err != nil {
		return MembershipResponse{}, err
	}

	return toMembershipResponse(*m), nil
}

func (s *companyService) ListMembers(ctx context.Context, actor Actor, status string, page, limit int) ([]MembershipResponse, int64, error) {
	rs, err := s.resolver.Resolve(ctx, actor.UserID, actor.CompanyID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve permissions: %w", err)
	}
	if !rs.Member {
		return nil, 0, s.deny(actor, "list-members", "no membership in company")
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	members, total, err := s.memberships.ListByCompany(ctx, actor.CompanyID, status, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list members: %w", err)
	}

	result := make([]MembershipResponse, 0, len(members))
	for _, m := range members {
		result = append(result, toMembershipResponse(m))
	}
	return result, total, nil
}

// --- Helpers ---

func (s *companyService) deny(actor Actor, operation, reason string) error {
	s.log.Warn("permission denied",
		zap.String("operation", operation),
		zap.String("user_id", actor.UserID.String()),
		zap.String("company_id", actor.CompanyID.String()),
		zap.String("reason", reason))
	return apperr.Permission(reason)
}

func toCompanyResponse(c model.Company) CompanyResponse {
	return CompanyResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Active:    c.Active,
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toMembershipResponse(m model.Membership) MembershipResponse {
	resp := MembershipResponse{
		ID:     m.ID.String(),
		UserID: m.UserID.String(),
		Role:   m.Role,
		Status: m.Status,
	}
	if m.User != nil {
		resp.Username = m.User.Username
	}
	return resp
}
