package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MembershipRepository interface {
	Create(ctx context.Context, m *model.Membership) error
	Save(ctx context.Context, m *model.Membership) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Membership, error)
	FindApproved(ctx context.Context, companyID, userID uuid.UUID) (*model.Membership, error)
	// FirstByRole returns the earliest-created approved membership holding the
	// given role in the company, used to guarantee a financial approver step.
	FirstByRole(ctx context.Context, companyID uuid.UUID, role string) (*model.Membership, error)
	CountByRoles(ctx context.Context, companyID uuid.UUID, roles []string) (int64, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, status string, page, limit int) ([]model.Membership, int64, error)
}

type membershipRepository struct {
	db *gorm.DB
}

func NewMembershipRepository(db *gorm.DB) MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) Create(ctx context.Context, m *model.Membership) error {
	return GetDB(ctx, r.db).Create(m).Error
}

func (r *membershipRepository) Save(ctx context.Context, m *model.Membership) error {
	return GetDB(ctx, r.db).Save(m).Error
}

func (r *membershipRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Membership, error) {
	var m model.Membership
	if err := GetDB(ctx, r.db).Preload("User").First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepository) FindApproved(ctx context.Context, companyID, userID uuid.UUID) (*model.Membership, error) {
	var m model.Membership
	err := GetDB(ctx, r.db).
		First(&m, "company_id = ? AND user_id = ? AND status = ?", companyID, userID, model.MembershipApproved).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepository) FirstByRole(ctx context.Context, companyID uuid.UUID, role string) (*model.Membership, error) {
	var m model.Membership
	err := GetDB(ctx, r.db).
		Where("company_id = ? AND role = ? AND status = ?", companyID, role, model.MembershipApproved).
		Order("created_at asc").
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *membershipRepository) CountByRoles(ctx context.Context, companyID uuid.UUID, roles []string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Membership{}).
		Where("company_id = ? AND role IN ? AND status = ?", companyID, roles, model.MembershipApproved).
		Count(&count).Error
	return count, err
}

func (r *membershipRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, status string, page, limit int) ([]model.Membership, int64, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.Membership{}).Where("company_id = ?", companyID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	var members []model.Membership
	fetch := db.Preload("User").Where("company_id = ?", companyID)
	if status != "" {
		fetch = fetch.Where("status = ?", status)
	}
	if err := fetch.Order("created_at asc").Offset(offset).Limit(limit).Find(&members).Error; err != nil {
		return nil, 0, err
	}

	return members, total, nil
}
