package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportFilter narrows listing queries. Visibility fields are set by the
// service from the resolved role set, so restricted rows are excluded in SQL
// and never leave the trust boundary for unauthorized principals.
type ReportFilter struct {
	Status string
	Page   int
	Limit  int

	// RequesterID and SeeAllRestricted drive the restricted-row predicate:
	// restricted rows are visible only to their drafter unless the requester
	// holds the tax-processing role.
	RequesterID      uuid.UUID
	SeeAllRestricted bool
}

// StatusSummary aggregates report counts and totals per status.
type StatusSummary struct {
	Status      string `json:"status"`
	Count       int64  `json:"count"`
	TotalAmount string `json:"total_amount"`
}

type ReportRepository interface {
	Create(ctx context.Context, report *model.ExpenseReport) error
	Save(ctx context.Context, report *model.ExpenseReport) error
	Delete(ctx context.Context, report *model.ExpenseReport) error
	FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.ExpenseReport, error)
	// FindForUpdate locks the report row for the duration of the surrounding
	// transaction so concurrent step mutations serialize per report.
	FindForUpdate(ctx context.Context, companyID, id uuid.UUID) (*model.ExpenseReport, error)
	List(ctx context.Context, companyID uuid.UUID, filter ReportFilter) ([]model.ExpenseReport, int64, error)
	Summarize(ctx context.Context, companyID uuid.UUID, requesterID uuid.UUID, seeAllRestricted bool) ([]StatusSummary, error)
	ReplaceLineItems(ctx context.Context, report *model.ExpenseReport, items []model.LineItem) error
	SaveStep(ctx context.Context, step *model.ApprovalStep) error
	CreateSteps(ctx context.Context, steps []model.ApprovalStep) error
}

type reportRepository struct {
	db *gorm.DB
}

func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

func (r *reportRepository) Create(ctx context.Context, report *model.ExpenseReport) error {
	return GetDB(ctx, r.db).Create(report).Error
}

func (r *reportRepository) Save(ctx context.Context, report *model.ExpenseReport) error {
	return GetDB(ctx, r.db).Save(report).Error
}

func (r *reportRepository) Delete(ctx context.Context, report *model.ExpenseReport) error {
	return GetDB(ctx, r.db).Delete(report).Error
}

func (r *reportRepository) FindByID(ctx context.Context, companyID, id uuid.UUID) (*model.ExpenseReport, error) {
	var report model.ExpenseReport
	err := GetDB(ctx, r.db).
		Preload("LineItems").
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		First(&report, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *reportRepository) FindForUpdate(ctx context.Context, companyID, id uuid.UUID) (*model.ExpenseReport, error) {
	db := GetDB(ctx, r.db)

	var report model.ExpenseReport
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&report, "id = ? AND company_id = ?", id, companyID).Error
	if err != nil {
		return nil, err
	}

	// Associations are loaded after the lock is held so the step list is
	// consistent with whatever the previous writer committed.
	if err := db.Order("position asc").Find(&report.Steps, "report_id = ?", report.ID).Error; err != nil {
		return nil, err
	}
	if err := db.Find(&report.LineItems, "report_id = ?", report.ID).Error; err != nil {
		return nil, err
	}

	return &report, nil
}

func (r *reportRepository) List(ctx context.Context, companyID uuid.UUID, filter ReportFilter) ([]model.ExpenseReport, int64, error) {
	db := GetDB(ctx, r.db)

	base := db.Model(&model.ExpenseReport{}).Where("company_id = ?", companyID)
	if filter.Status != "" {
		base = base.Where("status = ?", filter.Status)
	}
	if !filter.SeeAllRestricted {
		base = base.Where("restricted = false OR drafter_id = ?", filter.RequesterID)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	var reports []model.ExpenseReport
	err := base.
		Preload("LineItems").
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Order("created_at DESC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&reports).Error
	if err != nil {
		return nil, 0, err
	}

	return reports, total, nil
}

func (r *reportRepository) Summarize(ctx context.Context, companyID uuid.UUID, requesterID uuid.UUID, seeAllRestricted bool) ([]StatusSummary, error) {
	db := GetDB(ctx, r.db)

	query := db.Model(&model.ExpenseReport{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(total_amount), 0)::text AS total_amount").
		Where("company_id = ?", companyID)
	if !seeAllRestricted {
		query = query.Where("restricted = false OR drafter_id = ?", requesterID)
	}

	var rows []StatusSummary
	if err := query.Group("status").Order("status asc").Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *reportRepository) ReplaceLineItems(ctx context.Context, report *model.ExpenseReport, items []model.LineItem) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("report_id = ?", report.ID).Delete(&model.LineItem{}).Error; err != nil {
		return err
	}
	for i := range items {
		items[i].ReportID = report.ID
	}
	if err := db.Create(&items).Error; err != nil {
		return err
	}
	report.LineItems = items
	return nil
}

func (r *reportRepository) SaveStep(ctx context.Context, step *model.ApprovalStep) error {
	return GetDB(ctx, r.db).Save(step).Error
}

func (r *reportRepository) CreateSteps(ctx context.Context, steps []model.ApprovalStep) error {
	if len(steps) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&steps).Error
}
