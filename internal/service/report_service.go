package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backend/internal/apperr"
	"backend/internal/confidential"
	"backend/internal/model"
	"backend/internal/permission"
	"backend/internal/repository"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Actor is the explicit security identity of every core operation: the
// authenticated user plus the company they claim to act in. The company id is
// untrusted input and is re-validated against memberships on every call.
type Actor struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
}

// --- DTOs ---

type LineItemRequest struct {
	Category      string `json:"category" binding:"required"`
	Description   string `json:"description"`
	Amount        string `json:"amount" binding:"required"` // Decimal string
	TaxDeductible bool   `json:"tax_deductible"`
}

type SubmitReportRequest struct {
	Title       string            `json:"title"`
	ReportDate  string            `json:"report_date"` // YYYY-MM-DD, defaults to today
	Secret      bool              `json:"secret"`
	LineItems   []LineItemRequest `json:"line_items"`
	ApproverIDs []string          `json:"approver_ids"`
}

type UpdateReportRequest struct {
	Title      string            `json:"title"`
	ReportDate string            `json:"report_date"`
	LineItems  []LineItemRequest `json:"line_items"`
}

type ReportFilter struct {
	Status string
	Page   int
	Limit  int
}

type LineItemResponse struct {
	ID            string `json:"id"`
	Category      string `json:"category"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	TaxDeductible bool   `json:"tax_deductible"`
}

type StepResponse struct {
	ID              string  `json:"id"`
	Position        int     `json:"position"`
	ApproverID      string  `json:"approver_id"`
	Status          string  `json:"status"`
	ActedAt         *string `json:"acted_at"`
	Signature       string  `json:"signature,omitempty"`
	RejectionReason string  `json:"rejection_reason,omitempty"`
}

type ReportResponse struct {
	ID                string             `json:"id"`
	CompanyID         string             `json:"company_id"`
	DrafterID         string             `json:"drafter_id"`
	Title             string             `json:"title"`
	ReportDate        string             `json:"report_date"`
	TotalAmount       string             `json:"total_amount"`
	Status            string             `json:"status"`
	Restricted        bool               `json:"restricted"`
	ReceiptURL        string             `json:"receipt_url,omitempty"`
	PaidAt            *string            `json:"paid_at"`
	TaxState          string             `json:"tax_state"`
	RevisionRequested bool               `json:"revision_requested"`
	RevisionReason    string             `json:"revision_reason,omitempty"`
	LineItems         []LineItemResponse `json:"line_items"`
	Steps             []StepResponse     `json:"steps"`
	BudgetWarnings    []string           `json:"budget_warnings,omitempty"`
	CreatedAt         string             `json:"created_at"`
}

// --- Interface ---

type ReportService interface {
	Submit(ctx context.Context, actor Actor, req SubmitReportRequest) (ReportResponse, error)
	Get(ctx context.Context, actor Actor, reportID string) (ReportResponse, error)
	List(ctx context.Context, actor Actor, filter ReportFilter) ([]ReportResponse, int64, error)
	Summary(ctx context.Context, actor Actor) ([]repository.StatusSummary, error)
	Update(ctx context.Context, actor Actor, reportID string, req UpdateReportRequest) (ReportResponse, error)
	Delete(ctx context.Context, actor Actor, reportID string) error
	Approve(ctx context.Context, actor Actor, reportID, signature string) (ReportResponse, error)
	Reject(ctx context.Context, actor Actor, reportID, reason string) (ReportResponse, error)
	CancelApproval(ctx context.Context, actor Actor, reportID string) (ReportResponse, error)
	CancelRejection(ctx context.Context, actor Actor, reportID string) (ReportResponse, error)
	MarkPaid(ctx context.Context, actor Actor, reportID string) (ReportResponse, error)
	AppendStep(ctx context.Context, actor Actor, reportID, newApproverID string) (ReportResponse, error)
	AttachReceipt(ctx context.Context, actor Actor, reportID, receiptURL string) (ReportResponse, error)
}

type reportService struct {
	reports     repository.ReportRepository
	audits      repository.AuditRepository
	txManager   repository.TransactionManager
	resolver    permission.Resolver
	chain       *workflow.ChainResolver
	budget      BudgetChecker
	auditEngine AuditEngine
	log         *zap.Logger
	hub         interface{ GetBroadcast() chan []byte } // optional websocket hub
}

func NewReportService(
	reports repository.ReportRepository,
	audits repository.AuditRepository,
	txManager repository.TransactionManager,
	resolver permission.Resolver,
	chain *workflow.ChainResolver,
	budget BudgetChecker,
	auditEngine AuditEngine,
	log *zap.Logger,
	hub interface{ GetBroadcast() chan []byte },
) ReportService {
	return &reportService{
		reports:     reports,
		audits:      audits,
		txManager:   txManager,
		resolver:    resolver,
		chain:       chain,
		budget:      budget,
		auditEngine: auditEngine,
		log:         log,
		hub:         hub,
	}
}

// --- Implementation ---

func (s *reportService) Submit(ctx context.Context, actor Actor, req SubmitReportRequest) (ReportResponse, error) {
	rs, err := s.resolve(ctx, actor)
	if err != nil {
		return ReportResponse{}, err
	}
	if !rs.CanSubmit() {
		return ReportResponse{}, s.deny(actor, "submit", "role barred from submission")
	}

	items, total, err := parseLineItems(req.LineItems)
	if err != nil {
		return ReportResponse{}, err
	}

	classification := confidential.Classify(items, req.Secret)
	if classification.SalaryRelated && !rs.IsPayrollTier() {
		return ReportResponse{}, s.deny(actor, "submit", "salary line items require a payroll-tier role")
	}

	warnings, err := s.checkBudget(ctx, actor.CompanyID, items)
	if err != nil {
		return ReportResponse{}, err
	}

	reportDate, err := parseReportDate(req.ReportDate)
	if err != nil {
		return ReportResponse{}, err
	}

	report := model.ExpenseReport{
		CompanyID:   actor.CompanyID,
		DrafterID:   actor.UserID,
		Title:       req.Title,
		ReportDate:  reportDate,
		TotalAmount: total,
		Restricted:  classification.Restricted,
		TaxState:    model.TaxStateUncollected,
		LineItems:   items,
	}

	if classification.Restricted {
		// Restricted reports bypass the chain: no steps, paid at creation.
		now := time.Now()
		report.Status = model.ReportStatusPaid
		report.PaidAt = &now
		report.PaidBy = &actor.UserID
	} else {
		approverIDs, parseErr := parseUUIDs(req.ApproverIDs)
		if parseErr != nil {
			return ReportResponse{}, parseErr
		}
		steps, chainErr := s.chain.Build(ctx, actor.CompanyID, approverIDs)
		if chainErr != nil {
			return ReportResponse{}, chainErr
		}
		report.Status = model.ReportStatusWait
		report.Steps = steps
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.reports.Create(txCtx, &report); createErr != nil {
			return fmt.Errorf("failed to create report: %w", createErr)
		}
		return s.writeAudit(txCtx, actor, model.ActionSubmitReport, report.ID.String(), req.Title, map[string]interface{}{
			"status":     report.Status,
			"restricted": report.Restricted,
			"total":      total.StringFixed(4),
			"item_count": len(items),
		})
	})
	if err != nil {
		return ReportResponse{}, err
	}

	// Detective control, fire-and-forget: failures never roll back the report.
	go func(report model.ExpenseReport, items []model.LineItem) {
		if evalErr := s.auditEngine.Evaluate(context.Background(), report, items); evalErr != nil {
			s.log.Error("audit engine evaluation failed",
				zap.String("report_id", report.ID.String()),
				zap.Error(evalErr))
		}
	}(report, items)

	s.broadcast(report)

	resp := toReportResponse(report)
	resp.BudgetWarnings = warnings
	return resp, nil
}

func (s *reportService) Get(ctx context.Context, actor Actor, reportID string) (ReportResponse, error) {
	rs, err := s.resolve(ctx, actor)
	if err != nil {
		return ReportResponse{}, err
	}
	if !rs.Member {
		return ReportResponse{}, s.deny(actor, "get", "not a member of company")
	}

	id, err := parseID(reportID, "report id")
	if err != nil {
		return ReportResponse{}, err
	}

	report, err := s.reports.FindByID(ctx, actor.CompanyID, id)
	if err != nil {
		return ReportResponse{}, notFoundOr(err, "report")
	}

	// Restricted reports are indistinguishable from absent ones for anyone
	// but the drafter and tax processors.
	if report.Restricted && !rs.CanViewRestricted(report) {
		return ReportResponse{}, apperr.NotFound("report")
	}

	return toReportResponse(*report), nil
}

func (s *reportService) List(ctx context.Context, actor Actor, filter ReportFilter) ([]ReportResponse, int64, error) {
	rs, err := s.resolve(ctx, actor)
	if err != nil {
		return nil, 0, err
	}
	if !rs.Member {
		return nil, 0, s.deny(actor, "list", "not a member of company")
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	reports, total, err := s.reports.List(ctx, actor.CompanyID, repository.ReportFilter{
		Status:           filter.Status,
		Page:             filter.Page,
		Limit:            filter.Limit,
		RequesterID:      actor.UserID,
		SeeAllRestricted: rs.CanManageTax(),
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch reports: %w", err)
	}

	result := make([]ReportResponse, 0, len(reports))
	for _, r := range reports {
		result = append(result, toReportResponse(r))
	}
	return result, total, nil
}

func (s *reportService) Summary(ctx context.Context, actor Actor) ([]repository.StatusSummary, error) {
	rs, err := s.resolve(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !rs.Member {
		return nil, s.deny(actor, "summary", "not a member of company")
	}

	rows, err := s.reports.Summarize(ctx, actor.CompanyID, actor.UserID, rs.CanManageTax())
	if err != nil {
		return nil, fmt.Errorf("failed to summarize reports: %w", err)
	}
	return rows, nil
}

func (s *reportService) Update(ctx context.Context, actor Actor, reportID string, req UpdateReportRequest) (ReportResponse, error) {
	id, err := parseID(reportID, "report id")
	if err != nil {
		return ReportResponse{}, err
	}

	items, total, err := parseLineItems(req.LineItems)
	if err != nil {
		return ReportResponse{}, err
	}

	// Monotonic restriction: an edit may not flip a normal report into the
	// restricted flow mid-chain. Salary items belong in a fresh submission.
	if confidential.Classify(items, false).SalaryRelated {
		return ReportResponse{}, apperr.Validation("salary line items require a new submission")
	}

	var report *model.ExpenseReport
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, resolveErr := s.resolve(txCtx, actor); resolveErr != nil {
			return resolveErr
		}

		report, err = s.lockReport(txCtx, actor, id)
		if err != nil {
			return err
		}
		if report.DrafterID != actor.UserID {
			return s.deny(actor, "update", "only the drafter may edit a report")
		}
		if report.Status != model.ReportStatusWait {
			return apperr.Newf(apperr.KindConflict, "report is %s, editable only while WAIT", report.Status)
		}

		if replaceErr := s.reports.ReplaceLineItems(txCtx, report, items); replaceErr != nil {
			return fmt.Errorf("failed to replace line items: %w", replaceErr)
		}

		if req.Title != "" {
			report.Title = req.Title
		}
		if req.ReportDate != "" {
			reportDate, dateErr := parseReportDate(req.ReportDate)
			if dateErr != nil {
				return dateErr
			}
			report.ReportDate = reportDate
		}
		report.TotalAmount = total

		if saveErr := s.reports.Save(txCtx, report); saveErr != nil {
			return fmt.Errorf("failed to update report: %w", saveErr)
		}

		return s.writeAudit(txCtx, actor, model.ActionUpdateReport, report.ID.String(), report.Title, map[string]interface{}{
			"total":      total.StringFixed(4),
			"item_count": len(items),
		})
	})
	if err != nil {
		return ReportResponse{}, err
	}

	return toReportResponse(*report), nil
}

func (s *reportService) Delete(ctx context.Context, actor Actor, reportID string) error {
	id, err := parseID(reportID, "report id")
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rs, resolveErr := s.resolve(txCtx, actor)
		if resolveErr != nil {
			return resolveErr
		}

		report, lockErr := s.lockReport(txCtx, actor, id)
		if lockErr != nil {
			return lockErr
		}
		if report.Status != model.ReportStatusWait {
			return apperr.Newf(apperr.KindConflict, "report is %s, deletable only while WAIT", report.Status)
		}
		if !rs.CanDelete(report) {
			return s.deny(actor, "delete", "requires drafter or admin-tier standing")
		}

		if delErr := s.reports.Delete(txCtx, report); delErr != nil {
			return fmt.Errorf("failed to delete report: %w", delErr)
		}

		return s.writeAudit(txCtx, actor, model.ActionDeleteReport, report.ID.String(), report.Title, nil)
	})
}

func (s *reportService) Approve(ctx context.Context, actor Actor, reportID, signature string) (ReportResponse, error) {
	return s.actOnStep(ctx, actor, reportID, model.ActionApproveStep, func(rs permission.RoleSet, report *model.ExpenseReport) (*model.ApprovalStep, error) {
		if !rs.CanApproveStep() {
			return nil, s.deny(actor, "approve", "no approval-eligible role in company")
		}
		if report.Status != model.ReportStatusWait {
			return nil, apperr.Newf(apperr.KindConflict, "report is %s, approvals only apply while WAIT", report.Status)
		}

		step := findStep(report.Steps, func(st model.ApprovalStep) bool {
			return st.ApproverID == actor.UserID
		})
		if step == nil {
			return nil, s.deny(actor, "approve", "not an approver of this report")
		}
		if step.Status != model.StepStatusWait {
			return nil, apperr.Newf(apperr.KindConflict, "step is already %s", step.Status)
		}

		now := time.Now()
		step.Status = model.StepStatusApproved
		step.ActedAt = &now
		step.Signature = signature
		return step, nil
	})
}

func (s *reportService) Reject(ctx context.Context, actor Actor, reportID, reason string) (ReportResponse, error) {
	if reason == "" {
		return ReportResponse{}, apperr.Validation("rejection reason is required")
	}

	return s.actOnStep(ctx, actor, reportID, model.ActionRejectStep, func(rs permission.RoleSet, report *model.ExpenseReport) (*model.ApprovalStep, error) {
		if !rs.CanApproveStep() {
			return nil, s.deny(actor, "reject", "no approval-eligible role in company")
		}
		if report.Status != model.ReportStatusWait {
			return nil, apperr.Newf(apperr.KindConflict, "report is %s, rejections only apply while WAIT", report.Status)
		}

		step := findStep(report.Steps, func(st model.ApprovalStep) bool {
			return st.ApproverID == actor.UserID
		})
		if step == nil {
			return nil, s.deny(actor, "reject", "not an approver of this report")
		}
		if step.Status != model.StepStatusWait {
			return nil, apperr.Newf(apperr.KindConflict, "step is already %s", step.Status)
		}

		now := time.Now()
		step.Status = model.StepStatusRejected
		step.ActedAt = &now
		step.RejectionReason = reason
		return step, nil
	})
}

func (s *reportService) CancelApproval(ctx context.Context, actor Actor, reportID string) (ReportResponse, error) {
	return s.actOnStep(ctx, actor, reportID, model.ActionCancelApproval, func(rs permission.RoleSet, report *model.ExpenseReport) (*model.ApprovalStep, error) {
		if report.Status != model.ReportStatusApproved {
			return nil, apperr.Newf(apperr.KindConflict, "report is %s, cancel-approval only applies while APPROVED", report.Status)
		}

		step := mostRecentApproved(report.Steps)
		if step == nil || step.ApproverID != actor.UserID {
			return nil, s.deny(actor, "cancel-approval", "only the most recent approver may cancel")
		}

		step.Status = model.StepStatusWait
		step.ActedAt = nil
		step.Signature = ""
		return step, nil
	})
}

func (s *reportService) CancelRejection(ctx context.Context, actor Actor, reportID string) (ReportResponse, error) {
	return s.actOnStep(ctx, actor, reportID, model.ActionCancelRejection, func(rs permission.RoleSet, report *model.ExpenseReport) (*model.ApprovalStep, error) {
		if report.Status != model.ReportStatusRejected {
			return nil, apperr.Newf(apperr.KindConflict, "report is %s, cancel-rejection only applies while REJECTED", report.Status)
		}

		step := findStep(report.Steps, func(st model.ApprovalStep) bool {
			return st.Status == model.StepStatusRejected
		})
		if step == nil || step.ApproverID != actor.UserID {
			return nil, s.deny(actor, "cancel-rejection", "only the rejecting approver may cancel")
		}

		step.Status = model.StepStatusWait
		step.ActedAt = nil
		step.RejectionReason = ""
		return step, nil
	})
}

func (s *reportService) MarkPaid(ctx context.Context, actor Actor, reportID string) (ReportResponse, error) {
	id, err := parseID(reportID, "report id")
	if err != nil {
		return ReportResponse{}, err
	}

	var report *model.ExpenseReport
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rs, resolveErr := s.resolve(txCtx, actor)
		if resolveErr != nil {
			return resolveErr
		}
		if !rs.IsPayrollTier() {
			return s.deny(actor, "mark-paid", "requires a financial-approver-tier role")
		}

		report, err = s.lockReport(txCtx, actor, id)
		if err != nil {
			return err
		}
		if !workflow.CanTransition(report.Status, model.ReportStatusPaid) {
			return apperr.Newf(apperr.KindConflict, "report is %s, payment only applies while APPROVED", report.Status)
		}

		now := time.Now()
		report.Status = model.ReportStatusPaid
		report.PaidAt = &now
		report.PaidBy = &actor.UserID
		report.TaxState = model.TaxStateUncollected

		if saveErr := s.reports.Save(txCtx, report); saveErr != nil {
			return fmt.Errorf("failed to mark report paid: %w", saveErr)
		}

		return s.writeAudit(txCtx, actor, model.ActionMarkPaid, report.ID.String(), report.Title, map[string]interface{}{
			"total": report.TotalAmount.StringFixed(4),
		})
	})
	if err != nil {
		return ReportResponse{}, err
	}

	s.broadcast(*report)
	return toReportResponse(*report), nil
}

func (s *reportService) AppendStep(ctx context.Context, actor Actor, reportID, newApproverID string) (ReportResponse, error) {
	id, err := parseID(reportID, "report id")
	if err != nil {
		return ReportResponse{}, err
	}
	approverID, err := parseID(newApproverID, "approver id")
	if err != nil {
		return ReportResponse{}, err
	}

	var report *model.ExpenseReport
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rs, resolveErr := s.resolve(txCtx, actor)
		if resolveErr != nil {
			return resolveErr
		}

		report, err = s.lockReport(txCtx, actor, id)
		if err != nil {
			return err
		}
		if report.DrafterID != actor.UserID && !rs.IsAdminTier() {
			return s.deny(actor, "append-step", "requires drafter or admin-tier standing")
		}
		if report.Status != model.ReportStatusWait {
			return apperr.Newf(apperr.KindConflict, "report is %s, approvers can only be added while WAIT", report.Status)
		}

		step, chainErr := s.chain.NextStep(txCtx, actor.CompanyID, report.Steps, approverID)
		if chainErr != nil {
			return chainErr
		}
		step.ReportID = report.ID

		if createErr := s.reports.CreateSteps(txCtx, []model.ApprovalStep{*step}); createErr != nil {
			return fmt.Errorf("failed to append approval step: %w", createErr)
		}
		report.Steps = append(report.Steps, *step)

		return s.writeAudit(txCtx, actor, model.ActionAppendStep, report.ID.String(), report.Title, map[string]interface{}{
			"approver_id": approverID.String(),
			"position":    step.Position,
		})
	})
	if err != nil {
		return ReportResponse{}, err
	}

	return toReportResponse(*report), nil
}

func (s *reportService) AttachReceipt(ctx context.Context, actor Actor, reportID, receiptURL string) (ReportResponse, error) {
	if receiptURL == "" {
		return ReportResponse{}, apperr.Validation("receipt_url is required")
	}

	id, err := parseID(reportID, "report id")
	if err != nil {
		return ReportResponse{}, err
	}

	var report *model.ExpenseReport
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, resolveErr := s.resolve(txCtx, actor); resolveErr != nil {
			return resolveErr
		}

		report, err = s.lockReport(txCtx, actor, id)
		if err != nil {
			return err
		}
		if report.DrafterID != actor.UserID {
			return s.deny(actor, "attach-receipt", "only the drafter may attach receipts")
		}
		if report.Status != model.ReportStatusPaid {
			return apperr.Newf(apperr.KindConflict, "report is %s, receipts attach after payment", report.Status)
		}

		report.ReceiptURL = receiptURL
		if saveErr := s.reports.Save(txCtx, report); saveErr != nil {
			return fmt.Errorf("failed to attach receipt: %w", saveErr)
		}

		return s.writeAudit(txCtx, actor, model.ActionAttachReceipt, report.ID.String(), report.Title, map[string]interface{}{
			"receipt_url": receiptURL,
		})
	})
	if err != nil {
		return ReportResponse{}, err
	}

	return toReportResponse(*report), nil
}

// actOnStep runs the shared transactional skeleton of the four step-level
// operations: lock the report, let mutate change exactly one step, recompute
// the aggregate status from the full step list, persist both.
func (s *reportService) actOnStep(
	ctx context.Context,
	actor Actor,
	reportID string,
	action string,
	mutate func(rs permission.RoleSet, report *model.ExpenseReport) (*model.ApprovalStep, error),
) (ReportResponse, error) {
	id, err := parseID(reportID, "report id")
	if err != nil {
		return ReportResponse{}, err
	}

	var report *model.ExpenseReport
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		rs, resolveErr := s.resolve(txCtx, actor)
		if resolveErr != nil {
			return resolveErr
		}

		report, err = s.lockReport(txCtx, actor, id)
		if err != nil {
			return err
		}

		step, mutateErr := mutate(rs, report)
		if mutateErr != nil {
			return mutateErr
		}

		if saveErr := s.reports.SaveStep(txCtx, step); saveErr != nil {
			return fmt.Errorf("failed to save approval step: %w", saveErr)
		}

		next := workflow.AggregateStatus(report.Steps)
		if next != report.Status {
			if !workflow.CanTransition(report.Status, next) {
				return apperr.Newf(apperr.KindConflict, "illegal transition %s -> %s", report.Status, next)
			}
			report.Status = next
			if saveErr := s.reports.Save(txCtx, report); saveErr != nil {
				return fmt.Errorf("failed to update report status: %w", saveErr)
			}
		}

		return s.writeAudit(txCtx, actor, action, report.ID.String(), report.Title, map[string]interface{}{
			"step_approver": step.ApproverID.String(),
			"step_position": step.Position,
			"status":        report.Status,
		})
	})
	if err != nil {
		return ReportResponse{}, err
	}

	s.broadcast(*report)
	return toReportResponse(*report), nil
}

// --- Helpers ---

func (s *reportService) resolve(ctx context.Context, actor Actor) (permission.RoleSet, error) {
	rs, err := s.resolver.Resolve(ctx, actor.UserID, actor.CompanyID)
	if err != nil {
		return rs, fmt.Errorf("failed to resolve permissions: %w", err)
	}
	if !rs.Member {
		return rs, s.deny(actor, "resolve", "no membership in company")
	}
	return rs, nil
}

// deny logs a security-relevant event and returns a PermissionDenied error.
func (s *reportService) deny(actor Actor, operation, reason string) error {
	s.log.Warn("permission denied",
		zap.String("operation", operation),
		zap.String("user_id", actor.UserID.String()),
		zap.String("company_id", actor.CompanyID.String()),
		zap.String("reason", reason))
	return apperr.Permission(reason)
}

func (s *reportService) lockReport(ctx context.Context, actor Actor, id uuid.UUID) (*model.ExpenseReport, error) {
	report, err := s.reports.FindForUpdate(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, notFoundOr(err, "report")
	}
	return report, nil
}

func (s *reportService) checkBudget(ctx context.Context, companyID uuid.UUID, items []model.LineItem) ([]string, error) {
	totals := make(map[string]decimal.Decimal)
	order := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := totals[item.Category]; !ok {
			order = append(order, item.Category)
		}
		totals[item.Category] = totals[item.Category].Add(item.Amount)
	}

	period := time.Now().Format("2006-01")
	var warnings []string
	for _, category := range order {
		result, err := s.budget.CheckAndWarn(ctx, companyID, category, totals[category], period)
		if err != nil {
			return nil, apperr.External("budget check failed", err)
		}
		switch result.Level {
		case BudgetLevelBlocking:
			return nil, apperr.Newf(apperr.KindValidation, "budget exceeded for category %q: %s", category, result.Message)
		case BudgetLevelWarning:
			warnings = append(warnings, result.Message)
		}
	}
	return warnings, nil
}

func (s *reportService) writeAudit(ctx context.Context, actor Actor, action, entityID, entityName string, details interface{}) error {
	payload := ""
	if details != nil {
		raw, _ := json.Marshal(details)
		payload = string(raw)
	}
	entry := &model.AuditLog{
		CompanyID:  &actor.CompanyID,
		UserID:     &actor.UserID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    payload,
	}
	if err := s.audits.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *reportService) broadcast(report model.ExpenseReport) {
	if s.hub == nil {
		return
	}
	event, _ := json.Marshal(map[string]string{
		"type":       "report_status",
		"report_id":  report.ID.String(),
		"company_id": report.CompanyID.String(),
		"status":     report.Status,
	})
	select {
	case s.hub.GetBroadcast() <- event:
	default:
	}
}

func parseLineItems(reqs []LineItemRequest) ([]model.LineItem, decimal.Decimal, error) {
	if len(reqs) == 0 {
		return nil, decimal.Zero, apperr.Validation("line_items must not be empty")
	}

	items := make([]model.LineItem, 0, len(reqs))
	total := decimal.Zero
	for i, req := range reqs {
		if req.Category == "" {
			return nil, decimal.Zero, apperr.Newf(apperr.KindValidation, "line item %d: category is required", i+1)
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			return nil, decimal.Zero, apperr.Newf(apperr.KindValidation, "line item %d: invalid amount %q", i+1, req.Amount)
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			return nil, decimal.Zero, apperr.Newf(apperr.KindValidation, "line item %d: amount must be greater than 0", i+1)
		}

		items = append(items, model.LineItem{
			Category:      req.Category,
			Description:   req.Description,
			Amount:        amount,
			TaxDeductible: req.TaxDeductible,
		})
		total = total.Add(amount)
	}

	return items, total, nil
}

func parseReportDate(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, apperr.Validation("invalid report_date format (expected YYYY-MM-DD)")
	}
	return t, nil
}

func parseID(value, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, apperr.Newf(apperr.KindValidation, "invalid %s", name)
	}
	return id, nil
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, apperr.Newf(apperr.KindValidation, "invalid approver id %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func notFoundOr(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity)
	}
	return fmt.Errorf("failed to fetch %s: %w", entity, err)
}

func findStep(steps []model.ApprovalStep, match func(model.ApprovalStep) bool) *model.ApprovalStep {
	for i := range steps {
		if match(steps[i]) {
			return &steps[i]
		}
	}
	return nil
}

// mostRecentApproved picks the approved step with the latest action time,
// falling back to the highest position when timestamps tie or are missing.
func mostRecentApproved(steps []model.ApprovalStep) *model.ApprovalStep {
	var latest *model.ApprovalStep
	for i := range steps {
		step := &steps[i]
		if step.Status != model.StepStatusApproved {
			continue
		}
		if latest == nil {
			latest = step
			continue
		}
		switch {
		case step.ActedAt != nil && latest.ActedAt != nil:
			if step.ActedAt.After(*latest.ActedAt) ||
				(step.ActedAt.Equal(*latest.ActedAt) && step.Position > latest.Position) {
				latest = step
			}
		case step.Position > latest.Position:
			latest = step
		}
	}
	return latest
}

func toReportResponse(r model.ExpenseReport) ReportResponse {
	resp := ReportResponse{
		ID:                r.ID.String(),
		CompanyID:         r.CompanyID.String(),
		DrafterID:         r.DrafterID.String(),
		Title:             r.Title,
		ReportDate:        r.ReportDate.Format("2006-01-02"),
		TotalAmount:       r.TotalAmount.StringFixed(4),
		Status:            r.Status,
		Restricted:        r.Restricted,
		ReceiptURL:        r.ReceiptURL,
		TaxState:          r.TaxState,
		RevisionRequested: r.RevisionRequested,
		RevisionReason:    r.RevisionReason,
		CreatedAt:         r.CreatedAt.Format(time.RFC3339),
	}

	if r.PaidAt != nil {
		paidAt := r.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &paidAt
	}

	resp.LineItems = make([]LineItemResponse, 0, len(r.LineItems))
	for _, item := range r.LineItems {
		resp.LineItems = append(resp.LineItems, LineItemResponse{
			ID:            item.ID.String(),
			Category:      item.Category,
			Description:   item.Description,
			Amount:        item.Amount.StringFixed(4),
			TaxDeductible: item.TaxDeductible,
		})
	}

	resp.Steps = make([]StepResponse, 0, len(r.Steps))
	for _, step := range r.Steps {
		sr := StepResponse{
			ID:              step.ID.String(),
			Position:        step.Position,
			ApproverID:      step.ApproverID.String(),
			Status:          step.Status,
			Signature:       step.Signature,
			RejectionReason: step.RejectionReason,
		}
		if step.ActedAt != nil {
			acted := step.ActedAt.Format(time.RFC3339)
			sr.ActedAt = &acted
		}
		resp.Steps = append(resp.Steps, sr)
	}

	return resp
}
