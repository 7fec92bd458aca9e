package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend/internal/apperr"
	"backend/internal/model"
	"backend/internal/permission"
	"backend/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type BatchCompleteRequest struct {
	ReportIDs []string `json:"report_ids" binding:"required"`
}

type BatchCompleteResult struct {
	ReportID string `json:"report_id"`
	Done     bool   `json:"done"`
	Reason   string `json:"reason,omitempty"`
}

type RevisionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// --- Interface ---

// TaxService runs the post-payment sub-flow layered on top of PAID:
// uncollected -> collected -> completed, with an orthogonal
// revision-requested flag.
type TaxService interface {
	Collect(ctx context.Context, actor Actor, reportID string) (ReportResponse, error)
	Complete(ctx context.Context, actor Actor, reportID string) (ReportResponse, error)
	BatchComplete(ctx context.Context, actor Actor, req BatchCompleteRequest) ([]BatchCompleteResult, error)
	RequestRevision(ctx context.Context, actor Actor, reportID, reason string) (ReportResponse, error)
	AcknowledgeRevision(ctx context.Context, actor Actor, reportID string) (ReportResponse, error)
}

type taxService struct {
	reports   repository.ReportRepository
	audits    repository.AuditRepository
	txManager repository.TransactionManager
	resolver  permission.Resolver
	log       *zap.Logger
}

func NewTaxService(
	reports repository.ReportRepository,
	audits repository.AuditRepository,
	txManager repository.TransactionManager,
	resolver permission.Resolver,
	log *zap.Logger,
) TaxService {
	return &taxService{
		reports:   reports,
		audits:    audits,
		txManager: txManager,
		resolver:  resolver,
		log:       log,
	}
}

// --- Implementation ---

func (s *taxService) Collect(ctx context.Context, actor Actor, reportID string) (ReportResponse, error) {
	return s.mutate(ctx, actor, reportID, model.ActionCollectTax, func(report *model.ExpenseReport) error {
		if report.TaxState != model.TaxStateUncollected {
			return apperr.Newf(apperr.KindConflict, "tax state is %s, collection only applies while UNCOLLECTED", report.TaxState)
		}
		now := time.Now()
		report.TaxState = model.TaxStateCollected
		report.TaxCollectedAt = &now
		report.TaxCollectorID = &actor.UserID
		return nil
	})
}

func (s *taxService) Complete(ctx context.Context, actor Actor, reportID string) (ReportResponse, error) {
	return s.mutate(ctx, actor, reportID, model.ActionCompleteTax, func(report *model.ExpenseReport) error {
		if err := completable(report); err != nil {
			return err
		}
		now := time.Now()
		report.TaxState = model.TaxStateCompleted
		report.TaxCompletedAt = &now
		return nil
	})
}

// BatchComplete iterates reports individually. Ineligible reports are logged
// and reported as skipped; they never fail the batch.
func (s *taxService) BatchComplete(ctx context.Context, actor Actor, req BatchCompleteRequest) ([]BatchCompleteResult, error) {
	if len(req.ReportIDs) == 0 {
		return nil, apperr.Validation("report_ids must not be empty")
	}

	results := make([]BatchCompleteResult, 0, len(req.ReportIDs))
	for _, reportID := range req.ReportIDs {
		if _, err := s.Complete(ctx, actor, reportID); err != nil {
			s.log.Warn("batch tax completion skipped report",
				zap.String("report_id", reportID),
				zap.String("user_id", actor.UserID.String()),
				zap.Error(err))
			results = append(results, BatchCompleteResult{ReportID: reportID, Done: false, Reason: err.Error()})
			continue
		}
		results = append(results, BatchCompleteResult{ReportID: reportID, Done: true})
	}
	return results, nil
}

func (s *taxService) RequestRevision(ctx context.Context, actor Actor, reportID, reason string) (ReportResponse, error) {
	if reason == "" {
		return ReportResponse{}, apperr.Validation("revision reason is required")
	}

	return s.mutate(ctx, actor, reportID, model.ActionRequestTaxRevision, func(report *model.ExpenseReport) error {
		if report.TaxState != model.TaxStateCollected && report.TaxState != model.TaxStateCompleted {
			return apperr.Newf(apperr.KindConflict, "tax state is %s, revisions apply from COLLECTED or COMPLETED", report.TaxState)
		}
		if report.RevisionRequested {
			return apperr.Conflict("a revision is already requested for this report")
		}
		report.RevisionRequested = true
		report.RevisionReason = reason
		return nil
	})
}

func (s *taxService) AcknowledgeRevision(ctx context.Context, actor Actor, reportID string) (ReportResponse, error) {
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
		// Acknowledgement clears the flag: drafter or tax processor only.
		if report.DrafterID != actor.UserID && !rs.CanManageTax() {
			return s.deny(actor, "ack-revision", "requires drafter or tax-processor standing")
		}
		if !report.RevisionRequested {
			return apperr.Conflict("no revision is requested for this report")
		}

		report.RevisionRequested = false
		report.RevisionReason = ""

		if saveErr := s.reports.Save(txCtx, report); saveErr != nil {
			return fmt.Errorf("failed to acknowledge revision: %w", saveErr)
		}
		return s.writeAudit(txCtx, actor, model.ActionAckTaxRevision, report.ID.String(), report.Title, nil)
	})
	if err != nil {
		return ReportResponse{}, err
	}

	return toReportResponse(*report), nil
}

// --- Helpers ---

// mutate is the transactional skeleton shared by tax-processor operations:
// resolve the role, lock the PAID report, apply the change, persist, audit.
func (s *taxService) mutate(
	ctx context.Context,
	actor Actor,
	reportID string,
	action string,
	apply func(report *model.ExpenseReport) error,
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
		if !rs.CanManageTax() {
			return s.deny(actor, action, "requires the tax-processor role")
		}

		report, err = s.lockReport(txCtx, actor, id)
		if err != nil {
			return err
		}
		if report.Status != model.ReportStatusPaid {
			return apperr.Newf(apperr.KindConflict, "report is %s, tax processing applies only after payment", report.Status)
		}

		if applyErr := apply(report); applyErr != nil {
			return applyErr
		}

		if saveErr := s.reports.Save(txCtx, report); saveErr != nil {
			return fmt.Errorf("failed to update tax state: %w", saveErr)
		}
		return s.writeAudit(txCtx, actor, action, report.ID.String(), report.Title, map[string]interface{}{
			"tax_state": report.TaxState,
		})
	})
	if err != nil {
		return ReportResponse{}, err
	}

	return toReportResponse(*report), nil
}

func completable(report *model.ExpenseReport) error {
	switch report.TaxState {
	case model.TaxStateCompleted:
		return apperr.Conflict("tax processing is already completed")
	case model.TaxStateUncollected:
		return apperr.Conflict("tax must be collected before completion")
	}
	return nil
}

func (s *taxService) resolve(ctx context.Context, actor Actor) (permission.RoleSet, error) {
	rs, err := s.resolver.Resolve(ctx, actor.UserID, actor.CompanyID)
	if err != nil {
		return rs, fmt.Errorf("failed to resolve permissions: %w", err)
	}
	if !rs.Member {
		return rs, s.deny(actor, "resolve", "no membership in company")
	}
	return rs, nil
}

func (s *taxService) deny(actor Actor, operation, reason string) error {
	s.log.Warn("permission denied",
		zap.String("operation", operation),
		zap.String("user_id", actor.UserID.String()),
		zap.String("company_id", actor.CompanyID.String()),
		zap.String("reason", reason))
	return apperr.Permission(reason)
}

func (s *taxService) lockReport(ctx context.Context, actor Actor, id uuid.UUID) (*model.ExpenseReport, error) {
	report, err := s.reports.FindForUpdate(ctx, actor.CompanyID, id)
	if err != nil {
		return nil, notFoundOr(err, "report")
	}
	return report, nil
}

func (s *taxService) writeAudit(ctx context.Context, actor Actor, action, entityID, entityName string, details interface{}) error {
	entry := &model.AuditLog{
		CompanyID:  &actor.CompanyID,
		UserID:     &actor.UserID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
	}
	if details != nil {
		raw, _ := json.Marshal(details)
		entry.Details = string(raw)
	}
	if err := s.audits.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
