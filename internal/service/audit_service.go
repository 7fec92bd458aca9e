package service

import (
	"context"
	"fmt"

	"backend/internal/apperr"
	"backend/internal/permission"
	"backend/internal/repository"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, actor Actor, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	audits   repository.AuditRepository
	resolver permission.Resolver
}

// NewAuditService creates a new AuditService instance
func NewAuditService(audits repository.AuditRepository, resolver permission.Resolver) AuditService {
	return &auditService{audits: audits, resolver: resolver}
}

// GetAuditLogs retrieves strictly paginated records for the actor's company.
// Admin tier only.
func (s *auditService) GetAuditLogs(ctx context.Context, actor Actor, page, limit int) ([]AuditLogResponse, int64, error) {
	rs, err := s.resolver.Resolve(ctx, actor.UserID, actor.CompanyID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to resolve permissions: %w", err)
	}
	if !rs.IsAdminTier() {
		return nil, 0, apperr.Permission("requires admin-tier standing")
	}

	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	logs, total, err := s.audits.ListByCompany(ctx, actor.CompanyID, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.Username
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}
