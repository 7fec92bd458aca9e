package service

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BudgetLevel enum constants
const (
	BudgetLevelNone     = "NONE"
	BudgetLevelWarning  = "WARNING"
	BudgetLevelBlocking = "BLOCKING"
)

// BudgetResult is the outcome of a budget threshold check for one category.
type BudgetResult struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// BudgetChecker is an external collaborator invoked at submit time, before
// persistence. A blocking result (or an unreachable checker) aborts the
// submission.
type BudgetChecker interface {
	CheckAndWarn(ctx context.Context, companyID uuid.UUID, category string, amount decimal.Decimal, period string) (BudgetResult, error)
}

// AuditEngine is an external, detective control invoked after a successful
// submission. Failures are logged and never roll the report back.
type AuditEngine interface {
	Evaluate(ctx context.Context, report model.ExpenseReport, items []model.LineItem) error
}
