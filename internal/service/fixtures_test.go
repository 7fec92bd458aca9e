package service

import (
	"context"
	"sync"
	"testing"

	"backend/internal/model"
	"backend/internal/permission"
	"backend/internal/repository"
	"backend/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// --- In-memory repository fakes ---

type memReportRepo struct {
	mu      sync.Mutex
	reports map[uuid.UUID]*model.ExpenseReport
}

func newMemReportRepo() *memReportRepo {
	return &memReportRepo{reports: make(map[uuid.UUID]*model.ExpenseReport)}
}

func (r *memReportRepo) Create(_ context.Context, report *model.ExpenseReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}
	for i := range report.LineItems {
		report.LineItems[i].ID = uuid.New()
		report.LineItems[i].ReportID = report.ID
	}
	for i := range report.Steps {
		report.Steps[i].ID = uuid.New()
		report.Steps[i].ReportID = report.ID
	}
	r.reports[report.ID] = report
	return nil
}

func (r *memReportRepo) Save(context.Context, *model.ExpenseReport) error { return nil }

func (r *memReportRepo) Delete(_ context.Context, report *model.ExpenseReport) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reports, report.ID)
	return nil
}

func (r *memReportRepo) FindByID(_ context.Context, companyID, id uuid.UUID) (*model.ExpenseReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.reports[id]
	if !ok || report.CompanyID != companyID {
		return nil, gorm.ErrRecordNotFound
	}
	return report, nil
}

func (r *memReportRepo) FindForUpdate(ctx context.Context, companyID, id uuid.UUID) (*model.ExpenseReport, error) {
	return r.FindByID(ctx, companyID, id)
}

func (r *memReportRepo) List(_ context.Context, companyID uuid.UUID, filter repository.ReportFilter) ([]model.ExpenseReport, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ExpenseReport
	for _, report := range r.reports {
		if report.CompanyID != companyID {
			continue
		}
		if filter.Status != "" && report.Status != filter.Status {
			continue
		}
		if !filter.SeeAllRestricted && report.Restricted && report.DrafterID != filter.RequesterID {
			continue
		}
		out = append(out, *report)
	}
	return out, int64(len(out)), nil
}

func (r *memReportRepo) Summarize(_ context.Context, companyID uuid.UUID, requesterID uuid.UUID, seeAllRestricted bool) ([]repository.StatusSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[string]int64)
	totals := make(map[string]decimal.Decimal)
	for _, report := range r.reports {
		if report.CompanyID != companyID {
			continue
		}
		if !seeAllRestricted && report.Restricted && report.DrafterID != requesterID {
			continue
		}
		counts[report.Status]++
		totals[report.Status] = totals[report.Status].Add(report.TotalAmount)
	}
	var rows []repository.StatusSummary
	for status, count := range counts {
		rows = append(rows, repository.StatusSummary{Status: status, Count: count, TotalAmount: totals[status].StringFixed(4)})
	}
	return rows, nil
}

func (r *memReportRepo) ReplaceLineItems(_ context.Context, report *model.ExpenseReport, items []model.LineItem) error {
	for i := range items {
		items[i].ID = uuid.New()
		items[i].ReportID = report.ID
	}
	report.LineItems = items
	return nil
}

func (r *memReportRepo) SaveStep(context.Context, *model.ApprovalStep) error { return nil }

func (r *memReportRepo) CreateSteps(_ context.Context, steps []model.ApprovalStep) error {
	for i := range steps {
		if steps[i].ID == uuid.Nil {
			steps[i].ID = uuid.New()
		}
	}
	return nil
}

type memAuditRepo struct {
	mu      sync.Mutex
	entries []model.AuditLog
}

func (r *memAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *memAuditRepo) ListByCompany(_ context.Context, companyID uuid.UUID, _, _ int) ([]model.AuditLog, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AuditLog
	for _, e := range r.entries {
		if e.CompanyID != nil && *e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memAuditRepo) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Action)
	}
	return out
}

// --- Collaborator stubs ---

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}

type stubResolver struct {
	roles map[string]string // userID|companyID -> role
}

func resolverKey(userID, companyID uuid.UUID) string {
	return userID.String() + "|" + companyID.String()
}

func (s *stubResolver) Resolve(_ context.Context, userID, companyID uuid.UUID) (permission.RoleSet, error) {
	role, ok := s.roles[resolverKey(userID, companyID)]
	if !ok {
		return permission.RoleSet{UserID: userID, CompanyID: companyID}, nil
	}
	return permission.RoleSet{UserID: userID, CompanyID: companyID, Role: role, Member: true}, nil
}

type stubFinder struct {
	financial *model.Membership
}

func (s *stubFinder) FirstByRole(context.Context, uuid.UUID, string) (*model.Membership, error) {
	if s.financial == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return s.financial, nil
}

type stubBudget struct {
	results map[string]BudgetResult // per category
	err     error
}

func (s *stubBudget) CheckAndWarn(_ context.Context, _ uuid.UUID, category string, _ decimal.Decimal, _ string) (BudgetResult, error) {
	if s.err != nil {
		return BudgetResult{}, s.err
	}
	if result, ok := s.results[category]; ok {
		return result, nil
	}
	return BudgetResult{Level: BudgetLevelNone}, nil
}

type stubAuditEngine struct {
	mu    sync.Mutex
	calls int
}

func (s *stubAuditEngine) Evaluate(context.Context, model.ExpenseReport, []model.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return nil
}

func (s *stubAuditEngine) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// --- Test environment ---

type testEnv struct {
	companyID      uuid.UUID
	otherCompanyID uuid.UUID

	drafter   uuid.UUID
	approver  uuid.UUID
	financial uuid.UUID
	admin     uuid.UUID
	taxProc   uuid.UUID
	outsider  uuid.UUID

	reports *memReportRepo
	audits  *memAuditRepo
	budget  *stubBudget
	engine  *stubAuditEngine

	svc ReportService
	tax TaxService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		companyID:      uuid.New(),
		otherCompanyID: uuid.New(),
		drafter:        uuid.New(),
		approver:       uuid.New(),
		financial:      uuid.New(),
		admin:          uuid.New(),
		taxProc:        uuid.New(),
		outsider:       uuid.New(),
		reports:        newMemReportRepo(),
		audits:         &memAuditRepo{},
		budget:         &stubBudget{},
		engine:         &stubAuditEngine{},
	}

	resolver := &stubResolver{roles: map[string]string{
		resolverKey(env.drafter, env.companyID):       model.RoleEmployee,
		resolverKey(env.approver, env.companyID):      model.RoleApprover,
		resolverKey(env.financial, env.companyID):     model.RoleFinancialApprover,
		resolverKey(env.admin, env.companyID):         model.RoleAdmin,
		resolverKey(env.taxProc, env.companyID):       model.RoleTaxProcessor,
		resolverKey(env.outsider, env.otherCompanyID): model.RoleEmployee,
	}}

	chain := workflow.NewChainResolver(resolver, &stubFinder{
		financial: &model.Membership{CompanyID: env.companyID, UserID: env.financial, Role: model.RoleFinancialApprover},
	})

	log := zap.NewNop()
	env.svc = NewReportService(env.reports, env.audits, passthroughTx{}, resolver, chain, env.budget, env.engine, log, nil)
	env.tax = NewTaxService(env.reports, env.audits, passthroughTx{}, resolver, log)
	return env
}

func (e *testEnv) actor(userID uuid.UUID) Actor {
	return Actor{UserID: userID, CompanyID: e.companyID}
}

func items(categories ...string) []LineItemRequest {
	out := make([]LineItemRequest, 0, len(categories))
	for _, c := range categories {
		out = append(out, LineItemRequest{Category: c, Amount: "100.00"})
	}
	return out
}

// submitReport creates a WAIT report drafted by env.drafter with the approver
// chain [approver, financial].
func (e *testEnv) submitReport(t *testing.T) ReportResponse {
	t.Helper()
	resp, err := e.svc.Submit(context.Background(), e.actor(e.drafter), SubmitReportRequest{
		Title:       "team offsite",
		LineItems:   items("travel", "meals"),
		ApproverIDs: []string{e.approver.String()},
	})
	require.NoError(t, err)
	return resp
}

// paidReport drives a report through the full approval flow to PAID.
func (e *testEnv) paidReport(t *testing.T) ReportResponse {
	t.Helper()
	ctx := context.Background()
	resp := e.submitReport(t)

	_, err := e.svc.Approve(ctx, e.actor(e.approver), resp.ID, "")
	require.NoError(t, err)
	_, err = e.svc.Approve(ctx, e.actor(e.financial), resp.ID, "")
	require.NoError(t, err)

	paid, err := e.svc.MarkPaid(ctx, e.actor(e.financial), resp.ID)
	require.NoError(t, err)
	return paid
}
