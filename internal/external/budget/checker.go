package budget

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"backend/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Client talks to the external budget-threshold checker. When no base URL is
// configured the checker is disabled and every check passes.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

type checkRequest struct {
	CompanyID string `json:"company_id"`
	Category  string `json:"category"`
	Amount    string `json:"amount"`
	Period    string `json:"period"`
}

// CheckAndWarn asks the checker whether the category spend fits the tenant's
// budget for the period. Transport failures surface to the caller — the
// checker is a preventive control, so an unreachable checker blocks
// submission.
func (c *Client) CheckAndWarn(ctx context.Context, companyID uuid.UUID, category string, amount decimal.Decimal, period string) (service.BudgetResult, error) {
	if c.baseURL == "" {
		return service.BudgetResult{Level: service.BudgetLevelNone}, nil
	}

	payload, err := json.Marshal(checkRequest{
		CompanyID: companyID.String(),
		Category:  category,
		Amount:    amount.StringFixed(4),
		Period:    period,
	})
	if err != nil {
		return service.BudgetResult{}, fmt.Errorf("failed to encode budget check: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/check", bytes.NewReader(payload))
	if err != nil {
		return service.BudgetResult{}, fmt.Errorf("failed to build budget check request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return service.BudgetResult{}, fmt.Errorf("budget checker unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return service.BudgetResult{}, fmt.Errorf("budget checker returned status %d", resp.StatusCode)
	}

	var result service.BudgetResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return service.BudgetResult{}, fmt.Errorf("failed to decode budget check response: %w", err)
	}

	c.log.Debug("budget check",
		zap.String("company_id", companyID.String()),
		zap.String("category", category),
		zap.String("level", result.Level))

	return result, nil
}
