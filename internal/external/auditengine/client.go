package auditengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"backend/internal/model"

	"go.uber.org/zap"
)

// Client submits freshly created reports to the rule-based audit engine.
// The engine is a detective control: callers invoke Evaluate fire-and-forget
// and log failures without rolling anything back. When no base URL is
// configured the engine is disabled.
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

type evaluateRequest struct {
	ReportID  string         `json:"report_id"`
	CompanyID string         `json:"company_id"`
	DrafterID string         `json:"drafter_id"`
	Total     string         `json:"total"`
	Items     []evaluateItem `json:"items"`
}

type evaluateItem struct {
	Category string `json:"category"`
	Amount   string `json:"amount"`
}

func (c *Client) Evaluate(ctx context.Context, report model.ExpenseReport, items []model.LineItem) error {
	if c.baseURL == "" {
		return nil
	}

	body := evaluateRequest{
		ReportID:  report.ID.String(),
		CompanyID: report.CompanyID.String(),
		DrafterID: report.DrafterID.String(),
		Total:     report.TotalAmount.StringFixed(4),
	}
	for _, item := range items {
		body.Items = append(body.Items, evaluateItem{
			Category: item.Category,
			Amount:   item.Amount.StringFixed(4),
		})
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode evaluation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/evaluate", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build evaluation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("audit engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("audit engine returned status %d", resp.StatusCode)
	}

	c.log.Debug("audit engine accepted report", zap.String("report_id", report.ID.String()))
	return nil
}
