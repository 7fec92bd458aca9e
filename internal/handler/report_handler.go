package handler

import (
	"net/http"

	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	reports := router.Group("/api/reports")
	{
		reports.POST("", h.SubmitReport)
		reports.GET("", h.ListReports)
		reports.GET("/summary", h.GetSummary)
		reports.GET("/:id", h.GetReport)
		reports.PUT("/:id", h.UpdateReport)
		reports.DELETE("/:id", h.DeleteReport)
		reports.PUT("/:id/approve", h.ApproveReport)
		reports.PUT("/:id/reject", h.RejectReport)
		reports.PUT("/:id/cancel-approval", h.CancelApproval)
		reports.PUT("/:id/cancel-rejection", h.CancelRejection)
		reports.PUT("/:id/pay", h.MarkPaid)
		reports.PUT("/:id/receipt", h.AttachReceipt)
		reports.POST("/:id/steps", h.AppendStep)
	}
}

// SubmitReport creates an expense report and resolves its approval chain
// @Summary      Submit expense report
// @Description  Creates a report with line items, classifies confidentiality, and builds the approval chain
// @Tags         reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string                       true  "Company ID"
// @Param        payload       body      service.SubmitReportRequest  true  "Report Payload"
// @Success      201           {object}  response.Response{data=service.ReportResponse}
// @Failure      400           {object}  response.Response
// @Failure      403           {object}  response.Response
// @Router       /api/reports [post]
func (h *ReportHandler) SubmitReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	report, err := h.reportService.Submit(c.Request.Context(), actor, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, report))
}

// ListReports returns the reports visible to the caller, optionally filtered by status
// @Summary      List expense reports
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string  true   "Company ID"
// @Param        status        query     string  false  "Filter by status"
// @Param        page          query     int     false  "Page"
// @Param        limit         query     int     false  "Limit"
// @Success      200           {object}  response.Response{data=[]service.ReportResponse}
// @Router       /api/reports [get]
func (h *ReportHandler) ListReports(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	reports, total, err := h.reportService.List(c.Request.Context(), actor, service.ReportFilter{
		Status: c.Query("status"),
		Page:   params.Page,
		Limit:  params.Limit,
	})
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, reports, params.Page, params.Limit, total))
}

// GetSummary returns per-status counts and totals for the caller's visible reports
// @Summary      Summarize expense reports by status
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string  true  "Company ID"
// @Success      200           {object}  response.Response
// @Router       /api/reports/summary [get]
func (h *ReportHandler) GetSummary(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	summary, err := h.reportService.Summary(c.Request.Context(), actor)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, summary))
}

// GetReport returns a single report with line items and approval steps
// @Summary      Get expense report
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string  true  "Company ID"
// @Param        id            path      string  true  "Report ID"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      404           {object}  response.Response
// @Router       /api/reports/{id} [get]
func (h *ReportHandler) GetReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	report, err := h.reportService.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// UpdateReport edits title, date, and line items of a pending report
// @Summary      Update expense report
// @Description  Drafter-only, and only while the report is still awaiting approval
// @Tags         reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string                       true  "Company ID"
// @Param        id            path      string                       true  "Report ID"
// @Param        payload       body      service.UpdateReportRequest  true  "Update Payload"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      409           {object}  response.Response
// @Router       /api/reports/{id} [put]
func (h *ReportHandler) UpdateReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.UpdateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	report, err := h.reportService.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// DeleteReport soft-deletes a pending report
// @Summary      Delete expense report
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string  true  "Company ID"
// @Param        id            path      string  true  "Report ID"
// @Success      200           {object}  response.Response
// @Failure      409           {object}  response.Response
// @Router       /api/reports/{id} [delete]
func (h *ReportHandler) DeleteReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	if err := h.reportService.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"deleted": true}))
}

type approveRequest struct {
	Signature string `json:"signature"`
}

// ApproveReport approves the caller's pending step on a report
// @Summary      Approve a pending step
// @Tags         reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string          true   "Company ID"
// @Param        id            path      string          true   "Report ID"
// @Param        payload       body      approveRequest  false  "Optional signature"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      403           {object}  response.Response
// @Failure      409           {object}  response.Response
// @Router       /api/reports/{id}/approve [put]
func (h *ReportHandler) ApproveReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req approveRequest
	_ = c.ShouldBindJSON(&req) // Allow empty body, signature is optional

	report, err := h.reportService.Approve(c.Request.Context(), actor, c.Param("id"), req.Signature)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectReport rejects the caller's pending step with a mandatory reason
// @Summary      Reject a pending step
// @Tags         reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string         true  "Company ID"
// @Param        id            path      string         true  "Report ID"
// @Param        payload       body      rejectRequest  true  "Rejection reason"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      400           {object}  response.Response
// @Failure      403           {object}  response.Response
// @Router       /api/reports/{id}/reject [put]
func (h *ReportHandler) RejectReport(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Rejection reason is required"))
		return
	}

	report, err := h.reportService.Reject(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// CancelApproval reverts the most recent approval while the report is APPROVED
// @Summary      Cancel an approval
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string  true  "Company ID"
// @Param        id            path      string  true  "Report ID"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      409           {object}  response.Response
// @Router       /api/reports/{id}/cancel-approval [put]
func (h *ReportHandler) CancelApproval(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	report, err := h.reportService.CancelApproval(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// CancelRejection reverts a rejection, putting the report back in WAIT
// @Summary      Cancel a rejection
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string  true  "Company ID"
// @Param        id            path      string  true  "Report ID"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      409           {object}  response.Response
// @Router       /api/reports/{id}/cancel-rejection [put]
func (h *ReportHandler) CancelRejection(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	report, err := h.reportService.CancelRejection(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// MarkPaid records payout of a fully approved report
// @Summary      Mark report paid
// @Tags         reports
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string  true  "Company ID"
// @Param        id            path      string  true  "Report ID"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      403           {object}  response.Response
// @Failure      409           {object}  response.Response
// @Router       /api/reports/{id}/pay [put]
func (h *ReportHandler) MarkPaid(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	report, err := h.reportService.MarkPaid(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

type attachReceiptRequest struct {
	ReceiptURL string `json:"receipt_url" binding:"required"`
}

// AttachReceipt stores the receipt reference on a paid report
// @Summary      Attach receipt
// @Tags         reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string                true  "Company ID"
// @Param        id            path      string                true  "Report ID"
// @Param        payload       body      attachReceiptRequest  true  "Receipt URL"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Router       /api/reports/{id}/receipt [put]
func (h *ReportHandler) AttachReceipt(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req attachReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "receipt_url is required"))
		return
	}

	report, err := h.reportService.AttachReceipt(c.Request.Context(), actor, c.Param("id"), req.ReceiptURL)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

type appendStepRequest struct {
	ApproverID string `json:"approver_id" binding:"required"`
}

// AppendStep adds an approver to the end of a pending report's chain
// @Summary      Append approval step
// @Tags         reports
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string             true  "Company ID"
// @Param        id            path      string             true  "Report ID"
// @Param        payload       body      appendStepRequest  true  "New approver"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      409           {object}  response.Response
// @Router       /api/reports/{id}/steps [post]
func (h *ReportHandler) AppendStep(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req appendStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "approver_id is required"))
		return
	}

	report, err := h.reportService.AppendStep(c.Request.Context(), actor, c.Param("id"), req.ApproverID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}
