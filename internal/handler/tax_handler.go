package handler

import (
	"net/http"

	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type TaxHandler struct {
	taxService service.TaxService
}

func NewTaxHandler(taxService service.TaxService) *TaxHandler {
	return &TaxHandler{taxService: taxService}
}

func (h *TaxHandler) RegisterRoutes(router *gin.RouterGroup) {
	tax := router.Group("/api/reports/:id/tax")
	{
		tax.PUT("/collect", h.CollectTax)
		tax.PUT("/complete", h.CompleteTax)
		tax.PUT("/revision", h.RequestRevision)
		tax.PUT("/revision/ack", h.AcknowledgeRevision)
	}

	router.POST("/api/tax/batch-complete", h.BatchComplete)
}

// CollectTax marks tax data gathered for a paid report
// @Summary      Collect tax data
// @Tags         tax
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string  true  "Company ID"
// @Param        id            path      string  true  "Report ID"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      403           {object}  response.Response
// @Failure      409           {object}  response.Response
// @Router       /api/reports/{id}/tax/collect [put]
func (h *TaxHandler) CollectTax(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	report, err := h.taxService.Collect(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// CompleteTax finalizes tax processing for a collected report
// @Summary      Complete tax processing
// @Tags         tax
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string  true  "Company ID"
// @Param        id            path      string  true  "Report ID"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      409           {object}  response.Response
// @Router       /api/reports/{id}/tax/complete [put]
func (h *TaxHandler) CompleteTax(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	report, err := h.taxService.Complete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// BatchComplete completes tax processing for many reports, skipping ineligible ones
// @Summary      Batch-complete tax processing
// @Tags         tax
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string                        true  "Company ID"
// @Param        payload       body      service.BatchCompleteRequest  true  "Report IDs"
// @Success      200           {object}  response.Response{data=[]service.BatchCompleteResult}
// @Failure      400           {object}  response.Response
// @Router       /api/tax/batch-complete [post]
func (h *TaxHandler) BatchComplete(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.BatchCompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "report_ids is required"))
		return
	}

	results, err := h.taxService.BatchComplete(c.Request.Context(), actor, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, results))
}

// RequestRevision flags a report's tax data for rework
// @Summary      Request tax revision
// @Tags         tax
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string                  true  "Company ID"
// @Param        id            path      string                  true  "Report ID"
// @Param        payload       body      service.RevisionRequest true  "Revision reason"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      409           {object}  response.Response
// @Router       /api/reports/{id}/tax/revision [put]
func (h *TaxHandler) RequestRevision(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.RevisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Revision reason is required"))
		return
	}

	report, err := h.taxService.RequestRevision(c.Request.Context(), actor, c.Param("id"), req.Reason)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}

// AcknowledgeRevision clears the revision flag once the rework is done
// @Summary      Acknowledge tax revision
// @Tags         tax
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string  true  "Company ID"
// @Param        id            path      string  true  "Report ID"
// @Success      200           {object}  response.Response{data=service.ReportResponse}
// @Failure      409           {object}  response.Response
// @Router       /api/reports/{id}/tax/revision/ack [put]
func (h *TaxHandler) AcknowledgeRevision(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	report, err := h.taxService.AcknowledgeRevision(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}
