package handler

import (
	"net/http"

	"backend/internal/service"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

type CompanyHandler struct {
	companyService service.CompanyService
}

func NewCompanyHandler(companyService service.CompanyService) *CompanyHandler {
	return &CompanyHandler{companyService: companyService}
}

func (h *CompanyHandler) RegisterRoutes(router *gin.RouterGroup) {
	companies := router.Group("/api/companies")
	{
		companies.POST("", h.RegisterCompany)
		companies.PUT("/:id/deactivate", h.DeactivateCompany)
		companies.POST("/:id/join", h.RequestJoin)
	}

	members := router.Group("/api/members")
	{
		members.GET("", h.ListMembers)
		members.PUT("/:id/approve", h.ApproveMembership)
		members.PUT("/:id/role", h.ChangeRole)
	}
}

// RegisterCompany creates a tenant with the caller as its owner
// @Summary      Register company
// @Tags         companies
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.RegisterCompanyRequest  true  "Company Payload"
// @Success      201      {object}  response.Response{data=service.CompanyResponse}
// @Failure      409      {object}  response.Response
// @Router       /api/companies [post]
func (h *CompanyHandler) RegisterCompany(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req service.RegisterCompanyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid request payload: "+err.Error()))
		return
	}

	company, err := h.companyService.Register(c.Request.Context(), userID, req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, company))
}

// DeactivateCompany soft-disables a tenant (super administrators only)
// @Summary      Deactivate company
// @Tags         companies
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Company ID"
// @Success      200  {object}  response.Response{data=service.CompanyResponse}
// @Failure      403  {object}  response.Response
// @Router       /api/companies/{id}/deactivate [put]
func (h *CompanyHandler) DeactivateCompany(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	company, err := h.companyService.Deactivate(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, company))
}

// RequestJoin records a pending membership in a company
// @Summary      Request to join a company
// @Tags         companies
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Company ID"
// @Success      201  {object}  response.Response{data=service.MembershipResponse}
// @Failure      404  {object}  response.Response
// @Router       /api/companies/{id}/join [post]
func (h *CompanyHandler) RequestJoin(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	membership, err := h.companyService.RequestJoin(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, membership))
}

// ListMembers returns the company's memberships, optionally filtered by status
// @Summary      List members
// @Tags         members
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string  true   "Company ID"
// @Param        status        query     string  false  "Filter by membership status"
// @Param        page          query     int     false  "Page"
// @Param        limit         query     int     false  "Limit"
// @Success      200           {object}  response.Response{data=[]service.MembershipResponse}
// @Router       /api/members [get]
func (h *CompanyHandler) ListMembers(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	params := pagination.Parse(c)
	members, total, err := h.companyService.ListMembers(c.Request.Context(), actor, c.Query("status"), params.Page, params.Limit)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Paginated(http.StatusOK, members, params.Page, params.Limit, total))
}

type approveMembershipRequest struct {
	Role string `json:"role"`
}

// ApproveMembership approves a pending membership and assigns its role
// @Summary      Approve membership
// @Tags         members
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string                    true   "Company ID"
// @Param        id            path      string                    true   "Membership ID"
// @Param        payload       body      approveMembershipRequest  false  "Role to assign (defaults to EMPLOYEE)"
// @Success      200           {object}  response.Response{data=service.MembershipResponse}
// @Failure      403           {object}  response.Response
// @Failure      409           {object}  response.Response
// @Router       /api/members/{id}/approve [put]
func (h *CompanyHandler) ApproveMembership(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req approveMembershipRequest
	_ = c.ShouldBindJSON(&req) // Allow empty body, role defaults to EMPLOYEE

	membership, err := h.companyService.ApproveMembership(c.Request.Context(), actor, c.Param("id"), req.Role)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, membership))
}

// ChangeRole changes an approved member's role
// @Summary      Change member role
// @Tags         members
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Company-ID  header    string                     true  "Company ID"
// @Param        id            path      string                     true  "Membership ID"
// @Param        payload       body      service.ChangeRoleRequest  true  "New role"
// @Success      200           {object}  response.Response{data=service.MembershipResponse}
// @Failure      403           {object}  response.Response
// @Failure      409           {object}  response.Response
// @Router       /api/members/{id}/role [put]
func (h *CompanyHandler) ChangeRole(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req service.ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "role is required"))
		return
	}

	membership, err := h.companyService.ChangeRole(c.Request.Context(), actor, c.Param("id"), req.Role)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, membership))
}
