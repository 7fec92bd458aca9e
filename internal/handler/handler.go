package handler

import (
	"net/http"

	"backend/internal/apperr"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// companyHeader names the header carrying the tenant the caller acts in.
// It is untrusted input; services re-validate it against memberships.
const companyHeader = "X-Company-ID"

// currentUserID reads the authenticated user id set by the auth middleware.
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, _ := c.Get("userID")
	sub, _ := raw.(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Invalid authentication context"))
		return uuid.Nil, false
	}
	return id, true
}

// currentActor builds the Actor from the auth context plus the tenant header.
func currentActor(c *gin.Context) (service.Actor, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return service.Actor{}, false
	}

	companyID, err := uuid.Parse(c.GetHeader(companyHeader))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Missing or invalid "+companyHeader+" header"))
		return service.Actor{}, false
	}

	return service.Actor{UserID: userID, CompanyID: companyID}, true
}

// fail maps a service error to the HTTP status of its error kind.
func fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	c.JSON(status, response.Error(status, err.Error()))
}
