package middleware

import (
	"net/http"

	"go-ems/internal/domain"
	"go-ems/internal/shared/apperror"
	"go-ems/internal/shared/response"

	"github.com/gin-gonic/gin"
)

type ContextKey string

const (
	ContextEmployeeID ContextKey = "employee_id"
	ContextCompanyID  ContextKey = "company_id"

	// ContextReadAll is set by RBACReadAll when the caller may see every row of the company.
	ContextReadAll = "has_read_all"
)

// RBACService is satisfied by anything that can enforce a domain.EnforceRequest.
type RBACService interface {
	Enforce(req domain.EnforceRequest) (bool, error)
}

func enforceRequest(c *gin.Context, resource, action string) (domain.EnforceRequest, bool) {
	employeeID := c.GetString(string(ContextEmployeeID))
	companyID := c.GetString(string(ContextCompanyID))
	if employeeID == "" || companyID == "" {
		return domain.EnforceRequest{}, false
	}
	return domain.EnforceRequest{
		EmployeeID: employeeID,
		CompanyID:  companyID,
		Resource:   resource,
		Action:     action,
	}, true
}

func RBACAuthorize(service RBACService, resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := enforceRequest(c, resource, action)
		if !ok {
			response.Abort(c, http.StatusUnauthorized, apperror.CodeUnauthorized, "missing auth context", nil)
			return
		}

		allowed, err := service.Enforce(req)
		if err != nil {
			response.Abort(c, http.StatusInternalServerError, apperror.CodeInternalError, apperror.ErrInternal.Message, err.Error())
			return
		}
		if !allowed {
			response.Abort(c, http.StatusForbidden, apperror.CodeForbidden, apperror.ErrForbidden.Message,
				gin.H{"required": resource + ":" + action})
			return
		}
		c.Next()
	}
}

// RBACReadAll never rejects; it only records whether resource:read_all is granted.
func RBACReadAll(service RBACService, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed := false
		if req, ok := enforceRequest(c, resource, "read_all"); ok {
			allowed, _ = service.Enforce(req)
		}
		c.Set(ContextReadAll, allowed)
		c.Next()
	}
}
