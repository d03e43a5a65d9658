package rbac

import (
	"go-ems/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler, service middleware.RBACService) {
	group := r.Group("/rbac")
	{
		group.POST("/enforce", handler.Enforce)

		group.GET("/roles", middleware.RBACAuthorize(service, "role", "read"), handler.ListRoles)
		group.GET("/permissions", middleware.RBACAuthorize(service, "role", "read"), handler.ListPermissions)
		group.POST("/assignments", middleware.RBACAuthorize(service, "role", "manage"), handler.AssignRole)
	}
}
