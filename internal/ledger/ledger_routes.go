package ledger

import (
	"go-ems/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rbacService middleware.RBACService,
) {
	leaves := r.Group("/leaves")
	{
		leaves.GET("/:id/quarterly-balance", middleware.RBACAuthorize(rbacService, "ledger", "read"), middleware.RBACReadAll(rbacService, "leave"), handler.QuarterlyBalance)
		leaves.POST("/test-carry-forward", middleware.RBACAuthorize(rbacService, "ledger", "carry_forward"), handler.CarryForward)
	}
}
