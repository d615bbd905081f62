package router

import (
	"github.com/gin-gonic/gin"

	"github.com/basegraph/analystcore/internal/http/handler"
)

func PlanRouter(group *gin.RouterGroup, h *handler.PlanHandler) {
	group.POST("/preview", h.Preview)
}
