package router

import (
	"github.com/gin-gonic/gin"

	"github.com/basegraph/analystcore/internal/http/handler"
)

func JobRouter(group *gin.RouterGroup, h *handler.JobHandler) {
	group.POST("", h.Create)
	group.GET("/:id", h.Get)
}
