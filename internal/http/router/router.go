// Package router wires handlers onto gin route groups, following the
// teacher's router.SetupRoutes/*Router-per-resource convention.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/basegraph/analystcore/internal/http/handler"
	"github.com/basegraph/analystcore/internal/jobs"
	"github.com/basegraph/analystcore/internal/queue"
)

type RouterConfig struct {
	IsProduction bool
}

func SetupRoutes(router *gin.Engine, repo *jobs.Repository, producer queue.Producer, _ RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	jobHandler := handler.NewJobHandler(repo, producer)
	planHandler := handler.NewPlanHandler()

	v1 := router.Group("/v1")
	{
		JobRouter(v1.Group("/jobs"), jobHandler)
		PlanRouter(v1.Group("/plan"), planHandler)
	}
}
