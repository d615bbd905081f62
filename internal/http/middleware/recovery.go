// Package middleware holds gin middleware shared by the HTTP surface,
// grounded on the gin.New()+Recovery()+Logger() chain cmd/server/main.go
// assembles (no corpus middleware package was retrieved with the teacher,
// so these are written fresh in the same style).
package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
)

// Recovery converts a panic in a downstream handler into a 500 response
// instead of crashing the process.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(c.Request.Context(), "panic recovered in http handler",
					"panic", r, "stack", string(debug.Stack()), "path", c.Request.URL.Path)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
