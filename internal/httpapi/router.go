// Package httpapi implements component L: a thin gin binding of
// spec.md §6's Submission API in front of the core, adapted from the
// teacher's internal/http/router.go.
package httpapi

import (
	"log/slog"

	"github.com/arjunmehta-dev/taskforge/internal/httpapi/handler"
	"github.com/arjunmehta-dev/taskforge/internal/httpapi/middleware"
	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

func NewRouter(logger *slog.Logger, jobHandler *handler.JobHandler, jwksURL string, hmacKey []byte) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	authMW := middleware.Auth(jwksURL, hmacKey)

	jobs := r.Group("/jobs", authMW)
	jobs.POST("", jobHandler.Submit)
	jobs.POST("/bulk", jobHandler.SubmitBulk)
	jobs.GET("", jobHandler.List)
	jobs.GET("/:id", jobHandler.Get)
	jobs.POST("/:id/cancel", jobHandler.Cancel)
	jobs.POST("/:id/retry", jobHandler.Retry)

	r.GET("/stats", authMW, jobHandler.Stats)

	return r
}
