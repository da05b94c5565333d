// internal/api/api.go
package api

import (
	"strings"
	"time"

	"github.com/andresuchdata/freshrisk/internal/api/handlers"
	"github.com/andresuchdata/freshrisk/internal/api/middleware"
	"github.com/andresuchdata/freshrisk/internal/pipeline/actions"
	"github.com/andresuchdata/freshrisk/internal/scheduler"
	"github.com/andresuchdata/freshrisk/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Services struct {
	KPIService   *service.KPIService
	Scheduler    *scheduler.Scheduler
	ActionEngine *actions.Engine
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	// Add middleware
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.KPIService != nil {
			kpiHandler := handlers.NewKPIHandler(services.KPIService)
			kpiGroup := apiGroup.Group("/kpi")
			{
				kpiGroup.GET("/summary", kpiHandler.GetSummary)
				kpiGroup.GET("/actions", kpiHandler.GetActionBreakdown)
				kpiGroup.GET("/time_series", kpiHandler.GetRiskTimeSeries)
				kpiGroup.GET("/dashboard", kpiHandler.GetDashboard)
				kpiGroup.GET("/available_dates", kpiHandler.GetAvailableDates)
			}
		}

		if services.Scheduler != nil {
			jobHandler := handlers.NewJobHandler(services.Scheduler)
			jobGroup := apiGroup.Group("/jobs")
			{
				jobGroup.POST("/:name/run", jobHandler.RunJob)
				jobGroup.GET("/:name/status", jobHandler.GetJobStatus)
				jobGroup.GET("/:name/history", jobHandler.GetJobHistory)
				jobGroup.GET("/:name/statistics", jobHandler.GetJobStatistics)
			}
		}

		if services.ActionEngine != nil {
			actionHandler := handlers.NewActionHandler(services.ActionEngine)
			actionGroup := apiGroup.Group("/actions")
			{
				actionGroup.POST("/:id/approve", actionHandler.Approve)
				actionGroup.POST("/:id/reject", actionHandler.Reject)
				actionGroup.POST("/:id/done", actionHandler.MarkDone)
				actionGroup.POST("/:id/outcome", actionHandler.RecordOutcome)
			}
		}
	}

	return router
}

func errorResponse(c *gin.Context, statusCode int, message string) {
	log.Error().Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		parts := strings.Split(origin, ",")
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
