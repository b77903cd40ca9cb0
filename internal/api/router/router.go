package router

import (
	"net/http"

	"github.com/cuongbtq/reminder-be/internal/api/handler"
	"github.com/gin-gonic/gin"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "reminder-api-service",
		})
	})

	// Initialize job handler
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes, caller identity resolved by the auth middleware
	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware())
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Create a reminder job
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List the caller's jobs
			jobs.GET("", jobHandler.ListJobs)
		}

		// PUT /api/v1/recipients/me - Register the caller's push target
		v1.PUT("/recipients/me", jobHandler.UpsertRecipient)

		// GET /api/v1/job-runs - List runs with status/time filters
		v1.GET("/job-runs", jobHandler.ListRuns)

		// POST /api/v1/confirmations - Record a confirmation action
		v1.POST("/confirmations", jobHandler.Confirm)
	}

	return r
}
