package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adrewards/backend/internal/handlers"
	"github.com/adrewards/backend/internal/middleware"
)

// RegisterRoutes registers all API routes
func RegisterRoutes(
	router *gin.Engine,
	userHandler *handlers.UserHandler,
	taskHandler *handlers.TaskHandler,
	adminHandler *handlers.AdminHandler,
	rateLimiter *middleware.RateLimiter,
	jwtSecret string,
) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(rateLimiter.IPRateLimiterMiddleware())
	{
		api.POST("/users/register", userHandler.Register)
		api.GET("/users/:id", userHandler.GetUser)
		api.GET("/users/:id/earnings", userHandler.GetEarnings)
		api.GET("/users/:id/referrals", userHandler.GetReferrals)

		api.GET("/ads", taskHandler.ListAds)
		api.POST("/tasks", rateLimiter.TaskRateLimiterMiddleware(), taskHandler.StartTask)
		api.GET("/tasks/:user_id", taskHandler.GetTask)
		api.DELETE("/tasks/:user_id", taskHandler.CancelTask)
	}

	router.POST("/api/admin/login", adminHandler.Login)

	admin := router.Group("/api/admin")
	admin.Use(middleware.AdminAuthMiddleware(jwtSecret))
	{
		admin.POST("/adjustments", adminHandler.CreateAdjustment)
		admin.POST("/users/:id/reset", adminHandler.ResetUser)
		admin.GET("/users/:id/reconcile", adminHandler.ReconcileUser)
		admin.GET("/tasks", adminHandler.ListTasks)
	}
}
