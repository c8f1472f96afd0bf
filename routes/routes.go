package routes

import (
	"net/http"

	"content-approval-api/config"
	"content-approval-api/controllers"
	"content-approval-api/metrics"
	"content-approval-api/middleware"
	"content-approval-api/services"
	"content-approval-api/store"

	"github.com/gin-gonic/gin"
)

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	Settings config.Settings
	Store    store.Store
	Service  *services.ApprovalService
}

func SetupRoutes(router *gin.Engine, deps Dependencies) {
	auth := controllers.NewAuthController(deps.Store, deps.Settings.JWTSecret, deps.Settings.JWTExpireHrs, deps.Settings.ApproverRoleCodes)
	approvals := controllers.NewApprovalController(deps.Service)

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Public routes
		public := v1.Group("")
		{
			public.POST("/login", auth.Login)

			// Health check
			public.GET("/health", func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{
					"status":  "ok",
					"message": "Content Approval API is running",
				})
			})
		}

		// Protected routes (require authentication)
		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(deps.Store, deps.Settings.JWTSecret, deps.Settings.ApproverRoleCodes))
		{
			protected.GET("/profile", auth.GetProfile)
			protected.GET("/posts/:id/approval", approvals.GetByPost)

			requests := protected.Group("/approvals")
			{
				// Authors
				requests.POST("", approvals.Create)
				requests.GET("/mine", approvals.ListMine)
				requests.GET("/:id", approvals.Get)
				requests.POST("/:id/cancel", approvals.Cancel)

				// Approvers only
				requests.GET("/pending", middleware.RequireApprover(), approvals.ListPending)
				requests.POST("/:id/approve", middleware.RequireApprover(), approvals.Approve)
				requests.POST("/:id/reject", middleware.RequireApprover(), approvals.Reject)
				requests.POST("/:id/comments", middleware.RequireApprover(), approvals.AddComment)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})
}
