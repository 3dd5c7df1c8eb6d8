package main

import (
	"github.com/gin-gonic/gin"
	"github.com/sitetrack/backend/internal/handlers"
	"github.com/sitetrack/backend/internal/middleware"
	"github.com/sitetrack/backend/pkg/logger"
)

// registerRoutes sets up all HTTP routes on the given Gin engine.
func registerRoutes(r *gin.Engine, svc *appServices) {
	// Middleware
	r.Use(middleware.RequestID(), logger.GinLogger(), logger.GinRecovery())
	r.RedirectTrailingSlash = false
	r.RedirectFixedPath = false
	r.Use(middleware.CORS(), middleware.Metrics())

	// Rate limiter for login attempts
	loginLimiter := middleware.NewLoginLimiter(0.2, 5)

	r.GET("/health", svc.healthHandler.CheckHealth)
	r.GET("/metrics", handlers.Metrics())

	api := r.Group("/api")
	{
		// Auth routes (public)
		api.POST("/auth/login", loginLimiter.Middleware(), svc.authHandler.Login)

		// Protected routes, any role
		protected := api.Group("")
		protected.Use(middleware.AuthRequired())
		{
			protected.GET("/auth/me", svc.authHandler.GetCurrentUser)
			protected.POST("/auth/logout", svc.authHandler.Logout)

			// Sites
			protected.GET("/sites", svc.siteHandler.List)
			protected.GET("/sites/:id", svc.siteHandler.GetByID)
			protected.GET("/sites/:id/employees", svc.siteHandler.ListEmployees)
			protected.GET("/holiday-countries", svc.siteHandler.HolidayCountries)

			// Phases
			protected.GET("/phases/:id", svc.phaseHandler.GetDetails)
			protected.PUT("/phases/:id", svc.phaseHandler.Update)
			protected.POST("/phases/:id/assign", svc.phaseHandler.Assign)
			protected.POST("/phases/:id/complete", svc.phaseHandler.Complete)
			protected.POST("/phases/:id/updates", svc.phaseHandler.AddUpdate)
			protected.POST("/phases/:id/todos", svc.phaseHandler.AddTodo)
			protected.PUT("/phase-todos/:id/toggle", svc.phaseHandler.ToggleTodo)
			protected.POST("/phases/:id/messages", svc.phaseHandler.SendMessage)

			// Tasks
			protected.GET("/tasks/:id", svc.taskHandler.GetDetails)
			protected.PUT("/tasks/:id", svc.taskHandler.Update)
			protected.PUT("/tasks/:id/assignees", svc.taskHandler.SetAssignees)
			protected.POST("/tasks/:id/assignees/:employee_id/toggle", svc.taskHandler.ToggleAssignment)
			protected.POST("/tasks/:id/updates", svc.taskHandler.AddUpdate)
			protected.POST("/tasks/:id/complete", svc.taskHandler.Complete)
			protected.POST("/tasks/:id/todos", svc.taskHandler.AddTodo)
			protected.PUT("/todos/:id/toggle", svc.taskHandler.ToggleTodo)
			protected.POST("/tasks/:id/messages", svc.taskHandler.SendMessage)

			// Notifications
			protected.GET("/notifications", svc.notificationHandler.List)
			protected.GET("/notifications/unread-count", svc.notificationHandler.UnreadCount)
			protected.PUT("/notifications/read-all", svc.notificationHandler.MarkAllRead)
			protected.PUT("/notifications/:id/read", svc.notificationHandler.MarkRead)
		}

		// Admin routes
		admin := api.Group("")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired(), middleware.AuditLog())
		{
			// Sites
			admin.POST("/sites", svc.siteHandler.Create)
			admin.PUT("/sites/:id", svc.siteHandler.Update)
			admin.DELETE("/sites/:id", svc.siteHandler.Delete)
			admin.PUT("/sites/:id/employees", svc.siteHandler.AssignEmployees)
			admin.POST("/sites/:id/phases", svc.siteHandler.AddPhase)

			// Phases
			admin.DELETE("/phases/:id", svc.phaseHandler.Delete)
			admin.POST("/phases/:id/approve", svc.phaseHandler.Approve)
			admin.POST("/phases/:id/reject", svc.phaseHandler.Reject)

			// Tasks
			admin.POST("/tasks", svc.taskHandler.Create)
			admin.DELETE("/tasks/:id", svc.taskHandler.Delete)
			admin.POST("/tasks/:id/approve", svc.taskHandler.Approve)
			admin.POST("/tasks/:id/reject", svc.taskHandler.Reject)

			// Employees
			admin.GET("/employees", svc.employeeHandler.List)
			admin.POST("/employees", svc.employeeHandler.Create)
			admin.GET("/employees/:id", svc.employeeHandler.GetByID)
			admin.PUT("/employees/:id", svc.employeeHandler.Update)
			admin.DELETE("/employees/:id", svc.employeeHandler.Delete)

			// System Logs
			admin.GET("/system-logs", svc.systemLogHandler.List)
			admin.GET("/system-logs/modules", svc.systemLogHandler.GetModules)
			admin.GET("/system-logs/retention", svc.systemConfigHandler.GetRetention)
			admin.PUT("/system-logs/retention", svc.systemConfigHandler.UpdateRetention)
		}
	}
}
