package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sitetrack/backend/internal/models"
	"github.com/sitetrack/backend/internal/services"
)

// HealthHandler reports store and notification queue status.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	status := 200

	dbStatus := "ok"
	db := models.GetDB()
	if db == nil {
		dbStatus = "error: not initialized"
		overall, status = "unhealthy", 503
	} else if sqlDB, err := db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
		overall, status = "unhealthy", 503
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall, status = "unhealthy", 503
	}

	queue := services.GetNotificationQueue()
	queueMode := "sync"
	if queue != nil && queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	c.JSON(status, gin.H{
		"status":  overall,
		"service": "sitetrack",
		"components": gin.H{
			"database":           dbStatus,
			"notification_queue": queueMode,
		},
	})
}
