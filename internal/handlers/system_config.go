package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sitetrack/backend/internal/services"
	"github.com/sitetrack/backend/pkg/response"
	"gorm.io/gorm"
)

type SystemConfigHandler struct {
	systemLogService *services.SystemLogService
}

func NewSystemConfigHandler(db *gorm.DB) *SystemConfigHandler {
	return &SystemConfigHandler{
		systemLogService: services.NewSystemLogService(db),
	}
}

type RetentionRequest struct {
	RetentionDays *int `json:"retention_days" binding:"required,min=0,max=3650"`
}

// GET /api/system-logs/retention
func (h *SystemConfigHandler) GetRetention(c *gin.Context) {
	response.Success(c, gin.H{"retention_days": h.systemLogService.GetRetentionDays()})
}

// UpdateRetention sets how long audit logs are kept; 0 disables cleanup
// PUT /api/system-logs/retention
func (h *SystemConfigHandler) UpdateRetention(c *gin.Context) {
	var req RetentionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.systemLogService.SetRetentionDays(*req.RetentionDays); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"retention_days": *req.RetentionDays})
}
