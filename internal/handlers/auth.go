package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sitetrack/backend/internal/middleware"
	"github.com/sitetrack/backend/internal/services"
	"github.com/sitetrack/backend/pkg/response"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login handles employee login
// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.authService.Login(&req)
	if err != nil {
		if response.IsKind(err, response.KindUnauthorized) || response.IsKind(err, response.KindForbidden) {
			services.LogWarning("Auth", "LoginFailed", "Login failed for "+req.Phone, nil, c.ClientIP(), c.GetHeader("User-Agent"), nil)
		}
		response.Error(c, err)
		return
	}

	uid := resp.Employee.ID
	services.LogInfo("Auth", "Login", "Employee logged in: "+resp.Employee.Name, &uid, c.ClientIP(), c.GetHeader("User-Agent"), nil)
	response.Success(c, resp)
}

// GetCurrentUser returns the current logged-in employee
// GET /api/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	emp, err := h.authService.GetCurrentUser(middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, emp)
}

// Logout handles logout (client-side token removal)
// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	response.Success(c, gin.H{"message": "logged out successfully"})
}
