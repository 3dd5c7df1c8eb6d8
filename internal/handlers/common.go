package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sitetrack/backend/internal/middleware"
	"github.com/sitetrack/backend/internal/services"
)

// actorFrom builds the acting employee from the authenticated context.
func actorFrom(c *gin.Context) services.Actor {
	return services.Actor{ID: middleware.GetUserID(c), Role: middleware.GetRole(c)}
}

func parseID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
