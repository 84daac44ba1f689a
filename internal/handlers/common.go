package handlers

import (
	"clinic-app-server/internal/middleware"
	"clinic-app-server/internal/services"
	"clinic-app-server/internal/utils"

	"github.com/gin-gonic/gin"
)

// currentActor returns the authenticated user as a service actor.
// It answers 401 and returns false when the context carries no user.
func currentActor(c *gin.Context) (services.Actor, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok || userID == "" {
		utils.Unauthorized(c, "User not authenticated")
		return services.Actor{}, false
	}
	role, ok := middleware.GetUserRoleFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return services.Actor{}, false
	}
	return services.Actor{UserID: userID, Role: role}, true
}
