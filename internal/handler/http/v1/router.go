package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)

	// Поток событий; браузерный websocket не передает заголовки, поэтому без токена
	if h.wsHandler != nil {
		api.GET("/ws", gin.WrapF(h.wsHandler))
	}

	authed := api.Group("", JWTAuthMiddleware(h.cfg.JWTSecret, h.logger))
	admin := RequireRole(RoleAdmin)

	issues := authed.Group("/issues")
	{
		issues.POST("", IssueRateLimiter(h.redisClient, h.cfg.IssueRateLimit, h.logger), h.createIssue)
		issues.GET("", h.listIssues)
		issues.GET("/:id", h.getIssue)
		issues.PUT("/:id", admin, h.editIssue)
		issues.PATCH("/:id/status", admin, h.updateIssueStatus)
		issues.POST("/:id/verify", admin, h.verifyIssue)
	}

	users := authed.Group("/users")
	{
		users.GET("", admin, h.listUsers)
		users.GET("/me", h.getProfile)
		users.PATCH("/me", h.updateProfile)
		users.GET("/me/stats", h.getUserStats)
		users.POST("/me/push-token", h.updatePushToken)
	}

	authed.POST("/uploads", h.uploadImage)
}
