package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Health-check доступен без ключа
	api.GET("/system/health", h.healthCheck)

	protected := api.Group("")
	if len(h.cfg.APIKeys) > 0 {
		protected.Use(APIKeyAuthMiddleware(h.cfg, h.logger))
	}

	// Прием и просмотр инцидентов
	incidents := protected.Group("/incidents")
	{
		incidents.POST("/ingest", h.ingestIncident)
		incidents.GET("", h.listIncidents)
		incidents.GET("/:id", h.getIncident)
		incidents.GET("/:id/notifications", h.listNotifications)
	}

	devices := protected.Group("/devices")
	{
		devices.GET("", h.listDevices)
		devices.PATCH("/:identifier", h.setDeviceActive)
	}

	// Загрузка снимков только при настроенном хранилище
	if h.snapshotService != nil {
		protected.POST("/snapshots", h.uploadSnapshot)
	}

	protected.POST("/debug/test-alert", h.sendTestAlert)
}
