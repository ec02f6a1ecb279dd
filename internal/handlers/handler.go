package handlers

import (
	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tiagfernandes/aldes-bridge/docs"
	"github.com/tiagfernandes/aldes-bridge/internal/logger"
	"github.com/tiagfernandes/aldes-bridge/internal/service"
)

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// Snapshot push over WebSocket (HTTP upgrade) — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.authMiddleware)
	{
		h.registerDeviceRoutes(api)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	device := api.Group("/device")
	{
		device.GET("/state", h.getState)
		device.POST("/air-mode", h.setAirMode)
		device.POST("/water-mode", h.setWaterMode)
		device.POST("/temperature", h.setTemperature)
		device.POST("/holidays", h.setHolidays)
		device.DELETE("/holidays", h.cancelHolidays)
		device.POST("/frost-protection", h.setFrostProtection)
		device.POST("/prices", h.setPrices)
		device.POST("/people", h.setPeople)
		device.POST("/antilegionella", h.setAntilegionella)
		device.PUT("/planning/:program", h.overwritePlanning)
		device.POST("/planning/:variant/push", h.pushWeekPlanning)
		device.POST("/filter/reset", h.resetFilter)
		device.GET("/statistics", h.getStatistics)
	}
}
