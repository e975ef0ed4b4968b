package handlers

import (
	"floordash/internal/logger"
	"floordash/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires the HTTP layer to services and logging.
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

	// Versioned API endpoints
	h.registerAPIRoutes(router)

	// WebSocket push (HTTP upgrade) — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerTelemetryRoutes(api)
		h.registerAndonRoutes(api)
		h.registerOeeRoutes(api)
		h.registerDowntimeRoutes(api)
		h.registerHubRoutes(api)
	}
}

func (h *Handler) registerTelemetryRoutes(api *gin.RouterGroup) {
	telemetry := api.Group("/telemetry")
	{
		telemetry.POST("/samples", h.ingestSample)
	}
}

func (h *Handler) registerAndonRoutes(api *gin.RouterGroup) {
	andonGroup := api.Group("/andon")
	{
		andonGroup.GET("/active", h.activeAndonEvents)
		andonGroup.GET("/history", h.andonHistory)
		andonGroup.GET("/:id", h.getAndonEvent)
		andonGroup.POST("/:id/acknowledge", h.acknowledgeAndonEvent)
		andonGroup.POST("/:id/resolve", h.resolveAndonEvent)
	}
}

func (h *Handler) registerOeeRoutes(api *gin.RouterGroup) {
	oeeGroup := api.Group("/oee")
	{
		oeeGroup.GET("/:line/current", h.currentOee)
		oeeGroup.GET("/:line/history", h.oeeHistory)
	}
}

func (h *Handler) registerDowntimeRoutes(api *gin.RouterGroup) {
	downtime := api.Group("/downtime")
	{
		downtime.GET("/", h.downtimeHistory)
	}
}

func (h *Handler) registerHubRoutes(api *gin.RouterGroup) {
	hubGroup := api.Group("/hub")
	{
		hubGroup.GET("/stats", h.hubStats)
	}
}
