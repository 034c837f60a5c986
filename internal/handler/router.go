package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Routes holds every handler mounted by NewRouter. Nil handlers are skipped.
type Routes struct {
	Health    *HealthHandler
	Ready     *ReadyHandler
	Metrics   http.Handler
	Stream    gin.HandlerFunc
	Detect    *DetectHandler
	Analyze   *AnalyzeHandler
	Execute   *ExecuteHandler
	Anomaly   *AnomalyHandler
	Status    *StatusHandler
	Event     *EventHandler
	Incidents *IncidentsHandler
	Audit     *AuditHandler
	Events    *EventsHandler
}

// RouterConfig tunes the middleware stack.
type RouterConfig struct {
	// IngressRateLimit is the per-client request rate on ingress routes.
	IngressRateLimit float64
	IngressBurst     int
}

// NewRouter builds the gin engine with the middleware stack and routes.
func NewRouter(routes Routes, cfg RouterConfig, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	// Apply middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(RequestIDMiddleware())
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware())

	if routes.Health != nil {
		router.GET("/health", routes.Health.Handle)
	}
	if routes.Ready != nil {
		router.GET("/ready", routes.Ready.Handle)
	}
	if routes.Metrics != nil {
		router.GET("/metrics", gin.WrapH(routes.Metrics))
	}
	if routes.Stream != nil {
		router.GET("/ws", routes.Stream)
	}
	if routes.Status != nil {
		router.GET("/status", routes.Status.Handle)
	}

	// Ingress routes are rate limited per client.
	ingress := router.Group("/")
	if cfg.IngressRateLimit > 0 {
		ingress.Use(RateLimitMiddleware(cfg.IngressRateLimit, cfg.IngressBurst))
	}
	if routes.Anomaly != nil {
		ingress.POST("/anomaly", routes.Anomaly.Handle)
	}
	if routes.Detect != nil {
		ingress.POST("/detect", routes.Detect.Handle)
	}
	if routes.Analyze != nil {
		ingress.POST("/analyze", routes.Analyze.Handle)
	}
	if routes.Execute != nil {
		ingress.POST("/execute", routes.Execute.Handle)
	}
	if routes.Event != nil {
		ingress.POST("/internal/event", routes.Event.Handle)
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		if routes.Incidents != nil {
			v1.GET("/incidents", routes.Incidents.List)
			v1.GET("/incidents/:id", routes.Incidents.Get)
		}
		if routes.Audit != nil {
			v1.GET("/audit", routes.Audit.Handle)
		}
		if routes.Events != nil {
			v1.GET("/events", routes.Events.Handle)
		}
	}

	return router
}
