// Package api exposes the control surface over HTTP with gin.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"marketpulse/internal/service"
)

// Options wires the router to the service and the auxiliary handlers.
type Options struct {
	Service *service.Service
	WS      http.Handler // live price push; nil disables /ws/prices
	Metrics http.Handler // Prometheus exposition; nil when served elsewhere
	Health  http.Handler
	Log     *slog.Logger
}

// NewRouter sets up all HTTP routes.
func NewRouter(opts Options) *gin.Engine {
	log := opts.Log.With("component", "api")

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestLogger(log))

	h := &handlers{svc: opts.Service, log: log}

	api := router.Group("/api")
	{
		api.GET("/stocks", h.getStocks)
		api.GET("/groups", h.getGroups)

		api.GET("/alerts", h.getAlerts)
		api.POST("/alerts", h.setAlerts)
		api.GET("/alert_history", h.getAlertHistory)
		api.DELETE("/alert_history", h.clearAlertHistory)

		api.GET("/watchlist_stocks", h.getWatchlist)
		api.POST("/watchlist_stocks", h.setWatchlist)

		api.GET("/indicator_history", h.getIndicatorHistory)
		api.POST("/indicator_history/refresh", h.refreshIndicatorHistory)

		if opts.Health != nil {
			api.GET("/health", gin.WrapH(opts.Health))
		}
	}

	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}
	if opts.WS != nil {
		router.GET("/ws/prices", gin.WrapH(opts.WS))
	}
	return router
}

// corsMiddleware allows any origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestLogger logs failed and slow requests.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if path == "/api/health" || path == "/metrics" || path == "/ws/prices" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()
		duration := time.Since(start)

		status := c.Writer.Status()
		switch {
		case status >= 500:
			log.Error("request failed", "method", c.Request.Method, "path", path, "status", status, "duration", duration.String())
		case status >= 400 || duration > time.Second:
			log.Warn("request", "method", c.Request.Method, "path", path, "status", status, "duration", duration.String())
		default:
			log.Debug("request", "method", c.Request.Method, "path", path, "status", status, "duration", duration.String())
		}
	}
}
