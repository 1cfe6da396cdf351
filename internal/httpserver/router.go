package httpserver

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Router wires handlers and middleware onto a gin engine.
type Router struct {
	Engine *gin.Engine
}

// NewRouter builds the engine. maxBodyBytes <= 0 disables the body limit.
func NewRouter(h *Handler, log *zap.Logger, maxBodyBytes int64) *Router {
	r := gin.New()
	r.HandleMethodNotAllowed = true

	r.Use(Recovery(log), RequestID(), AccessLog(log))

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"ok": false, "error": "Method Not Allowed"})
	})
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "not found"})
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(BodyLimit(maxBodyBytes))
	{
		api.POST("/code", h.WaitForCode)
		api.POST("/codes", h.ListCodes)
	}

	return &Router{Engine: r}
}
