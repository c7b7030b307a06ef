package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"
)

// NewRouter builds the gin engine with every route registered.
func NewRouter(cfg HandlerConfig) *gin.Engine {
	cfg.defaults()

	r := gin.New()
	r.Use(sloggin.New(cfg.Logger))
	r.Use(gin.Recovery())

	// health
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterProductRoutes(r, cfg)
	RegisterCodeRoutes(r, cfg)

	return r
}
