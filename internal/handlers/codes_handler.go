package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-product-importflow/internal/lifecycle"
)

// RegisterCodeRoutes registers the status check routes and /stats.
func RegisterCodeRoutes(r gin.IRouter, cfg HandlerConfig) {
	cfg.defaults()
	coord := cfg.Coordinator

	r.GET("/codes/:id", func(c *gin.Context) {
		id, ok := parseID(c)
		if !ok {
			return
		}
		v, err := coord.Check(c.Request.Context(), id)
		switch {
		case err == nil, errors.Is(err, lifecycle.ErrArchiveConflict):
			c.JSON(http.StatusOK, v)
		default:
			status, code := errorStatus(err)
			body := gin.H{"error": code, "detail": err.Error()}
			if v.Status != "" {
				body["current"] = v
			}
			c.JSON(status, body)
		}
	})

	r.GET("/codes", func(c *gin.Context) {
		report, err := coord.Sweep(c.Request.Context(), cfg.SweepConcurrency)
		if err != nil {
			cfg.Logger.Warn("sweep cut short", "error", err)
		}
		c.JSON(http.StatusOK, report)
	})

	r.GET("/stats", func(c *gin.Context) {
		store := coord.Store()
		c.JSON(http.StatusOK, gin.H{
			"counts":  store.Counts(),
			"pending": len(store.Unsubmitted()),
		})
	})
}
