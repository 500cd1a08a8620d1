package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	alerts := api.Group("/alerts")
	alerts.GET("", h.listAlerts)
	alerts.GET("/export", h.exportAlerts)
	alerts.POST("/archive", h.archiveAlerts)
	alerts.POST("/restore", h.restoreAlerts)

	workers := api.Group("/workers")
	workers.GET("", h.listWorkers)
	workers.POST("", h.createWorker)
	workers.PATCH("/:id", h.updateWorker)
	workers.DELETE("/:id", h.deleteWorker)

	records := api.Group("/records")
	records.GET("", h.listRecords)
	records.POST("", h.createRecord)
	records.PATCH("/:id", h.updateRecord)
	records.DELETE("/:id", h.deleteRecord)

	just := api.Group("/justifications")
	just.GET("", h.listJustifications)
	just.GET("/exists", h.justificationExists)
	just.POST("", h.createJustification)
	just.PATCH("/:id", h.reviewJustification)

	timers := api.Group("/timers")
	timers.GET("/active", h.activeTimer)
	timers.GET("/events", h.timerEvents)
	timers.POST("/:task_id/start", h.startTimer)
	timers.POST("/:task_id/stop", h.stopTimer)
}
