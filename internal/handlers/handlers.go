// Package handlers implements the admin and observability HTTP API.
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"soc-alert-relay-go/internal/assets"
	"soc-alert-relay-go/internal/dedup"
	"soc-alert-relay-go/internal/scheduler"
	"soc-alert-relay-go/internal/storage"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	db        *gorm.DB
	assets    *assets.Service
	repo      *storage.Repository
	store     dedup.Store
	engine    *dedup.Engine
	scheduler *scheduler.Scheduler
}

// NewHandlers creates new HTTP handlers
func NewHandlers(db *gorm.DB, a *assets.Service, repo *storage.Repository, store dedup.Store, engine *dedup.Engine, s *scheduler.Scheduler) *Handlers {
	return &Handlers{
		db:        db,
		assets:    a,
		repo:      repo,
		store:     store,
		engine:    engine,
		scheduler: s,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/assets", h.GetAssets)
		api.GET("/assets/:hostname", h.GetAsset)
		api.PUT("/assets/:hostname/class", h.ClassifyAsset)
		api.GET("/assets/:hostname/recipients", h.GetRecipients)
		api.POST("/assets/:hostname/recipients", h.CreateRecipient)
		api.DELETE("/recipients/:id", h.DeleteRecipient)

		api.GET("/alerts", h.GetAlerts)
		api.GET("/alerts/:id", h.GetAlert)
		api.GET("/events", h.GetEvents)
		api.GET("/events/:id/dispatches", h.GetEventDispatches)

		api.GET("/dedup/:fingerprint", h.GetDedupState)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}
