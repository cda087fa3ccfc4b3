package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"soc-alert-relay-go/internal/model"
)

// probeFingerprint is a syntactically valid fingerprint that no real event
// produces; reading it exercises the dedup store without touching state.
var probeFingerprint = model.Fingerprint(strings.Repeat("0", 64))

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := model.HealthResponse{
		Status:     "ok",
		Timestamp:  time.Now(),
		Database:   "ok",
		DedupStore: "ok",
		Metrics:    make(map[string]string),
	}

	if err := h.db.Raw("SELECT 1").Error; err != nil {
		response.Status = "error"
		response.Database = "error"
		logrus.Errorf("Database health check failed: %v", err)
	}

	if _, _, err := h.store.Get(c.Request.Context(), probeFingerprint); err != nil {
		response.Status = "error"
		response.DedupStore = "error"
		logrus.Errorf("Dedup store health check failed: %v", err)
	}

	if h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
		response.Metrics["last_run"] = h.scheduler.GetLastRun().Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}

	response.Metrics["dedup_window"] = h.engine.Window().String()
	response.Metrics["dedup_threshold"] = strconv.Itoa(h.engine.Threshold())

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
