package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"soc-alert-relay-go/internal/model"
)

const defaultListLimit = 100

func listLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	return limit
}

// GetAlerts returns recent audit rows for fetched mail, newest first
func (h *Handlers) GetAlerts(c *gin.Context) {
	alerts, err := h.repo.ListAlerts(listLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch alerts",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// GetAlert returns a single alert by ID
func (h *Handlers) GetAlert(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid_id", Message: "Invalid alert ID", Code: http.StatusBadRequest})
		return
	}
	alert, err := h.repo.GetAlert(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "database_error", Message: "Failed to fetch alert", Code: http.StatusInternalServerError})
		return
	}
	if alert == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not_found", Message: "Alert not found", Code: http.StatusNotFound})
		return
	}
	c.JSON(http.StatusOK, alert)
}

// GetEvents returns parsed events, filterable by device and fingerprint
func (h *Handlers) GetEvents(c *gin.Context) {
	events, err := h.repo.ListEvents(c.Query("device"), c.Query("fingerprint"), listLimit(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch events",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetEventDispatches returns every notification attempt for an event
func (h *Handlers) GetEventDispatches(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid_id", Message: "Invalid event ID", Code: http.StatusBadRequest})
		return
	}
	dispatches, err := h.repo.ListDispatches(uint(id))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "database_error", Message: "Failed to fetch dispatches", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, dispatches)
}
