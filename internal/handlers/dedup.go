package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"soc-alert-relay-go/internal/model"
)

// GetDedupState returns the live window state for a fingerprint. Absent
// fingerprints are a 404: either never seen or already swept.
func (h *Handlers) GetDedupState(c *gin.Context) {
	fp := model.Fingerprint(c.Param("fingerprint"))
	if !fp.Valid() {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{
			Error:   "validation_error",
			Message: "Fingerprint must be 64 hex characters",
			Code:    http.StatusBadRequest,
		})
		return
	}

	rec, ok, err := h.store.Get(c.Request.Context(), fp)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "store_error",
			Message: "Failed to read dedup state",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not_found", Message: "No window for fingerprint", Code: http.StatusNotFound})
		return
	}

	c.JSON(http.StatusOK, model.DedupStateResponse{
		Fingerprint: string(fp),
		WindowStart: rec.WindowStart,
		WindowEnd:   rec.WindowEnd,
		RepeatCount: rec.RepeatCount,
		BurstSent:   rec.BurstSent,
		LastSeen:    rec.LastSeen,
	})
}
