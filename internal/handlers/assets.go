package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"soc-alert-relay-go/internal/model"
)

// GetAssets returns all registered assets
func (h *Handlers) GetAssets(c *gin.Context) {
	list, err := h.assets.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{
			Error:   "database_error",
			Message: "Failed to fetch assets",
			Code:    http.StatusInternalServerError,
		})
		return
	}
	responses := make([]model.AssetResponse, 0, len(list))
	for _, a := range list {
		responses = append(responses, assetResponse(&a))
	}
	c.JSON(http.StatusOK, responses)
}

// GetAsset returns a single asset by hostname
func (h *Handlers) GetAsset(c *gin.Context) {
	asset, err := h.assets.Get(c.Request.Context(), c.Param("hostname"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "database_error", Message: "Failed to fetch asset", Code: http.StatusInternalServerError})
		return
	}
	if asset == nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not_found", Message: "Asset not found", Code: http.StatusNotFound})
		return
	}
	c.JSON(http.StatusOK, assetResponse(asset))
}

// ClassifyAsset sets an asset's class, registering the asset if needed
func (h *Handlers) ClassifyAsset(c *gin.Context) {
	var req model.ClassifyAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "validation_error", Message: "Invalid request body", Code: http.StatusBadRequest})
		return
	}

	class, err := model.ParseAssetClass(req.Class)
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "validation_error", Message: err.Error(), Code: http.StatusBadRequest})
		return
	}

	asset, err := h.assets.SetClass(c.Request.Context(), c.Param("hostname"), class)
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "database_error", Message: "Failed to classify asset", Code: http.StatusInternalServerError})
		return
	}
	c.JSON(http.StatusOK, assetResponse(asset))
}

// GetRecipients returns all chat bindings for an asset, disabled included
func (h *Handlers) GetRecipients(c *gin.Context) {
	list, err := h.assets.AllRecipients(c.Request.Context(), c.Param("hostname"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: "database_error", Message: "Failed to fetch recipients", Code: http.StatusInternalServerError})
		return
	}
	responses := make([]model.RecipientResponse, 0, len(list))
	for _, r := range list {
		responses = append(responses, recipientResponse(&r))
	}
	c.JSON(http.StatusOK, responses)
}

// CreateRecipient binds a chat to an asset
func (h *Handlers) CreateRecipient(c *gin.Context) {
	var req model.RecipientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "validation_error", Message: "Invalid request body", Code: http.StatusBadRequest})
		return
	}

	minRisk := model.RiskMedium
	if req.MinRisk != "" {
		parsed, err := model.ParseRiskLevel(req.MinRisk)
		if err != nil {
			c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "validation_error", Message: err.Error(), Code: http.StatusBadRequest})
			return
		}
		minRisk = parsed
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	recipient, err := h.assets.Bind(c.Request.Context(), c.Param("hostname"), req.ChatID, req.UserID, minRisk, enabled)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{Error: "bind_failed", Message: err.Error(), Code: http.StatusUnprocessableEntity})
		return
	}
	c.JSON(http.StatusCreated, recipientResponse(recipient))
}

// DeleteRecipient removes a chat binding by ID
func (h *Handlers) DeleteRecipient(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: "invalid_id", Message: "Invalid recipient ID", Code: http.StatusBadRequest})
		return
	}
	if err := h.assets.Unbind(c.Request.Context(), uint(id)); err != nil {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Error: "not_found", Message: err.Error(), Code: http.StatusNotFound})
		return
	}
	c.Status(http.StatusNoContent)
}

func assetResponse(a *model.Asset) model.AssetResponse {
	return model.AssetResponse{
		ID:        a.ID,
		Hostname:  a.Hostname,
		Class:     a.Class,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func recipientResponse(r *model.AssetRecipient) model.RecipientResponse {
	return model.RecipientResponse{
		ID:      r.ID,
		AssetID: r.AssetID,
		ChatID:  r.ChatID,
		UserID:  r.UserID,
		MinRisk: r.MinRisk,
		Enabled: r.Enabled,
	}
}
