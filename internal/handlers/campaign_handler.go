package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/services"
	"github.com/lfgraphics/khadimemillat-sub007/internal/utils"
)

// startRequest is the optional body of a campaign start
type startRequest struct {
	Force bool `json:"force"`
}

// reasonRequest is the optional body of pause, resume and cancel
type reasonRequest struct {
	Reason string `json:"reason"`
}

// CampaignHandler handles notification campaign requests
type CampaignHandler struct {
	campaignService services.CampaignService
	progressService services.ProgressService
}

// NewCampaignHandler creates a new CampaignHandler
func NewCampaignHandler(campaignService services.CampaignService, progressService services.ProgressService) *CampaignHandler {
	return &CampaignHandler{
		campaignService: campaignService,
		progressService: progressService,
	}
}

// List handles GET /admin/campaigns
func (h *CampaignHandler) List(c *gin.Context) {
	filter := models.CampaignFilter{
		Page:   utils.ParsePositiveInt(c.Query("page"), 1),
		Limit:  utils.ParsePositiveInt(c.Query("limit"), utils.DefaultPageSize),
		Status: models.CampaignStatus(c.Query("status")),
	}

	campaigns, pagination, err := h.campaignService.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, campaigns, pagination)
}

// Create handles POST /admin/campaigns
func (h *CampaignHandler) Create(c *gin.Context) {
	caller, ok := principal(c)
	if !ok {
		return
	}
	var req models.CreateCampaignRequest
	if !bindJSON(c, &req) {
		return
	}

	campaign, err := h.campaignService.Create(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, campaign)
}

// Get handles GET /admin/campaigns/:id
func (h *CampaignHandler) Get(c *gin.Context) {
	campaign, err := h.campaignService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, campaign)
}

// Update handles PUT /admin/campaigns/:id
func (h *CampaignHandler) Update(c *gin.Context) {
	var req models.UpdateCampaignRequest
	if !bindJSON(c, &req) {
		return
	}

	campaign, err := h.campaignService.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, campaign)
}

// Delete handles DELETE /admin/campaigns/:id
func (h *CampaignHandler) Delete(c *gin.Context) {
	if err := h.campaignService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Campaign deleted successfully"})
}

// Start handles POST /admin/campaigns/:id/start
func (h *CampaignHandler) Start(c *gin.Context) {
	var req startRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.campaignService.Start(c.Request.Context(), c.Param("id"), req.Force)
	if err != nil {
		respondError(c, err)
		return
	}

	warnings := result.ValidationWarnings
	if warnings == nil {
		warnings = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"data":               result.Campaign,
		"estimatedAudience":  result.EstimatedAudience,
		"validationWarnings": warnings,
		"message":            result.Message,
	})
}

// Pause handles POST /admin/campaigns/:id/pause
func (h *CampaignHandler) Pause(c *gin.Context) {
	h.changeStatus(c, h.campaignService.Pause, "Campaign paused")
}

// Resume handles POST /admin/campaigns/:id/resume
func (h *CampaignHandler) Resume(c *gin.Context) {
	h.changeStatus(c, h.campaignService.Resume, "Campaign resumed")
}

// Cancel handles POST /admin/campaigns/:id/cancel
func (h *CampaignHandler) Cancel(c *gin.Context) {
	h.changeStatus(c, h.campaignService.Cancel, "Campaign cancelled")
}

type statusChangeFunc func(ctx context.Context, id string, reason string) (*models.NotificationCampaign, error)

func (h *CampaignHandler) changeStatus(c *gin.Context, change statusChangeFunc, message string) {
	var req reasonRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	campaign, err := change(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": campaign, "message": message})
}

// GetProgress handles GET /admin/campaigns/:id/progress
func (h *CampaignHandler) GetProgress(c *gin.Context) {
	report, err := h.progressService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, report)
}

// UpdateProgress handles POST /admin/campaigns/:id/progress
func (h *CampaignHandler) UpdateProgress(c *gin.Context) {
	var update models.ProgressUpdate
	if !bindJSON(c, &update) {
		return
	}

	campaign, err := h.campaignService.UpdateProgress(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, campaign)
}
