package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/services"
)

// AudienceHandler handles audience preview requests
type AudienceHandler struct {
	audienceService services.AudienceService
}

// NewAudienceHandler creates a new AudienceHandler
func NewAudienceHandler(audienceService services.AudienceService) *AudienceHandler {
	return &AudienceHandler{audienceService: audienceService}
}

// Preview handles POST /admin/audience/preview
func (h *AudienceHandler) Preview(c *gin.Context) {
	var req models.PreviewRequest
	if !bindJSON(c, &req) {
		return
	}

	preview, err := h.audienceService.Preview(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, preview)
}
