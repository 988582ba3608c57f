package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lfgraphics/khadimemillat-sub007/internal/middleware"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/services"
	"github.com/lfgraphics/khadimemillat-sub007/internal/utils"
)

// MaxRecheckBatch caps the donations accepted by one recheck request.
const MaxRecheckBatch = 500

// recheckRequest is the body of a bulk payment recheck
type recheckRequest struct {
	DonationIDs []string `json:"donationIds" validate:"required,min=1,max=500,dive,required"`
}

// RecheckHandler streams bulk payment verification results
type RecheckHandler struct {
	recheckService services.RecheckService
}

// NewRecheckHandler creates a new RecheckHandler
func NewRecheckHandler(recheckService services.RecheckService) *RecheckHandler {
	return &RecheckHandler{recheckService: recheckService}
}

// Recheck handles POST /admin/donations/recheck. The response is
// newline-delimited JSON: one progress line per donation, then one
// complete line, or a single error line when the run cannot start.
func (h *RecheckHandler) Recheck(c *gin.Context) {
	var req recheckRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	encoder := json.NewEncoder(c.Writer)
	emit := func(event models.RecheckEvent) error {
		if err := encoder.Encode(event); err != nil {
			return err
		}
		c.Writer.Flush()
		return nil
	}

	if err := h.recheckService.Recheck(c.Request.Context(), req.DonationIDs, emit); err != nil {
		slog.Warn("payment recheck stream ended early",
			"error", err,
			"requested", len(req.DonationIDs),
			"requestId", c.GetString(middleware.ContextRequestID))
	}
}
