package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/services"
	"github.com/lfgraphics/khadimemillat-sub007/internal/utils"
)

// SegmentHandler handles saved audience segment requests
type SegmentHandler struct {
	segmentService services.SegmentService
}

// NewSegmentHandler creates a new SegmentHandler
func NewSegmentHandler(segmentService services.SegmentService) *SegmentHandler {
	return &SegmentHandler{segmentService: segmentService}
}

// List handles GET /admin/segments
func (h *SegmentHandler) List(c *gin.Context) {
	caller, ok := principal(c)
	if !ok {
		return
	}

	filter := models.SegmentFilter{
		Page:   utils.ParsePositiveInt(c.Query("page"), 1),
		Limit:  utils.ParsePositiveInt(c.Query("limit"), utils.DefaultPageSize),
		Search: c.Query("search"),
	}
	if createdBy, set := c.GetQuery("createdBy"); set && createdBy != "" {
		filter.CreatedBy = &createdBy
	}
	if raw, set := c.GetQuery("isShared"); set && raw != "" {
		shared, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(c, errs.Validation("isShared must be true or false"))
			return
		}
		filter.IsShared = &shared
	}

	segments, pagination, err := h.segmentService.List(c.Request.Context(), caller, filter)
	if err != nil {
		respondError(c, err)
		return
	}
	respondPage(c, segments, pagination)
}

// Create handles POST /admin/segments
func (h *SegmentHandler) Create(c *gin.Context) {
	caller, ok := principal(c)
	if !ok {
		return
	}
	var req models.CreateSegmentRequest
	if !bindJSON(c, &req) {
		return
	}

	segment, err := h.segmentService.Create(c.Request.Context(), caller, req)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusCreated, segment)
}

// Get handles GET /admin/segments/:id
func (h *SegmentHandler) Get(c *gin.Context) {
	caller, ok := principal(c)
	if !ok {
		return
	}

	opts := models.SegmentGetOptions{
		IncludeUsers: queryBool(c, "includeUsers"),
		RefreshCount: queryBool(c, "refreshCount"),
	}
	segment, err := h.segmentService.Get(c.Request.Context(), caller, c.Param("id"), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, segment)
}

// Update handles PUT /admin/segments/:id
func (h *SegmentHandler) Update(c *gin.Context) {
	caller, ok := principal(c)
	if !ok {
		return
	}
	var patch models.SegmentPatch
	if !bindJSON(c, &patch) {
		return
	}

	segment, err := h.segmentService.Update(c.Request.Context(), caller, c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, segment)
}

// Delete handles DELETE /admin/segments/:id
func (h *SegmentHandler) Delete(c *gin.Context) {
	caller, ok := principal(c)
	if !ok {
		return
	}

	if err := h.segmentService.Delete(c.Request.Context(), caller, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Segment deleted successfully"})
}
