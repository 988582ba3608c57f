package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lfgraphics/khadimemillat-sub007/internal/services"
	"github.com/lfgraphics/khadimemillat-sub007/internal/utils"
)

// NotificationHandler serves the delivery log of campaigns
type NotificationHandler struct {
	notificationService services.NotificationLogService
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notificationService services.NotificationLogService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// GetNotificationsByCampaignID handles GET /admin/campaigns/:id/notifications
func (h *NotificationHandler) GetNotificationsByCampaignID(c *gin.Context) {
	page := utils.ParsePositiveInt(c.Query("page"), 1)
	limit := utils.ParsePositiveInt(c.Query("limit"), utils.DefaultPageSize)

	notifications, err := h.notificationService.ListByCampaign(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": notifications, "page": page, "limit": limit})
}
