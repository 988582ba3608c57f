package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/services"
)

// channelsRequest is the body of an opt-in or opt-out
type channelsRequest struct {
	Channels []models.Channel `json:"channels"`
}

// UserHandler handles the channel preferences of users
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// GetPreferences handles GET /admin/users/:id/preferences
func (h *UserHandler) GetPreferences(c *gin.Context) {
	pref, err := h.userService.GetPreferences(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, pref)
}

// OptIn handles POST /admin/users/:id/opt-in
func (h *UserHandler) OptIn(c *gin.Context) {
	var req channelsRequest
	if !bindJSON(c, &req) {
		return
	}
	pref, err := h.userService.OptIn(c.Request.Context(), c.Param("id"), req.Channels)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, pref)
}

// OptOut handles POST /admin/users/:id/opt-out
func (h *UserHandler) OptOut(c *gin.Context) {
	var req channelsRequest
	if !bindJSON(c, &req) {
		return
	}
	pref, err := h.userService.OptOut(c.Request.Context(), c.Param("id"), req.Channels)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, pref)
}
