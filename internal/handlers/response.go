package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/middleware"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/utils"
)

const genericErrorMessage = "An unexpected error occurred"

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondPage(c *gin.Context, data interface{}, pagination models.Pagination) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data, "pagination": pagination})
}

// respondError renders err using the status of its Kind. Internal errors are
// logged and replaced by a generic message.
func respondError(c *gin.Context, err error) {
	var appErr *errs.Error
	if !errors.As(err, &appErr) {
		appErr = errs.Internal("unhandled error", err)
	}

	body := gin.H{"success": false, "error": appErr.Message}
	status := http.StatusInternalServerError

	switch appErr.Kind {
	case errs.KindValidation, errs.KindConflict:
		status = http.StatusBadRequest
		if len(appErr.Issues) > 0 {
			body["issues"] = appErr.Issues
		} else if len(appErr.Details) > 0 {
			body["details"] = appErr.Details
		}
	case errs.KindUnauthorized:
		status = http.StatusUnauthorized
	case errs.KindForbidden:
		status = http.StatusForbidden
	case errs.KindNotFound:
		status = http.StatusNotFound
	case errs.KindInvalidTransition:
		status = http.StatusConflict
	case errs.KindExternalService:
		status = http.StatusBadGateway
		slog.Warn("external service failure", "path", c.FullPath(), "error", err,
			"requestId", c.GetString(middleware.ContextRequestID))
	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err,
			"requestId", c.GetString(middleware.ContextRequestID))
		body["error"] = genericErrorMessage
	}

	_ = c.Error(err)
	c.JSON(status, body)
}

// bindJSON decodes the request body into obj, answering 400 with the field
// issues when it cannot.
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		respondError(c, errs.InvalidInput(utils.Issues(err)))
		return false
	}
	return true
}

// bindOptionalJSON is bindJSON for endpoints whose body may be absent.
func bindOptionalJSON(c *gin.Context, obj interface{}) bool {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, errs.InvalidInput(utils.Issues(err)))
		return false
	}
	return true
}

// principal returns the authenticated caller or answers 401.
func principal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		respondError(c, errs.Unauthorized("Authentication required"))
		return models.Principal{}, false
	}
	return p, true
}

func queryBool(c *gin.Context, key string) bool {
	switch c.Query(key) {
	case "true", "1":
		return true
	default:
		return false
	}
}
