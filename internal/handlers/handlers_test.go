package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/middleware"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
)

var testAdmin = models.Principal{ID: "admin-1", Email: "admin@example.org", Role: models.RoleAdmin}

func asCaller(p models.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, p.ID)
		c.Set(middleware.ContextUserEmail, p.Email)
		c.Set(middleware.ContextUserRole, string(p.Role))
		c.Next()
	}
}

func newTestRouter(caller *models.Principal) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if caller != nil {
		r.Use(asCaller(*caller))
	}
	return r
}

func perform(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestPreviewRejectsMalformedBody(t *testing.T) {
	svc := &mockAudienceService{}
	r := newTestRouter(&testAdmin)
	r.POST("/preview", NewAudienceHandler(svc).Preview)

	w := perform(r, http.MethodPost, "/preview", `{"criteria":`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Invalid request data", body["error"])
	assert.NotEmpty(t, body["issues"])
	svc.AssertNotCalled(t, "Preview", mock.Anything, mock.Anything)
}

func TestPreviewReturnsEnvelope(t *testing.T) {
	svc := &mockAudienceService{}
	svc.On("Preview", mock.Anything, mock.MatchedBy(func(req models.PreviewRequest) bool {
		return len(req.Criteria.Roles) == 1 && req.Criteria.Roles[0] == models.RoleUser && req.ExcludeOptedOut
	})).Return(&models.AudiencePreview{TotalUsers: 42, EffectiveAudience: 40}, nil)

	r := newTestRouter(&testAdmin)
	r.POST("/preview", NewAudienceHandler(svc).Preview)

	w := perform(r, http.MethodPost, "/preview", `{"criteria":{"roles":["user"]},"channels":["email"],"excludeOptedOut":true}`)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 42, data["totalUsers"])
	assert.EqualValues(t, 40, data["effectiveAudience"])
	svc.AssertExpectations(t)
}

func TestPreviewValidationIssuesFromService(t *testing.T) {
	svc := &mockAudienceService{}
	issues := []errs.Issue{{Code: "invalid_enum_value", Path: []string{"criteria", "roles", "0"}, Message: `Invalid role "boss"`}}
	svc.On("Preview", mock.Anything, mock.Anything).Return(nil, errs.InvalidInput(issues))

	r := newTestRouter(&testAdmin)
	r.POST("/preview", NewAudienceHandler(svc).Preview)

	w := perform(r, http.MethodPost, "/preview", `{"criteria":{"roles":["boss"]}}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	require.Len(t, body["issues"], 1)
	issue := body["issues"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, []interface{}{"criteria", "roles", "0"}, issue["path"])
	assert.Nil(t, body["details"])
}

func TestSegmentCreateReturnsCreated(t *testing.T) {
	svc := &mockSegmentService{}
	view := &models.SegmentView{AudienceSegment: &models.AudienceSegment{Name: "Volunteers", CreatedBy: testAdmin.ID}, CanEdit: true}
	svc.On("Create", mock.Anything, testAdmin, mock.MatchedBy(func(req models.CreateSegmentRequest) bool {
		return req.Name == "Volunteers" && req.IsShared
	})).Return(view, nil)

	r := newTestRouter(&testAdmin)
	r.POST("/segments", NewSegmentHandler(svc).Create)

	w := perform(r, http.MethodPost, "/segments", `{"name":"Volunteers","criteria":{"roles":["field_executive"]},"isShared":true}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "Volunteers", data["name"])
	assert.Equal(t, true, data["canEdit"])
	svc.AssertExpectations(t)
}

func TestSegmentRequiresAuthenticatedCaller(t *testing.T) {
	svc := &mockSegmentService{}
	r := newTestRouter(nil)
	r.GET("/segments", NewSegmentHandler(svc).List)

	w := perform(r, http.MethodGet, "/segments", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
}

func TestSegmentListParsesQuery(t *testing.T) {
	svc := &mockSegmentService{}
	svc.On("List", mock.Anything, testAdmin, mock.MatchedBy(func(f models.SegmentFilter) bool {
		return f.Page == 2 && f.Limit == 5 && f.Search == "vol" &&
			f.CreatedBy != nil && *f.CreatedBy == "mod-7" &&
			f.IsShared != nil && *f.IsShared
	})).Return([]*models.SegmentView{}, models.Pagination{Page: 2, Limit: 5, Total: 6, TotalPages: 2}, nil)

	r := newTestRouter(&testAdmin)
	r.GET("/segments", NewSegmentHandler(svc).List)

	w := perform(r, http.MethodGet, "/segments?page=2&limit=5&search=vol&createdBy=mod-7&isShared=true", "")

	require.Equal(t, http.StatusOK, w.Code)
	pagination := decode(t, w)["pagination"].(map[string]interface{})
	assert.EqualValues(t, 2, pagination["totalPages"])
	svc.AssertExpectations(t)
}

func TestSegmentListRejectsBadSharedFlag(t *testing.T) {
	r := newTestRouter(&testAdmin)
	r.GET("/segments", NewSegmentHandler(&mockSegmentService{}).List)

	w := perform(r, http.MethodGet, "/segments?isShared=maybe", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSegmentGetMapsForbidden(t *testing.T) {
	svc := &mockSegmentService{}
	svc.On("Get", mock.Anything, testAdmin, "abc", models.SegmentGetOptions{IncludeUsers: true}).
		Return(nil, errs.Forbidden("You do not have access to this segment"))

	r := newTestRouter(&testAdmin)
	r.GET("/segments/:id", NewSegmentHandler(svc).Get)

	w := perform(r, http.MethodGet, "/segments/abc?includeUsers=true", "")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "You do not have access to this segment", decode(t, w)["error"])
}

func TestCampaignStartWithoutBody(t *testing.T) {
	svc := &mockCampaignService{}
	campaign := &models.NotificationCampaign{Name: "Eid appeal", Status: models.CampaignRunning}
	svc.On("Start", mock.Anything, "c1", false).Return(&models.StartResult{
		Campaign:          campaign,
		EstimatedAudience: 250,
		Message:           "Campaign started successfully",
	}, nil)

	r := newTestRouter(&testAdmin)
	r.POST("/campaigns/:id/start", NewCampaignHandler(svc, &mockProgressService{}).Start)

	w := perform(r, http.MethodPost, "/campaigns/c1/start", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 250, body["estimatedAudience"])
	assert.Equal(t, "Campaign started successfully", body["message"])
	assert.Equal(t, []interface{}{}, body["validationWarnings"])
	assert.Equal(t, "running", body["data"].(map[string]interface{})["status"])
	svc.AssertExpectations(t)
}

func TestCampaignStartForced(t *testing.T) {
	svc := &mockCampaignService{}
	svc.On("Start", mock.Anything, "c1", true).Return(&models.StartResult{
		Campaign:           &models.NotificationCampaign{Status: models.CampaignRunning},
		ValidationWarnings: []string{"Missing content for channel: sms"},
		Message:            "Campaign started successfully",
	}, nil)

	r := newTestRouter(&testAdmin)
	r.POST("/campaigns/:id/start", NewCampaignHandler(svc, &mockProgressService{}).Start)

	w := perform(r, http.MethodPost, "/campaigns/c1/start", `{"force":true}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"Missing content for channel: sms"}, decode(t, w)["validationWarnings"])
}

func TestCampaignStartValidationDetails(t *testing.T) {
	svc := &mockCampaignService{}
	svc.On("Start", mock.Anything, "c1", false).
		Return(nil, errs.Validation("Campaign validation failed", "Target roles are required"))

	r := newTestRouter(&testAdmin)
	r.POST("/campaigns/:id/start", NewCampaignHandler(svc, &mockProgressService{}).Start)

	w := perform(r, http.MethodPost, "/campaigns/c1/start", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Campaign validation failed", body["error"])
	assert.Equal(t, []interface{}{"Target roles are required"}, body["details"])
}

func TestCampaignPauseInvalidTransition(t *testing.T) {
	svc := &mockCampaignService{}
	svc.On("Pause", mock.Anything, "c1", "maintenance").
		Return(nil, errs.InvalidTransition("completed", "paused"))

	r := newTestRouter(&testAdmin)
	r.POST("/campaigns/:id/pause", NewCampaignHandler(svc, &mockProgressService{}).Pause)

	w := perform(r, http.MethodPost, "/campaigns/c1/pause", `{"reason":"maintenance"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "cannot transition campaign from completed to paused", decode(t, w)["error"])
}

func TestCampaignCancelPassesReason(t *testing.T) {
	svc := &mockCampaignService{}
	svc.On("Cancel", mock.Anything, "c1", "").
		Return(&models.NotificationCampaign{Status: models.CampaignCancelled}, nil)

	r := newTestRouter(&testAdmin)
	r.POST("/campaigns/:id/cancel", NewCampaignHandler(svc, &mockProgressService{}).Cancel)

	w := perform(r, http.MethodPost, "/campaigns/c1/cancel", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Campaign cancelled", decode(t, w)["message"])
	svc.AssertExpectations(t)
}

func TestUnexpectedErrorsAreHidden(t *testing.T) {
	svc := &mockCampaignService{}
	svc.On("Get", mock.Anything, "c1").Return(nil, errors.New("connection reset by peer"))

	r := newTestRouter(&testAdmin)
	r.GET("/campaigns/:id", NewCampaignHandler(svc, &mockProgressService{}).Get)

	w := perform(r, http.MethodGet, "/campaigns/c1", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, genericErrorMessage, decode(t, w)["error"])
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestCampaignProgressRoutes(t *testing.T) {
	campaigns := &mockCampaignService{}
	progress := &mockProgressService{}
	progress.On("Get", mock.Anything, "c1").Return(&models.ProgressReport{CampaignID: "c1", CompletionPercentage: 60}, nil)
	total := int64(100)
	campaigns.On("UpdateProgress", mock.Anything, "c1", models.ProgressUpdate{Sent: 50, Failed: 10, Total: &total}).
		Return(&models.NotificationCampaign{Progress: models.CampaignProgress{Total: 100, Sent: 50, Failed: 10, InProgress: 40}}, nil)

	h := NewCampaignHandler(campaigns, progress)
	r := newTestRouter(&testAdmin)
	r.GET("/campaigns/:id/progress", h.GetProgress)
	r.POST("/campaigns/:id/progress", h.UpdateProgress)

	w := perform(r, http.MethodGet, "/campaigns/c1/progress", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 60, decode(t, w)["data"].(map[string]interface{})["completionPercentage"])

	w = perform(r, http.MethodPost, "/campaigns/c1/progress", `{"sent":50,"failed":10,"total":100}`)
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]interface{})
	assert.EqualValues(t, 40, data["progress"].(map[string]interface{})["inProgress"])
	campaigns.AssertExpectations(t)
}

func TestRecheckStreamsNDJSON(t *testing.T) {
	svc := &mockRecheckService{events: []models.RecheckEvent{
		{Type: models.RecheckEventProgress, Completed: 1, Total: 2, Result: &models.PaymentRecheckResult{PaymentID: "d1", RecheckSuccess: true}},
		{Type: models.RecheckEventProgress, Completed: 2, Total: 2, Result: &models.PaymentRecheckResult{PaymentID: "d2", ErrorMessage: "Donation not found"}},
		{Type: models.RecheckEventComplete, Summary: &models.RecheckSummary{Total: 2, Successful: 1, Failed: 1}},
	}}
	svc.On("Recheck", mock.Anything, []string{"d1", "d2"}).Return(nil)

	r := newTestRouter(&testAdmin)
	r.POST("/recheck", NewRecheckHandler(svc).Recheck)

	w := perform(r, http.MethodPost, "/recheck", `{"donationIds":["d1","d2"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))

	var types []string
	scanner := bufio.NewScanner(strings.NewReader(w.Body.String()))
	for scanner.Scan() {
		var event models.RecheckEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &event))
		types = append(types, string(event.Type))
	}
	assert.Equal(t, []string{"progress", "progress", "complete"}, types)
	svc.AssertExpectations(t)
}

func TestRecheckRejectsEmptyBatch(t *testing.T) {
	svc := &mockRecheckService{}
	r := newTestRouter(&testAdmin)
	r.POST("/recheck", NewRecheckHandler(svc).Recheck)

	w := perform(r, http.MethodPost, "/recheck", `{"donationIds":[]}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decode(t, w)["issues"])
	svc.AssertNotCalled(t, "Recheck", mock.Anything, mock.Anything)
}

func TestLoginMapsUnauthorized(t *testing.T) {
	svc := &mockAuthService{}
	svc.On("Login", mock.Anything, models.LoginRequest{Email: "staff@example.org", Password: "wrong"}).
		Return(nil, errs.Unauthorized("Invalid email or password"))

	r := newTestRouter(nil)
	r.POST("/login", NewAuthHandler(svc).Login)

	w := perform(r, http.MethodPost, "/login", `{"email":"staff@example.org","password":"wrong"}`)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", decode(t, w)["error"])
}

func TestNotificationLogListing(t *testing.T) {
	svc := &mockNotificationLogService{}
	svc.On("ListByCampaign", mock.Anything, "c1", 1, 10).
		Return([]*models.Notification{{Channel: models.ChannelEmail, Status: "SENT"}}, nil)

	r := newTestRouter(&testAdmin)
	r.GET("/campaigns/:id/notifications", NewNotificationHandler(svc).GetNotificationsByCampaignID)

	w := perform(r, http.MethodGet, "/campaigns/c1/notifications", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)
}

func TestHealthWithoutDatabase(t *testing.T) {
	r := newTestRouter(nil)
	r.GET("/health", NewHealthHandler(nil).Health)

	w := perform(r, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode(t, w)["status"])
}

func TestOptOutPassesChannels(t *testing.T) {
	svc := &mockUserService{}
	off := false
	svc.On("OptOut", mock.Anything, "u1", []models.Channel{models.ChannelSMS}).
		Return(&models.NotificationPreference{Channels: models.ChannelPreferences{SMS: &off}}, nil)

	r := newTestRouter(&testAdmin)
	r.POST("/users/:id/opt-out", NewUserHandler(svc).OptOut)

	w := perform(r, http.MethodPost, "/users/u1/opt-out", `{"channels":["sms"]}`)

	require.Equal(t, http.StatusOK, w.Code)
	channels := decode(t, w)["data"].(map[string]interface{})["channels"].(map[string]interface{})
	assert.Equal(t, false, channels["sms"])
	svc.AssertExpectations(t)
}
