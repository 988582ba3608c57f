package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/services"
)

var (
	_ services.AudienceService        = (*mockAudienceService)(nil)
	_ services.SegmentService         = (*mockSegmentService)(nil)
	_ services.CampaignService        = (*mockCampaignService)(nil)
	_ services.ProgressService        = (*mockProgressService)(nil)
	_ services.RecheckService         = (*mockRecheckService)(nil)
	_ services.AuthService            = (*mockAuthService)(nil)
	_ services.NotificationLogService = (*mockNotificationLogService)(nil)
	_ services.UserService            = (*mockUserService)(nil)
)

type mockAudienceService struct{ mock.Mock }

func (m *mockAudienceService) Preview(ctx context.Context, req models.PreviewRequest) (*models.AudiencePreview, error) {
	args := m.Called(ctx, req)
	preview, _ := args.Get(0).(*models.AudiencePreview)
	return preview, args.Error(1)
}

func (m *mockAudienceService) Count(ctx context.Context, criteria models.TargetingCriteria) (int64, error) {
	args := m.Called(ctx, criteria)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockAudienceService) SampleUsers(ctx context.Context, criteria models.TargetingCriteria, limit int) ([]models.RedactedUser, error) {
	args := m.Called(ctx, criteria, limit)
	users, _ := args.Get(0).([]models.RedactedUser)
	return users, args.Error(1)
}

type mockSegmentService struct{ mock.Mock }

func (m *mockSegmentService) Create(ctx context.Context, caller models.Principal, req models.CreateSegmentRequest) (*models.SegmentView, error) {
	args := m.Called(ctx, caller, req)
	view, _ := args.Get(0).(*models.SegmentView)
	return view, args.Error(1)
}

func (m *mockSegmentService) Get(ctx context.Context, caller models.Principal, id string, opts models.SegmentGetOptions) (*models.SegmentView, error) {
	args := m.Called(ctx, caller, id, opts)
	view, _ := args.Get(0).(*models.SegmentView)
	return view, args.Error(1)
}

func (m *mockSegmentService) List(ctx context.Context, caller models.Principal, filter models.SegmentFilter) ([]*models.SegmentView, models.Pagination, error) {
	args := m.Called(ctx, caller, filter)
	views, _ := args.Get(0).([]*models.SegmentView)
	return views, args.Get(1).(models.Pagination), args.Error(2)
}

func (m *mockSegmentService) Update(ctx context.Context, caller models.Principal, id string, patch models.SegmentPatch) (*models.SegmentView, error) {
	args := m.Called(ctx, caller, id, patch)
	view, _ := args.Get(0).(*models.SegmentView)
	return view, args.Error(1)
}

func (m *mockSegmentService) Delete(ctx context.Context, caller models.Principal, id string) error {
	return m.Called(ctx, caller, id).Error(0)
}

func (m *mockSegmentService) RefreshStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockCampaignService struct{ mock.Mock }

func (m *mockCampaignService) campaign(args mock.Arguments) (*models.NotificationCampaign, error) {
	campaign, _ := args.Get(0).(*models.NotificationCampaign)
	return campaign, args.Error(1)
}

func (m *mockCampaignService) Create(ctx context.Context, caller models.Principal, req models.CreateCampaignRequest) (*models.NotificationCampaign, error) {
	return m.campaign(m.Called(ctx, caller, req))
}

func (m *mockCampaignService) Get(ctx context.Context, id string) (*models.NotificationCampaign, error) {
	return m.campaign(m.Called(ctx, id))
}

func (m *mockCampaignService) List(ctx context.Context, filter models.CampaignFilter) ([]*models.NotificationCampaign, models.Pagination, error) {
	args := m.Called(ctx, filter)
	campaigns, _ := args.Get(0).([]*models.NotificationCampaign)
	return campaigns, args.Get(1).(models.Pagination), args.Error(2)
}

func (m *mockCampaignService) Update(ctx context.Context, id string, req models.UpdateCampaignRequest) (*models.NotificationCampaign, error) {
	return m.campaign(m.Called(ctx, id, req))
}

func (m *mockCampaignService) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockCampaignService) Start(ctx context.Context, id string, force bool) (*models.StartResult, error) {
	args := m.Called(ctx, id, force)
	result, _ := args.Get(0).(*models.StartResult)
	return result, args.Error(1)
}

func (m *mockCampaignService) Pause(ctx context.Context, id string, reason string) (*models.NotificationCampaign, error) {
	return m.campaign(m.Called(ctx, id, reason))
}

func (m *mockCampaignService) Resume(ctx context.Context, id string, reason string) (*models.NotificationCampaign, error) {
	return m.campaign(m.Called(ctx, id, reason))
}

func (m *mockCampaignService) Cancel(ctx context.Context, id string, reason string) (*models.NotificationCampaign, error) {
	return m.campaign(m.Called(ctx, id, reason))
}

func (m *mockCampaignService) UpdateProgress(ctx context.Context, id string, update models.ProgressUpdate) (*models.NotificationCampaign, error) {
	return m.campaign(m.Called(ctx, id, update))
}

type mockProgressService struct{ mock.Mock }

func (m *mockProgressService) Get(ctx context.Context, id string) (*models.ProgressReport, error) {
	args := m.Called(ctx, id)
	report, _ := args.Get(0).(*models.ProgressReport)
	return report, args.Error(1)
}

// mockRecheckService replays its events through emit.
type mockRecheckService struct {
	mock.Mock
	events []models.RecheckEvent
}

func (m *mockRecheckService) Recheck(ctx context.Context, ids []string, emit func(models.RecheckEvent) error) error {
	args := m.Called(ctx, ids)
	for _, event := range m.events {
		if err := emit(event); err != nil {
			return err
		}
	}
	return args.Error(0)
}

type mockAuthService struct{ mock.Mock }

func (m *mockAuthService) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*models.LoginResponse)
	return resp, args.Error(1)
}

func (m *mockAuthService) CreateStaff(ctx context.Context, name, email, password string, role models.Role) (*models.StaffAccount, error) {
	args := m.Called(ctx, name, email, password, role)
	account, _ := args.Get(0).(*models.StaffAccount)
	return account, args.Error(1)
}

type mockNotificationLogService struct{ mock.Mock }

func (m *mockNotificationLogService) ListByCampaign(ctx context.Context, campaignID string, page, limit int) ([]*models.Notification, error) {
	args := m.Called(ctx, campaignID, page, limit)
	logs, _ := args.Get(0).([]*models.Notification)
	return logs, args.Error(1)
}

type mockUserService struct{ mock.Mock }

func (m *mockUserService) pref(args mock.Arguments) (*models.NotificationPreference, error) {
	pref, _ := args.Get(0).(*models.NotificationPreference)
	return pref, args.Error(1)
}

func (m *mockUserService) GetPreferences(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	return m.pref(m.Called(ctx, userID))
}

func (m *mockUserService) OptIn(ctx context.Context, userID string, channels []models.Channel) (*models.NotificationPreference, error) {
	return m.pref(m.Called(ctx, userID, channels))
}

func (m *mockUserService) OptOut(ctx context.Context, userID string, channels []models.Channel) (*models.NotificationPreference, error) {
	return m.pref(m.Called(ctx, userID, channels))
}
