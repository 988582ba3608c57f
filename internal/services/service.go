package services

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
)

// AudienceService evaluates targeting criteria against the user population
type AudienceService interface {
	// Preview computes totals, per-channel reach, demographics and a redacted sample
	Preview(ctx context.Context, req models.PreviewRequest) (*models.AudiencePreview, error)

	// Count returns how many users match the criteria
	Count(ctx context.Context, criteria models.TargetingCriteria) (int64, error)

	// SampleUsers returns the first limit matching users, redacted
	SampleUsers(ctx context.Context, criteria models.TargetingCriteria, limit int) ([]models.RedactedUser, error)
}

// SegmentService manages saved audience segments
type SegmentService interface {
	Create(ctx context.Context, caller models.Principal, req models.CreateSegmentRequest) (*models.SegmentView, error)
	Get(ctx context.Context, caller models.Principal, id string, opts models.SegmentGetOptions) (*models.SegmentView, error)
	List(ctx context.Context, caller models.Principal, filter models.SegmentFilter) ([]*models.SegmentView, models.Pagination, error)
	Update(ctx context.Context, caller models.Principal, id string, patch models.SegmentPatch) (*models.SegmentView, error)
	Delete(ctx context.Context, caller models.Principal, id string) error

	// RefreshStale recounts every segment whose count has expired
	RefreshStale(ctx context.Context) (int, error)
}

// CampaignService governs the campaign lifecycle
type CampaignService interface {
	Create(ctx context.Context, caller models.Principal, req models.CreateCampaignRequest) (*models.NotificationCampaign, error)
	Get(ctx context.Context, id string) (*models.NotificationCampaign, error)
	List(ctx context.Context, filter models.CampaignFilter) ([]*models.NotificationCampaign, models.Pagination, error)
	Update(ctx context.Context, id string, req models.UpdateCampaignRequest) (*models.NotificationCampaign, error)
	Delete(ctx context.Context, id string) error

	Start(ctx context.Context, id string, force bool) (*models.StartResult, error)
	Pause(ctx context.Context, id string, reason string) (*models.NotificationCampaign, error)
	Resume(ctx context.Context, id string, reason string) (*models.NotificationCampaign, error)
	Cancel(ctx context.Context, id string, reason string) (*models.NotificationCampaign, error)

	// UpdateProgress applies an absolute counter report from a worker
	UpdateProgress(ctx context.Context, id string, update models.ProgressUpdate) (*models.NotificationCampaign, error)
}

// DeliveryTracker is the campaign surface used by delivery workers
type DeliveryTracker interface {
	Activate(ctx context.Context, id primitive.ObjectID) (*models.NotificationCampaign, error)
	ReconcileTotal(ctx context.Context, id primitive.ObjectID, total int64) (*models.NotificationCampaign, error)
	IncrementProgress(ctx context.Context, id primitive.ObjectID, sentDelta, failedDelta int64) (*models.NotificationCampaign, error)
	Finish(ctx context.Context, id primitive.ObjectID, status models.CampaignStatus, reason string) (*models.NotificationCampaign, error)
	Load(ctx context.Context, id primitive.ObjectID) (*models.NotificationCampaign, error)
}

// ProgressService reports delivery progress
type ProgressService interface {
	Get(ctx context.Context, id string) (*models.ProgressReport, error)
}

// RecheckService re-verifies donations against the payment gateway
type RecheckService interface {
	// Recheck processes ids in order, calling emit after each one and once at the end
	Recheck(ctx context.Context, ids []string, emit func(models.RecheckEvent) error) error
}

// UserService manages the per-channel opt-ins of users
type UserService interface {
	GetPreferences(ctx context.Context, userID string) (*models.NotificationPreference, error)
	OptIn(ctx context.Context, userID string, channels []models.Channel) (*models.NotificationPreference, error)
	OptOut(ctx context.Context, userID string, channels []models.Channel) (*models.NotificationPreference, error)
}

// NotificationLogService exposes the delivery log of a campaign
type NotificationLogService interface {
	ListByCampaign(ctx context.Context, campaignID string, page, limit int) ([]*models.Notification, error)
}

// AuthService authenticates back-office staff
type AuthService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	CreateStaff(ctx context.Context, name, email, password string, role models.Role) (*models.StaffAccount, error)
}
