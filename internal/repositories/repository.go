package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
)

var (
	// ErrNotFound is returned when no document matches an id-keyed lookup.
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when a write violates a unique index.
	ErrDuplicate = errors.New("duplicate key")
	// ErrStateChanged is returned when a conditional write finds the document
	// no longer in the expected state.
	ErrStateChanged = errors.New("document state changed concurrently")
)

// AudienceQuery selects a slice of the user population in natural (_id) order
type AudienceQuery struct {
	Filter bson.M
	Skip   int64
	Limit  int64
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	CountAudience(ctx context.Context, filter bson.M) (int64, error)
	// StreamAudience calls fn for every matching member joined with its
	// notification preferences. Returning an error from fn stops the stream.
	StreamAudience(ctx context.Context, query AudienceQuery, fn func(*models.AudienceMember) error) error
}

// PreferenceRepository defines the interface for notification preference operations
type PreferenceRepository interface {
	Upsert(ctx context.Context, pref *models.NotificationPreference) error
	FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.NotificationPreference, error)
}

// SegmentRepository defines the interface for audience segment operations
type SegmentRepository interface {
	Create(ctx context.Context, segment *models.AudienceSegment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.AudienceSegment, error)
	ExistsByName(ctx context.Context, createdBy, name string, excludeID primitive.ObjectID) (bool, error)
	Update(ctx context.Context, segment *models.AudienceSegment) error
	UpdateCount(ctx context.Context, id primitive.ObjectID, count int64, at time.Time) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	Find(ctx context.Context, filter bson.M, page, limit int) ([]*models.AudienceSegment, int64, error)
	FindStale(ctx context.Context, updatedBefore time.Time) ([]*models.AudienceSegment, error)
}

// StatusChange is a conditional campaign state transition. The write only
// happens while the stored status is one of From.
type StatusChange struct {
	From              []models.CampaignStatus
	To                models.CampaignStatus
	Progress          *models.CampaignProgress
	AudienceEstimated *bool
	StartedAt         *time.Time
	CompletedAt       *time.Time
	PauseEntry        *models.HistoryEntry
	ResumeEntry       *models.HistoryEntry
	CancelReason      string
	FailureReason     string
}

// CampaignRepository defines the interface for notification campaign operations
type CampaignRepository interface {
	Create(ctx context.Context, campaign *models.NotificationCampaign) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.NotificationCampaign, error)
	Find(ctx context.Context, filter models.CampaignFilter) ([]*models.NotificationCampaign, int64, error)
	// UpdateDraft replaces the editable fields while the campaign is still a draft.
	UpdateDraft(ctx context.Context, campaign *models.NotificationCampaign) error
	// DeleteIn removes the campaign only while its status is one of statuses.
	DeleteIn(ctx context.Context, id primitive.ObjectID, statuses []models.CampaignStatus) error
	TransitionStatus(ctx context.Context, id primitive.ObjectID, change StatusChange) (*models.NotificationCampaign, error)
	// SetProgress stores absolute counters and recomputes inProgress in the same write.
	SetProgress(ctx context.Context, id primitive.ObjectID, sent, failed int64, total *int64) (*models.NotificationCampaign, error)
	// IncrementProgress adds to the counters and recomputes inProgress in the same write.
	IncrementProgress(ctx context.Context, id primitive.ObjectID, sentDelta, failedDelta int64) (*models.NotificationCampaign, error)
	// ReconcileTotal replaces an estimated total with a counted one.
	ReconcileTotal(ctx context.Context, id primitive.ObjectID, total int64) (*models.NotificationCampaign, error)
}

// DonationRepository defines the interface for donation operations
type DonationRepository interface {
	Create(ctx context.Context, donation *models.Donation) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error)
	FindByStatus(ctx context.Context, status models.DonationStatus, limit int) ([]*models.Donation, error)
	// UpdateStatus moves the donation from change.From to change.To and appends
	// change to its history. paymentID is stored when not empty.
	UpdateStatus(ctx context.Context, id primitive.ObjectID, change models.DonationStatusChange, paymentID string) error
}

// DeliveryJobRepository defines the interface for the delivery job queue
type DeliveryJobRepository interface {
	Enqueue(ctx context.Context, job *models.DeliveryJob) error
	// ClaimDue atomically takes the oldest queued job whose RunAt has passed.
	// It returns ErrNotFound when nothing is due.
	ClaimDue(ctx context.Context, now time.Time, workerID string) (*models.DeliveryJob, error)
	SaveOffset(ctx context.Context, id string, offset int64) error
	Park(ctx context.Context, id string, offset int64) error
	// Requeue makes the parked job of a campaign claimable again.
	Requeue(ctx context.Context, campaignID primitive.ObjectID, runAt time.Time) (bool, error)
	Finish(ctx context.Context, id string, status models.DeliveryJobStatus, lastError string) error
	// CancelPending fails queued or parked jobs of a campaign.
	CancelPending(ctx context.Context, campaignID primitive.ObjectID, reason string) error
}

// NotificationRepository defines the interface for the delivery log
type NotificationRepository interface {
	InsertMany(ctx context.Context, notifications []*models.Notification) error
	FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID, page, limit int) ([]*models.Notification, error)
}

// StaffAccountRepository defines the interface for back-office login accounts
type StaffAccountRepository interface {
	Create(ctx context.Context, account *models.StaffAccount) error
	FindByEmail(ctx context.Context, email string) (*models.StaffAccount, error)
}
