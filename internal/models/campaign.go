package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampaignStatus is the lifecycle state of a notification campaign
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
	CampaignFailed    CampaignStatus = "failed"
	CampaignCancelled CampaignStatus = "cancelled"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:     {CampaignScheduled, CampaignRunning},
	CampaignScheduled: {CampaignRunning, CampaignCancelled},
	CampaignRunning:   {CampaignPaused, CampaignCompleted, CampaignFailed},
	CampaignPaused:    {CampaignRunning},
	CampaignCompleted: {},
	CampaignFailed:    {},
	CampaignCancelled: {},
}

// IsValid reports whether s is a known state.
func (s CampaignStatus) IsValid() bool {
	_, ok := campaignTransitions[s]
	return ok
}

// IsTerminal reports whether no transition can leave s.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignCompleted || s == CampaignFailed || s == CampaignCancelled
}

// AllowedTransitions returns the states reachable from s in one step.
func (s CampaignStatus) AllowedTransitions() []CampaignStatus {
	next := campaignTransitions[s]
	out := make([]CampaignStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether target is reachable from s in one step.
func (s CampaignStatus) CanTransitionTo(target CampaignStatus) bool {
	for _, next := range campaignTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// SourcesOf returns every state that may move to target.
func SourcesOf(target CampaignStatus) []CampaignStatus {
	var out []CampaignStatus
	for _, from := range []CampaignStatus{
		CampaignDraft, CampaignScheduled, CampaignRunning, CampaignPaused,
		CampaignCompleted, CampaignFailed, CampaignCancelled,
	} {
		if from.CanTransitionTo(target) {
			out = append(out, from)
		}
	}
	return out
}

// SchedulingType says when a campaign is sent
type SchedulingType string

const (
	ScheduleImmediate SchedulingType = "immediate"
	ScheduleScheduled SchedulingType = "scheduled"
	ScheduleRecurring SchedulingType = "recurring"
)

// RecurringSchedule describes a repeating send
type RecurringSchedule struct {
	Frequency string     `bson:"frequency" json:"frequency" validate:"required,oneof=daily weekly monthly"`
	Interval  int        `bson:"interval,omitempty" json:"interval,omitempty" validate:"omitempty,min=1"`
	EndDate   *time.Time `bson:"endDate,omitempty" json:"endDate,omitempty"`
}

// Scheduling holds the send timing of a campaign
type Scheduling struct {
	Type         SchedulingType     `bson:"type" json:"type" validate:"omitempty,oneof=immediate scheduled recurring"`
	ScheduledFor *time.Time         `bson:"scheduledFor,omitempty" json:"scheduledFor,omitempty"`
	Recurring    *RecurringSchedule `bson:"recurring,omitempty" json:"recurring,omitempty"`
}

// ChannelContent is the message shown on one channel
type ChannelContent struct {
	Title   string `bson:"title" json:"title"`
	Message string `bson:"message" json:"message"`
}

// CampaignProgress holds the delivery counters. Sent+Failed+InProgress == Total
// after every update.
type CampaignProgress struct {
	Total      int64 `bson:"total" json:"total"`
	Sent       int64 `bson:"sent" json:"sent"`
	Failed     int64 `bson:"failed" json:"failed"`
	InProgress int64 `bson:"inProgress" json:"inProgress"`
}

// Recompute derives InProgress from the other counters, clamped at zero.
func (p *CampaignProgress) Recompute() {
	p.InProgress = p.Total - p.Sent - p.Failed
	if p.InProgress < 0 {
		p.InProgress = 0
	}
}

// HistoryEntry is one pause or resume event
type HistoryEntry struct {
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	Reason    string    `bson:"reason,omitempty" json:"reason,omitempty"`
}

// CampaignMetadata holds bookkeeping that is not part of the campaign definition
type CampaignMetadata struct {
	AudienceEstimated bool           `bson:"audienceEstimated" json:"audienceEstimated"`
	PauseHistory      []HistoryEntry `bson:"pauseHistory,omitempty" json:"pauseHistory,omitempty"`
	ResumeHistory     []HistoryEntry `bson:"resumeHistory,omitempty" json:"resumeHistory,omitempty"`
	CancelReason      string         `bson:"cancelReason,omitempty" json:"cancelReason,omitempty"`
	FailureReason     string         `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
}

// NotificationCampaign is a multi-channel notification send
type NotificationCampaign struct {
	ID          primitive.ObjectID         `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string                     `bson:"name" json:"name"`
	Description string                     `bson:"description,omitempty" json:"description,omitempty"`
	Status      CampaignStatus             `bson:"status" json:"status"`
	Channels    []Channel                  `bson:"channels" json:"channels"`
	Content     map[Channel]ChannelContent `bson:"content" json:"content"`
	Targeting   TargetingCriteria          `bson:"targeting" json:"targeting"`
	SegmentID   *primitive.ObjectID        `bson:"segmentId,omitempty" json:"segmentId,omitempty"`
	Scheduling  Scheduling                 `bson:"scheduling" json:"scheduling"`
	Progress    CampaignProgress           `bson:"progress" json:"progress"`
	Metadata    CampaignMetadata           `bson:"metadata" json:"metadata"`
	StartedAt   *time.Time                 `bson:"startedAt,omitempty" json:"startedAt,omitempty"`
	CompletedAt *time.Time                 `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedBy   string                     `bson:"createdBy" json:"createdBy"`
	CreatedAt   time.Time                  `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time                  `bson:"updatedAt" json:"updatedAt"`
}

// CanTransitionTo reports whether the campaign may move to target.
func (c *NotificationCampaign) CanTransitionTo(target CampaignStatus) bool {
	return c.Status.CanTransitionTo(target)
}

// ProgressUpdate is the raw counter report posted by delivery workers
type ProgressUpdate struct {
	Sent   int64           `json:"sent"`
	Failed int64           `json:"failed"`
	Total  *int64          `json:"total,omitempty"`
	Status *CampaignStatus `json:"status,omitempty"`
}

// CampaignFilter narrows a campaign listing
type CampaignFilter struct {
	Page   int
	Limit  int
	Status CampaignStatus
}
