package models

import "time"

// CreateCampaignRequest is the body of a campaign creation
type CreateCampaignRequest struct {
	Name        string                     `json:"name" validate:"required,min=1,max=200"`
	Description string                     `json:"description" validate:"max=1000"`
	Channels    []Channel                  `json:"channels" validate:"required,min=1,unique,dive,channel"`
	Content     map[Channel]ChannelContent `json:"content" validate:"omitempty,dive,keys,channel,endkeys"`
	Targeting   TargetingCriteria          `json:"targeting"`
	SegmentID   string                     `json:"segmentId,omitempty"`
	Scheduling  Scheduling                 `json:"scheduling"`
}

// UpdateCampaignRequest carries the fields of a draft edit. Nil fields are kept.
type UpdateCampaignRequest struct {
	Name        *string                    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string                    `json:"description,omitempty" validate:"omitempty,max=1000"`
	Channels    []Channel                  `json:"channels,omitempty" validate:"omitempty,min=1,unique,dive,channel"`
	Content     map[Channel]ChannelContent `json:"content,omitempty" validate:"omitempty,dive,keys,channel,endkeys"`
	Targeting   *TargetingCriteria         `json:"targeting,omitempty"`
	Scheduling  *Scheduling                `json:"scheduling,omitempty"`
}

// StartResult is returned by a campaign start
type StartResult struct {
	Campaign           *NotificationCampaign `json:"campaign"`
	EstimatedAudience  int64                 `json:"estimatedAudience"`
	ValidationWarnings []string              `json:"validationWarnings,omitempty"`
	Message            string                `json:"message"`
}

// ActivityEntry is one line of a campaign's recent activity
type ActivityEntry struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// ChannelProgress is the share of the aggregate counters attributed to one channel
type ChannelProgress struct {
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	InProgress int64 `json:"inProgress"`
}

// ProgressReport is the delivery progress view of a campaign. ChannelProgress
// is an even split of the aggregate counters, not per-channel accounting.
type ProgressReport struct {
	CampaignID                 string                      `json:"campaignId"`
	Status                     CampaignStatus              `json:"status"`
	Progress                   CampaignProgress            `json:"progress"`
	CompletionPercentage       int                         `json:"completionPercentage"`
	SuccessRate                int                         `json:"successRate"`
	EstimatedCompletionTime    *time.Time                  `json:"estimatedCompletionTime"`
	RecentActivity             []ActivityEntry             `json:"recentActivity"`
	ChannelProgress            map[Channel]ChannelProgress `json:"channelProgress"`
	ChannelProgressApproximate bool                        `json:"channelProgressApproximate"`
}

// LoginResponse is returned by a successful staff login
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	Account   StaffAccount `json:"account"`
}
