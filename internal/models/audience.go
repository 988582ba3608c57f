package models

// PreviewRequest asks for the reach of a criteria over a set of channels.
// An empty channel list means every channel.
type PreviewRequest struct {
	Criteria        TargetingCriteria `json:"criteria"`
	Channels        []Channel         `json:"channels" validate:"omitempty,dive,channel"`
	ExcludeOptedOut bool              `json:"excludeOptedOut"`
}

// ContactMethodCounts counts matched users by the contact fields they have
type ContactMethodCounts struct {
	Email int64 `json:"email"`
	Phone int64 `json:"phone"`
}

// LocationCount is one row of the location breakdown
type LocationCount struct {
	Location string `json:"location"`
	Count    int64  `json:"count"`
}

// Demographics breaks the matched population down by role, location and contact method.
// Locations holds at most ten rows, largest first.
type Demographics struct {
	Roles          map[Role]int64      `json:"roles"`
	Locations      []LocationCount     `json:"locations"`
	ContactMethods ContactMethodCounts `json:"contactMethods"`
}

// AudiencePreview is the evaluated reach of a criteria
type AudiencePreview struct {
	TotalUsers        int64             `json:"totalUsers"`
	ChannelBreakdown  map[Channel]int64 `json:"channelBreakdown"`
	EffectiveAudience int64             `json:"effectiveAudience"`
	Demographics      Demographics      `json:"demographics"`
	SampleUsers       []RedactedUser    `json:"sampleUsers"`
}

// CreateSegmentRequest is the body of a segment creation
type CreateSegmentRequest struct {
	Name        string            `json:"name" validate:"required,min=1,max=100"`
	Description string            `json:"description" validate:"max=500"`
	Criteria    TargetingCriteria `json:"criteria"`
	IsShared    bool              `json:"isShared"`
}

// SegmentGetOptions controls what a segment read returns
type SegmentGetOptions struct {
	IncludeUsers bool
	RefreshCount bool
}
