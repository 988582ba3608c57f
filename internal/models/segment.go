package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SegmentCountTTL is how long a cached segment population count stays fresh.
const SegmentCountTTL = time.Hour

// AudienceSegment is a named, reusable targeting criteria set
type AudienceSegment struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name        string             `bson:"name" json:"name"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Criteria    TargetingCriteria  `bson:"criteria" json:"criteria"`
	UserCount   int64              `bson:"userCount" json:"userCount"`
	LastUpdated time.Time          `bson:"lastUpdated" json:"lastUpdated"`
	IsShared    bool               `bson:"isShared" json:"isShared"`
	CreatedBy   string             `bson:"createdBy" json:"createdBy"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// NeedsCountUpdate is true once the cached count is strictly older than SegmentCountTTL.
func (s *AudienceSegment) NeedsCountUpdate(now time.Time) bool {
	return now.Sub(s.LastUpdated) > SegmentCountTTL
}

// VisibleTo reports whether the principal may read the segment.
func (s *AudienceSegment) VisibleTo(p Principal) bool {
	return s.CreatedBy == p.ID || s.IsShared
}

// EditableBy reports whether the principal may modify or delete the segment.
func (s *AudienceSegment) EditableBy(p Principal) bool {
	return s.CreatedBy == p.ID || p.Role == RoleAdmin
}

// SegmentView is a segment decorated with the fields derived for the caller
type SegmentView struct {
	*AudienceSegment
	CriteriaSummary  string         `json:"criteriaSummary"`
	CanEdit          bool           `json:"canEdit"`
	NeedsCountUpdate bool           `json:"needsCountUpdate"`
	SampleUsers      []RedactedUser `json:"sampleUsers,omitempty"`
}

// SegmentFilter narrows a segment listing. CreatedBy and IsShared, when set,
// replace the default "mine or shared" visibility rule.
type SegmentFilter struct {
	Page      int
	Limit     int
	Search    string
	CreatedBy *string
	IsShared  *bool
}

// SegmentPatch carries the mutable fields of a segment update
type SegmentPatch struct {
	Name        *string            `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description *string            `json:"description,omitempty" validate:"omitempty,max=500"`
	Criteria    *TargetingCriteria `json:"criteria,omitempty"`
	IsShared    *bool              `json:"isShared,omitempty"`
}
