package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNeedsCountUpdateBoundary(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	s := AudienceSegment{LastUpdated: now.Add(-3600 * time.Second)}
	assert.False(t, s.NeedsCountUpdate(now), "exactly 3600s is fresh")

	s.LastUpdated = now.Add(-3600*time.Second - time.Millisecond)
	assert.True(t, s.NeedsCountUpdate(now))

	s.LastUpdated = now
	assert.False(t, s.NeedsCountUpdate(now))
}

func TestSegmentAccess(t *testing.T) {
	s := AudienceSegment{CreatedBy: "u1"}
	owner := Principal{ID: "u1", Role: RoleModerator}
	other := Principal{ID: "u2", Role: RoleModerator}
	boss := Principal{ID: "u3", Role: RoleAdmin}

	assert.True(t, s.VisibleTo(owner))
	assert.False(t, s.VisibleTo(other))
	assert.True(t, s.EditableBy(boss))
	assert.False(t, s.EditableBy(other))

	s.IsShared = true
	assert.True(t, s.VisibleTo(other))
	assert.False(t, s.EditableBy(other))
}

func TestCriteriaSummary(t *testing.T) {
	tests := []struct {
		criteria TargetingCriteria
		want     string
	}{
		{TargetingCriteria{Roles: []Role{RoleUser}, Locations: []string{"Gorakhpur"}, Logic: LogicAnd}, "Roles: user AND Locations: Gorakhpur"},
		{TargetingCriteria{Roles: []Role{RoleUser, RoleScrapper, RoleUser}, Locations: []string{"A", "B"}, Logic: LogicOr}, "Roles: user, scrapper OR Locations: A, B"},
		{TargetingCriteria{ActivityStatus: ActivityNew}, "Activity: new"},
		{TargetingCriteria{CustomFilters: map[string]interface{}{"b": 1, "a": 2}}, "Custom filters: a, b"},
		{TargetingCriteria{}, "All users"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.criteria.Summary())
	}
}

func TestAudienceMemberReachability(t *testing.T) {
	off := false
	m := AudienceMember{Email: "a@example.org", Preferences: &ChannelPreferences{Email: &off}}

	assert.True(t, m.Reachable(ChannelEmail, false))
	assert.False(t, m.Reachable(ChannelEmail, true))
	assert.False(t, m.Reachable(ChannelSMS, false), "no phone")
	assert.True(t, m.Reachable(ChannelWebPush, true))
}
