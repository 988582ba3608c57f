package models

import (
	"sort"
	"strings"
)

// Channel is a notification delivery channel
type Channel string

const (
	ChannelWebPush  Channel = "web_push"
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
	ChannelSMS      Channel = "sms"
)

// AllChannels lists every supported channel in display order.
var AllChannels = []Channel{ChannelWebPush, ChannelEmail, ChannelWhatsApp, ChannelSMS}

// IsValid reports whether c is a supported channel.
func (c Channel) IsValid() bool {
	for _, known := range AllChannels {
		if c == known {
			return true
		}
	}
	return false
}

// ActivityStatus selects one of three mutually exclusive activity buckets
type ActivityStatus string

const (
	ActivityActive   ActivityStatus = "active"
	ActivityInactive ActivityStatus = "inactive"
	ActivityNew      ActivityStatus = "new"
)

// IsValid reports whether a is a known bucket.
func (a ActivityStatus) IsValid() bool {
	return a == ActivityActive || a == ActivityInactive || a == ActivityNew
}

// Logic combines the role and location clauses
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// TargetingCriteria is the declarative description of an audience
type TargetingCriteria struct {
	Roles          []Role                 `bson:"roles" json:"roles" validate:"omitempty,dive,role"`
	Locations      []string               `bson:"locations,omitempty" json:"locations,omitempty" validate:"omitempty,dive,required,max=120"`
	ActivityStatus ActivityStatus         `bson:"activityStatus,omitempty" json:"activityStatus,omitempty" validate:"omitempty,activity_status"`
	Logic          Logic                  `bson:"logic,omitempty" json:"logic,omitempty" validate:"omitempty,logic"`
	CustomFilters  map[string]interface{} `bson:"customFilters,omitempty" json:"customFilters,omitempty" validate:"omitempty,safe_filter"`
}

// IncludesEveryone reports whether the wildcard role is present.
func (c TargetingCriteria) IncludesEveryone() bool {
	for _, r := range c.Roles {
		if r == RoleEveryone {
			return true
		}
	}
	return false
}

// EffectiveLogic returns the configured logic, AND when unset.
func (c TargetingCriteria) EffectiveLogic() Logic {
	if c.Logic == LogicOr {
		return LogicOr
	}
	return LogicAnd
}

// DistinctRoles returns the roles without duplicates, preserving first occurrence.
func (c TargetingCriteria) DistinctRoles() []Role {
	seen := make(map[Role]bool, len(c.Roles))
	out := make([]Role, 0, len(c.Roles))
	for _, r := range c.Roles {
		if seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// Summary renders the criteria as a human-readable sentence, joining the
// clauses with the criteria's own logic.
func (c TargetingCriteria) Summary() string {
	var clauses []string
	if roles := c.DistinctRoles(); len(roles) > 0 {
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		clauses = append(clauses, "Roles: "+strings.Join(names, ", "))
	}
	if len(c.Locations) > 0 {
		clauses = append(clauses, "Locations: "+strings.Join(c.Locations, ", "))
	}
	if c.ActivityStatus != "" {
		clauses = append(clauses, "Activity: "+string(c.ActivityStatus))
	}
	if len(c.CustomFilters) > 0 {
		keys := make([]string, 0, len(c.CustomFilters))
		for k := range c.CustomFilters {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		clauses = append(clauses, "Custom filters: "+strings.Join(keys, ", "))
	}
	if len(clauses) == 0 {
		return "All users"
	}
	return strings.Join(clauses, " "+string(c.EffectiveLogic())+" ")
}
