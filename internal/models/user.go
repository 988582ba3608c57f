package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is a platform role. RoleEveryone only appears in targeting criteria.
type Role string

const (
	RoleEveryone       Role = "everyone"
	RoleAdmin          Role = "admin"
	RoleModerator      Role = "moderator"
	RoleUser           Role = "user"
	RoleScrapper       Role = "scrapper"
	RoleFieldExecutive Role = "field_executive"
	RoleAccountant     Role = "accountant"
)

// KnownRoles lists every role accepted in targeting criteria.
var KnownRoles = []Role{
	RoleEveryone,
	RoleAdmin,
	RoleModerator,
	RoleUser,
	RoleScrapper,
	RoleFieldExecutive,
	RoleAccountant,
}

// IsValid reports whether r is one of KnownRoles.
func (r Role) IsValid() bool {
	for _, known := range KnownRoles {
		if r == known {
			return true
		}
	}
	return false
}

// Address holds the location fields used for audience targeting
type Address struct {
	Line1   string `bson:"line1,omitempty" json:"line1,omitempty"`
	City    string `bson:"city,omitempty" json:"city,omitempty"`
	State   string `bson:"state,omitempty" json:"state,omitempty"`
	Pincode string `bson:"pincode,omitempty" json:"pincode,omitempty"`
}

// User represents a registered member of the platform (donor, volunteer, staff)
type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email,omitempty" json:"email,omitempty"`
	Phone     string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Role      Role               `bson:"role" json:"role"`
	Address   Address            `bson:"address,omitempty" json:"address,omitempty"`
	LastLogin *time.Time         `bson:"lastLogin,omitempty" json:"lastLogin,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AudienceMember is the projection of a user streamed during audience evaluation,
// joined with the user's notification preferences.
type AudienceMember struct {
	ID          primitive.ObjectID  `bson:"_id"`
	Name        string              `bson:"name"`
	Email       string              `bson:"email"`
	Phone       string              `bson:"phone"`
	Role        Role                `bson:"role"`
	Address     Address             `bson:"address"`
	Preferences *ChannelPreferences `bson:"preferences,omitempty"`
}

// HasContactFor reports whether the member has the contact method the channel needs.
func (m AudienceMember) HasContactFor(channel Channel) bool {
	switch channel {
	case ChannelEmail:
		return m.Email != ""
	case ChannelSMS, ChannelWhatsApp:
		return m.Phone != ""
	case ChannelWebPush:
		return true
	default:
		return false
	}
}

// Reachable combines contact presence with the opt-out preference.
func (m AudienceMember) Reachable(channel Channel, excludeOptedOut bool) bool {
	if !m.HasContactFor(channel) {
		return false
	}
	if excludeOptedOut && m.Preferences != nil && !m.Preferences.Enabled(channel) {
		return false
	}
	return true
}

// RedactedUser is a sample row safe to show in admin previews
type RedactedUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     Role   `json:"role"`
	Location string `json:"location,omitempty"`
}
