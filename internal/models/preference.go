package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChannelPreferences records explicit per-channel choices. A nil entry means
// the user never chose and the channel counts as enabled.
type ChannelPreferences struct {
	WebPush  *bool `bson:"web_push,omitempty" json:"web_push,omitempty"`
	Email    *bool `bson:"email,omitempty" json:"email,omitempty"`
	WhatsApp *bool `bson:"whatsapp,omitempty" json:"whatsapp,omitempty"`
	SMS      *bool `bson:"sms,omitempty" json:"sms,omitempty"`
}

// Enabled reports whether the channel is enabled, defaulting to true when unset.
func (p ChannelPreferences) Enabled(channel Channel) bool {
	var v *bool
	switch channel {
	case ChannelWebPush:
		v = p.WebPush
	case ChannelEmail:
		v = p.Email
	case ChannelWhatsApp:
		v = p.WhatsApp
	case ChannelSMS:
		v = p.SMS
	}
	return v == nil || *v
}

// NotificationPreference is the stored preference record of one user
type NotificationPreference struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	UserID    primitive.ObjectID `bson:"userId" json:"userId"`
	Channels  ChannelPreferences `bson:"channels" json:"channels"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}
