package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification is the delivery log entry for one recipient on one channel
type Notification struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	CampaignID primitive.ObjectID `bson:"campaignId" json:"campaignId"`
	UserID     primitive.ObjectID `bson:"userId" json:"userId"`
	Channel    Channel            `bson:"channel" json:"channel"`
	Status     string             `bson:"status" json:"status"` // SENT, FAILED
	MessageID  string             `bson:"messageId,omitempty" json:"messageId,omitempty"`
	Error      string             `bson:"error,omitempty" json:"error,omitempty"`
	SentAt     time.Time          `bson:"sentAt" json:"sentAt"`
}
