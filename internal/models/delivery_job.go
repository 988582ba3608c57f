package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeliveryJobStatus is the state of a queued campaign delivery
type DeliveryJobStatus string

const (
	JobQueued     DeliveryJobStatus = "queued"
	JobProcessing DeliveryJobStatus = "processing"
	JobParked     DeliveryJobStatus = "paused"
	JobDone       DeliveryJobStatus = "done"
	JobFailed     DeliveryJobStatus = "failed"
)

// DeliveryJob asks a worker to deliver a campaign once RunAt has passed
type DeliveryJob struct {
	ID         string             `bson:"_id" json:"id"`
	CampaignID primitive.ObjectID `bson:"campaignId" json:"campaignId"`
	Status     DeliveryJobStatus  `bson:"status" json:"status"`
	RunAt      time.Time          `bson:"runAt" json:"runAt"`
	Offset     int64              `bson:"offset" json:"offset"`
	Attempts   int                `bson:"attempts" json:"attempts"`
	WorkerID   string             `bson:"workerId,omitempty" json:"workerId,omitempty"`
	LastError  string             `bson:"lastError,omitempty" json:"lastError,omitempty"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time          `bson:"updatedAt" json:"updatedAt"`
}
