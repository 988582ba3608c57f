package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DonationStatus is the payment state of a donation
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
	DonationFailed    DonationStatus = "failed"
	DonationRefunded  DonationStatus = "refunded"
)

// IsValid reports whether s is a known donation status.
func (s DonationStatus) IsValid() bool {
	switch s {
	case DonationPending, DonationCompleted, DonationFailed, DonationRefunded:
		return true
	}
	return false
}

// DonationStatusChange records one status change and who made it
type DonationStatusChange struct {
	From   DonationStatus `bson:"from" json:"from"`
	To     DonationStatus `bson:"to" json:"to"`
	At     time.Time      `bson:"at" json:"at"`
	Source string         `bson:"source" json:"source"`
}

// Donation is a gift processed through the payment gateway
type Donation struct {
	ID                primitive.ObjectID     `bson:"_id,omitempty" json:"id,omitempty"`
	DonorID           string                 `bson:"donorId,omitempty" json:"donorId,omitempty"`
	DonorName         string                 `bson:"donorName,omitempty" json:"donorName,omitempty"`
	Amount            float64                `bson:"amount" json:"amount"`
	Currency          string                 `bson:"currency" json:"currency"`
	Status            DonationStatus         `bson:"status" json:"status"`
	RazorpayOrderID   string                 `bson:"razorpayOrderId,omitempty" json:"razorpayOrderId,omitempty"`
	RazorpayPaymentID string                 `bson:"razorpayPaymentId,omitempty" json:"razorpayPaymentId,omitempty"`
	StatusHistory     []DonationStatusChange `bson:"statusHistory,omitempty" json:"statusHistory,omitempty"`
	CreatedAt         time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time              `bson:"updatedAt" json:"updatedAt"`
}

// PaymentRecheckResult is the outcome of re-verifying one donation
type PaymentRecheckResult struct {
	PaymentID        string         `json:"paymentId"`
	GatewayPaymentID string         `json:"gatewayPaymentId,omitempty"`
	PreviousStatus   DonationStatus `json:"previousStatus,omitempty"`
	CurrentStatus    DonationStatus `json:"currentStatus,omitempty"`
	Updated          bool           `json:"updated"`
	RecheckSuccess   bool           `json:"recheckSuccess"`
	ErrorMessage     string         `json:"errorMessage,omitempty"`
}

// RecheckSummary totals a recheck run
type RecheckSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// RecheckEventType tags the events of a recheck stream
type RecheckEventType string

const (
	RecheckEventProgress RecheckEventType = "progress"
	RecheckEventComplete RecheckEventType = "complete"
	RecheckEventError    RecheckEventType = "error"
)

// RecheckEvent is one line of the recheck stream
type RecheckEvent struct {
	Type      RecheckEventType       `json:"type"`
	Completed int                    `json:"completed,omitempty"`
	Total     int                    `json:"total,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Result    *PaymentRecheckResult  `json:"result,omitempty"`
	Results   []PaymentRecheckResult `json:"results,omitempty"`
	Summary   *RecheckSummary        `json:"summary,omitempty"`
	Error     string                 `json:"error,omitempty"`
}
