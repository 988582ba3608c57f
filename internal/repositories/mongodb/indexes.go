package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes every collection relies on. It is safe to
// call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		UsersCollection: {
			{Keys: bson.D{{Key: "role", Value: 1}}},
			{Keys: bson.D{{Key: "address.city", Value: 1}}},
			{Keys: bson.D{{Key: "address.state", Value: 1}}},
			{Keys: bson.D{{Key: "lastLogin", Value: 1}}},
			{Keys: bson.D{{Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetSparse(true)},
			{Keys: bson.D{{Key: "phone", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		PreferencesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		SegmentsCollection: {
			{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "name", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "isShared", Value: 1}}},
			{Keys: bson.D{{Key: "lastUpdated", Value: 1}}},
		},
		CampaignsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		DonationsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "razorpayPaymentId", Value: 1}}, Options: options.Index().SetSparse(true)},
		},
		DeliveryJobsCollection: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "runAt", Value: 1}}},
			{Keys: bson.D{{Key: "campaignId", Value: 1}}},
		},
		NotificationsCollection: {
			{Keys: bson.D{{Key: "campaignId", Value: 1}, {Key: "sentAt", Value: -1}}},
		},
		StaffAccountsCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}

	for collection, models := range specs {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("creating indexes on %s: %w", collection, err)
		}
	}
	return nil
}
