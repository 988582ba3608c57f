package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
)

var _ repositories.DonationRepository = (*DonationRepository)(nil)

// DonationRepository handles MongoDB operations for Donation
type DonationRepository struct {
	collection *mongo.Collection
}

// NewDonationRepository creates a new DonationRepository
func NewDonationRepository(db *mongo.Database) *DonationRepository {
	return &DonationRepository{collection: db.Collection(DonationsCollection)}
}

// Create inserts a new donation
func (r *DonationRepository) Create(ctx context.Context, donation *models.Donation) error {
	if donation.ID.IsZero() {
		donation.ID = primitive.NewObjectID()
	}
	donation.CreatedAt = time.Now()
	donation.UpdatedAt = donation.CreatedAt
	_, err := r.collection.InsertOne(ctx, donation)
	return translate(err)
}

// FindByID finds a donation by ID
func (r *DonationRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	var donation models.Donation
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&donation); err != nil {
		return nil, translate(err)
	}
	return &donation, nil
}

// FindByStatus lists the oldest donations in a status
func (r *DonationRepository) FindByStatus(ctx context.Context, status models.DonationStatus, limit int) ([]*models.Donation, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"status": status}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var donations []*models.Donation
	if err := cursor.All(ctx, &donations); err != nil {
		return nil, err
	}
	return donations, nil
}

// UpdateStatus moves a donation between statuses and records the change
func (r *DonationRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, change models.DonationStatusChange, paymentID string) error {
	set := bson.M{"status": change.To, "updatedAt": change.At}
	if paymentID != "" {
		set["razorpayPaymentId"] = paymentID
	}
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "status": change.From},
		bson.M{"$set": set, "$push": bson.M{"statusHistory": change}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
		if err != nil {
			return err
		}
		if n == 0 {
			return repositories.ErrNotFound
		}
		return repositories.ErrStateChanged
	}
	return nil
}
