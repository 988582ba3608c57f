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

var _ repositories.DeliveryJobRepository = (*DeliveryJobRepository)(nil)

// DeliveryJobRepository is the Mongo-backed delivery queue
type DeliveryJobRepository struct {
	collection *mongo.Collection
}

// NewDeliveryJobRepository creates a new DeliveryJobRepository
func NewDeliveryJobRepository(db *mongo.Database) *DeliveryJobRepository {
	return &DeliveryJobRepository{collection: db.Collection(DeliveryJobsCollection)}
}

// Enqueue inserts a queued job
func (r *DeliveryJobRepository) Enqueue(ctx context.Context, job *models.DeliveryJob) error {
	now := time.Now()
	job.Status = models.JobQueued
	job.CreatedAt = now
	job.UpdatedAt = now
	_, err := r.collection.InsertOne(ctx, job)
	return translate(err)
}

// ClaimDue takes the oldest due job and marks it processing
func (r *DeliveryJobRepository) ClaimDue(ctx context.Context, now time.Time, workerID string) (*models.DeliveryJob, error) {
	filter := bson.M{"status": models.JobQueued, "runAt": bson.M{"$lte": now}}
	update := bson.M{
		"$set": bson.M{"status": models.JobProcessing, "workerId": workerID, "updatedAt": now},
		"$inc": bson.M{"attempts": 1},
	}
	opts := options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "runAt", Value: 1}}).
		SetReturnDocument(options.After)

	var job models.DeliveryJob
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&job); err != nil {
		return nil, translate(err)
	}
	return &job, nil
}

// SaveOffset records how many recipients have been handled
func (r *DeliveryJobRepository) SaveOffset(ctx context.Context, id string, offset int64) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"offset": offset, "updatedAt": time.Now()}},
	)
	return err
}

// Park stops a job at offset until its campaign resumes
func (r *DeliveryJobRepository) Park(ctx context.Context, id string, offset int64) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": models.JobParked, "offset": offset, "workerId": "", "updatedAt": time.Now()}},
	)
	return err
}

// Requeue makes the parked job of a campaign claimable again
func (r *DeliveryJobRepository) Requeue(ctx context.Context, campaignID primitive.ObjectID, runAt time.Time) (bool, error) {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"campaignId": campaignID, "status": models.JobParked},
		bson.M{"$set": bson.M{"status": models.JobQueued, "runAt": runAt, "updatedAt": time.Now()}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// Finish closes a job
func (r *DeliveryJobRepository) Finish(ctx context.Context, id string, status models.DeliveryJobStatus, lastError string) error {
	set := bson.M{"status": status, "updatedAt": time.Now()}
	if lastError != "" {
		set["lastError"] = lastError
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	return err
}

// CancelPending fails the queued or parked jobs of a campaign
func (r *DeliveryJobRepository) CancelPending(ctx context.Context, campaignID primitive.ObjectID, reason string) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"campaignId": campaignID, "status": bson.M{"$in": bson.A{models.JobQueued, models.JobParked}}},
		bson.M{"$set": bson.M{"status": models.JobFailed, "lastError": reason, "updatedAt": time.Now()}},
	)
	return err
}
