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

var _ repositories.CampaignRepository = (*CampaignRepository)(nil)

// recomputeInProgress is the pipeline stage that keeps
// sent + failed + inProgress == total, clamping inProgress at zero.
var recomputeInProgress = bson.D{{Key: "$set", Value: bson.M{
	"progress.inProgress": bson.M{"$max": bson.A{
		0,
		bson.M{"$subtract": bson.A{
			"$progress.total",
			bson.M{"$add": bson.A{"$progress.sent", "$progress.failed"}},
		}},
	}},
}}}

// CampaignRepository implements the repositories.CampaignRepository interface
type CampaignRepository struct {
	collection *mongo.Collection
}

// NewCampaignRepository creates a new CampaignRepository
func NewCampaignRepository(db *mongo.Database) *CampaignRepository {
	return &CampaignRepository{
		collection: db.Collection(CampaignsCollection),
	}
}

// Create creates a new campaign
func (r *CampaignRepository) Create(ctx context.Context, campaign *models.NotificationCampaign) error {
	if campaign.ID.IsZero() {
		campaign.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, campaign)
	return translate(err)
}

// FindByID finds a campaign by ID
func (r *CampaignRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.NotificationCampaign, error) {
	var campaign models.NotificationCampaign
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&campaign); err != nil {
		return nil, translate(err)
	}
	return &campaign, nil
}

// Find lists campaigns newest first, optionally narrowed by status
func (r *CampaignRepository) Find(ctx context.Context, filter models.CampaignFilter) ([]*models.NotificationCampaign, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit)).
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var campaigns []*models.NotificationCampaign
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, 0, err
	}
	if campaigns == nil {
		campaigns = []*models.NotificationCampaign{}
	}
	return campaigns, total, nil
}

// UpdateDraft replaces the editable fields of a draft campaign
func (r *CampaignRepository) UpdateDraft(ctx context.Context, campaign *models.NotificationCampaign) error {
	campaign.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"name":        campaign.Name,
		"description": campaign.Description,
		"channels":    campaign.Channels,
		"content":     campaign.Content,
		"targeting":   campaign.Targeting,
		"segmentId":   campaign.SegmentID,
		"scheduling":  campaign.Scheduling,
		"updatedAt":   campaign.UpdatedAt,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": campaign.ID, "status": models.CampaignDraft}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return r.missOrStale(ctx, campaign.ID)
	}
	return nil
}

// DeleteIn removes the campaign while its status is one of statuses
func (r *CampaignRepository) DeleteIn(ctx context.Context, id primitive.ObjectID, statuses []models.CampaignStatus) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id, "status": bson.M{"$in": statuses}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return r.missOrStale(ctx, id)
	}
	return nil
}

// TransitionStatus applies a compare-and-set status change
func (r *CampaignRepository) TransitionStatus(ctx context.Context, id primitive.ObjectID, change repositories.StatusChange) (*models.NotificationCampaign, error) {
	now := time.Now()
	set := bson.M{"status": change.To, "updatedAt": now}
	if change.Progress != nil {
		set["progress"] = change.Progress
	}
	if change.AudienceEstimated != nil {
		set["metadata.audienceEstimated"] = *change.AudienceEstimated
	}
	if change.StartedAt != nil {
		set["startedAt"] = *change.StartedAt
	}
	if change.CompletedAt != nil {
		set["completedAt"] = *change.CompletedAt
	}
	if change.CancelReason != "" {
		set["metadata.cancelReason"] = change.CancelReason
	}
	if change.FailureReason != "" {
		set["metadata.failureReason"] = change.FailureReason
	}

	update := bson.M{"$set": set}
	push := bson.M{}
	if change.PauseEntry != nil {
		push["metadata.pauseHistory"] = change.PauseEntry
	}
	if change.ResumeEntry != nil {
		push["metadata.resumeHistory"] = change.ResumeEntry
	}
	if len(push) > 0 {
		update["$push"] = push
	}

	filter := bson.M{"_id": id, "status": bson.M{"$in": change.From}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var campaign models.NotificationCampaign
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&campaign)
	if err == mongo.ErrNoDocuments {
		return nil, r.missOrStale(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

// SetProgress stores absolute counters and recomputes inProgress in one write
func (r *CampaignRepository) SetProgress(ctx context.Context, id primitive.ObjectID, sent, failed int64, total *int64) (*models.NotificationCampaign, error) {
	set := bson.M{
		"progress.sent":   sent,
		"progress.failed": failed,
		"updatedAt":       time.Now(),
	}
	if total != nil {
		set["progress.total"] = *total
	}
	return r.applyPipeline(ctx, id, mongo.Pipeline{{{Key: "$set", Value: set}}, recomputeInProgress})
}

// IncrementProgress adds to the counters and recomputes inProgress in one write
func (r *CampaignRepository) IncrementProgress(ctx context.Context, id primitive.ObjectID, sentDelta, failedDelta int64) (*models.NotificationCampaign, error) {
	set := bson.M{
		"progress.sent":   bson.M{"$add": bson.A{"$progress.sent", sentDelta}},
		"progress.failed": bson.M{"$add": bson.A{"$progress.failed", failedDelta}},
		"updatedAt":       time.Now(),
	}
	return r.applyPipeline(ctx, id, mongo.Pipeline{{{Key: "$set", Value: set}}, recomputeInProgress})
}

// ReconcileTotal replaces the estimated total with a counted one
func (r *CampaignRepository) ReconcileTotal(ctx context.Context, id primitive.ObjectID, total int64) (*models.NotificationCampaign, error) {
	set := bson.M{
		"progress.total":             total,
		"metadata.audienceEstimated": false,
		"updatedAt":                  time.Now(),
	}
	return r.applyPipeline(ctx, id, mongo.Pipeline{{{Key: "$set", Value: set}}, recomputeInProgress})
}

func (r *CampaignRepository) applyPipeline(ctx context.Context, id primitive.ObjectID, pipeline mongo.Pipeline) (*models.NotificationCampaign, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var campaign models.NotificationCampaign
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, pipeline, opts).Decode(&campaign); err != nil {
		return nil, translate(err)
	}
	return &campaign, nil
}

// missOrStale distinguishes a missing campaign from one whose status moved.
func (r *CampaignRepository) missOrStale(ctx context.Context, id primitive.ObjectID) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return repositories.ErrNotFound
	}
	return repositories.ErrStateChanged
}
