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

var _ repositories.SegmentRepository = (*SegmentRepository)(nil)

// SegmentRepository handles MongoDB operations for AudienceSegment
type SegmentRepository struct {
	collection *mongo.Collection
}

// NewSegmentRepository creates a new SegmentRepository
func NewSegmentRepository(db *mongo.Database) *SegmentRepository {
	return &SegmentRepository{collection: db.Collection(SegmentsCollection)}
}

// Create inserts a new segment
func (r *SegmentRepository) Create(ctx context.Context, segment *models.AudienceSegment) error {
	if segment.ID.IsZero() {
		segment.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, segment)
	return translate(err)
}

// FindByID finds a segment by ID
func (r *SegmentRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.AudienceSegment, error) {
	var segment models.AudienceSegment
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&segment); err != nil {
		return nil, translate(err)
	}
	return &segment, nil
}

// ExistsByName reports whether the creator already owns a segment with this name
func (r *SegmentRepository) ExistsByName(ctx context.Context, createdBy, name string, excludeID primitive.ObjectID) (bool, error) {
	filter := bson.M{"createdBy": createdBy, "name": name}
	if !excludeID.IsZero() {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Update replaces the mutable fields of a segment
func (r *SegmentRepository) Update(ctx context.Context, segment *models.AudienceSegment) error {
	segment.UpdatedAt = time.Now()
	update := bson.M{"$set": bson.M{
		"name":        segment.Name,
		"description": segment.Description,
		"criteria":    segment.Criteria,
		"isShared":    segment.IsShared,
		"updatedAt":   segment.UpdatedAt,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": segment.ID}, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// UpdateCount stores a recalculated population count
func (r *SegmentRepository) UpdateCount(ctx context.Context, id primitive.ObjectID, count int64, at time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"userCount": count, "lastUpdated": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Delete deletes a segment by ID
func (r *SegmentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// Find lists segments matching filter, newest first, with the total match count
func (r *SegmentRepository) Find(ctx context.Context, filter bson.M, page, limit int) ([]*models.AudienceSegment, int64, error) {
	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit)).
		SetSort(bson.D{{Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var segments []*models.AudienceSegment
	if err := cursor.All(ctx, &segments); err != nil {
		return nil, 0, err
	}
	if segments == nil {
		segments = []*models.AudienceSegment{}
	}
	return segments, total, nil
}

// FindStale lists segments whose count was last refreshed before the cutoff
func (r *SegmentRepository) FindStale(ctx context.Context, updatedBefore time.Time) ([]*models.AudienceSegment, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"lastUpdated": bson.M{"$lt": updatedBefore}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var segments []*models.AudienceSegment
	if err := cursor.All(ctx, &segments); err != nil {
		return nil, err
	}
	return segments, nil
}
