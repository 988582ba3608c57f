package mongodb

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
)

// Compile-time check to ensure UserRepository implements the interface
var _ repositories.UserRepository = (*UserRepository)(nil)

// UserRepository handles MongoDB operations for User
type UserRepository struct {
	collection *mongo.Collection
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection(UsersCollection),
	}
}

// Create inserts a new user
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	_, err := r.collection.InsertOne(ctx, user)
	return translate(err)
}

// FindByID finds a user by ID
func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// FindByEmailOrPhone finds a user by either contact field
func (r *UserRepository) FindByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error) {
	var clauses bson.A
	if email != "" {
		clauses = append(clauses, bson.M{"email": email})
	}
	if phone != "" {
		clauses = append(clauses, bson.M{"phone": phone})
	}
	if len(clauses) == 0 {
		return nil, repositories.ErrNotFound
	}

	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"$or": clauses}).Decode(&user); err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// Update updates an existing user
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now()
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": user.ID}, bson.M{"$set": user})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

// CountAudience counts users matching the audience filter
func (r *UserRepository) CountAudience(ctx context.Context, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	return r.collection.CountDocuments(ctx, filter)
}

// StreamAudience walks the matching users in _id order joined with their preferences
func (r *UserRepository) StreamAudience(ctx context.Context, query repositories.AudienceQuery, fn func(*models.AudienceMember) error) error {
	filter := query.Filter
	if filter == nil {
		filter = bson.M{}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "_id", Value: 1}}}},
	}
	if query.Skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: query.Skip}})
	}
	if query.Limit > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$limit", Value: query.Limit}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         PreferencesCollection,
			"localField":   "_id",
			"foreignField": "userId",
			"as":           "pref",
		}}},
		bson.D{{Key: "$project", Value: bson.M{
			"name":        1,
			"email":       1,
			"phone":       1,
			"role":        1,
			"address":     1,
			"preferences": bson.M{"$arrayElemAt": bson.A{"$pref.channels", 0}},
		}}},
	)

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var member models.AudienceMember
		if err := cursor.Decode(&member); err != nil {
			return err
		}
		if err := fn(&member); err != nil {
			return err
		}
	}
	return cursor.Err()
}
