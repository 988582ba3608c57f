package mongodb

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
)

// Ensure staffAccountRepository implements repositories.StaffAccountRepository
var _ repositories.StaffAccountRepository = (*staffAccountRepository)(nil)

type staffAccountRepository struct {
	collection *mongo.Collection
}

// NewStaffAccountRepository creates a new repository for back-office accounts
func NewStaffAccountRepository(db *mongo.Database) repositories.StaffAccountRepository {
	return &staffAccountRepository{
		collection: db.Collection(StaffAccountsCollection),
	}
}

// Create inserts a new staff account. Emails are stored lower-cased.
func (r *staffAccountRepository) Create(ctx context.Context, account *models.StaffAccount) error {
	account.ID = primitive.NewObjectID()
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	_, err := r.collection.InsertOne(ctx, account)
	return translate(err)
}

// FindByEmail finds a staff account by its email address
func (r *staffAccountRepository) FindByEmail(ctx context.Context, email string) (*models.StaffAccount, error) {
	var account models.StaffAccount
	filter := bson.M{"email": strings.ToLower(strings.TrimSpace(email))}
	if err := r.collection.FindOne(ctx, filter).Decode(&account); err != nil {
		return nil, translate(err)
	}
	return &account, nil
}
