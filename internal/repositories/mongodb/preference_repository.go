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

var _ repositories.PreferenceRepository = (*PreferenceRepository)(nil)

// PreferenceRepository handles MongoDB operations for NotificationPreference
type PreferenceRepository struct {
	collection *mongo.Collection
}

// NewPreferenceRepository creates a new PreferenceRepository
func NewPreferenceRepository(db *mongo.Database) *PreferenceRepository {
	return &PreferenceRepository{collection: db.Collection(PreferencesCollection)}
}

// Upsert stores the explicit channel choices of one user. Unset channels are
// left untouched.
func (r *PreferenceRepository) Upsert(ctx context.Context, pref *models.NotificationPreference) error {
	set := bson.M{"updatedAt": time.Now()}
	for _, channel := range models.AllChannels {
		var v *bool
		switch channel {
		case models.ChannelWebPush:
			v = pref.Channels.WebPush
		case models.ChannelEmail:
			v = pref.Channels.Email
		case models.ChannelWhatsApp:
			v = pref.Channels.WhatsApp
		case models.ChannelSMS:
			v = pref.Channels.SMS
		}
		if v != nil {
			set["channels."+string(channel)] = *v
		}
	}

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"userId": pref.UserID},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	return translate(err)
}

// FindByUserID finds the preference record of a user
func (r *PreferenceRepository) FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.NotificationPreference, error) {
	var pref models.NotificationPreference
	if err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Decode(&pref); err != nil {
		return nil, translate(err)
	}
	return &pref, nil
}
