package mongodb

import (
	"errors"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
)

// Collection names
const (
	UsersCollection         = "users"
	PreferencesCollection   = "notification_preferences"
	SegmentsCollection      = "audience_segments"
	CampaignsCollection     = "notification_campaigns"
	DonationsCollection     = "donations"
	DeliveryJobsCollection  = "delivery_jobs"
	NotificationsCollection = "notifications"
	StaffAccountsCollection = "staff_accounts"
)

// translate maps driver errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repositories.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return repositories.ErrDuplicate
	default:
		return err
	}
}
