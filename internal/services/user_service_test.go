package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
)

var _ repositories.PreferenceRepository = (*fakePrefRepo)(nil)

// fakePrefRepo merges set channels the way the Mongo upsert does.
type fakePrefRepo struct {
	prefs map[primitive.ObjectID]models.ChannelPreferences
}

func (r *fakePrefRepo) Upsert(ctx context.Context, pref *models.NotificationPreference) error {
	current := r.prefs[pref.UserID]
	if pref.Channels.WebPush != nil {
		current.WebPush = pref.Channels.WebPush
	}
	if pref.Channels.Email != nil {
		current.Email = pref.Channels.Email
	}
	if pref.Channels.WhatsApp != nil {
		current.WhatsApp = pref.Channels.WhatsApp
	}
	if pref.Channels.SMS != nil {
		current.SMS = pref.Channels.SMS
	}
	r.prefs[pref.UserID] = current
	return nil
}

func (r *fakePrefRepo) FindByUserID(ctx context.Context, userID primitive.ObjectID) (*models.NotificationPreference, error) {
	channels, ok := r.prefs[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &models.NotificationPreference{UserID: userID, Channels: channels}, nil
}

func newUserFixture() (*UserServiceImpl, *models.AudienceMember) {
	member := &models.AudienceMember{ID: primitive.NewObjectID(), Name: "Zainab", Email: "zainab@example.org", Role: models.RoleUser}
	users := &fakeUserRepo{members: []*models.AudienceMember{member}}
	svc := NewUserService(users, &fakePrefRepo{prefs: map[primitive.ObjectID]models.ChannelPreferences{}})
	svc.now = fixedClock
	return svc, member
}

func TestGetPreferencesDefaultsToEnabled(t *testing.T) {
	svc, member := newUserFixture()

	pref, err := svc.GetPreferences(context.Background(), member.ID.Hex())
	require.NoError(t, err)
	for _, ch := range models.AllChannels {
		assert.True(t, pref.Channels.Enabled(ch), ch)
	}
}

func TestOptOutThenOptIn(t *testing.T) {
	svc, member := newUserFixture()
	ctx := context.Background()

	pref, err := svc.OptOut(ctx, member.ID.Hex(), []models.Channel{models.ChannelEmail, models.ChannelSMS})
	require.NoError(t, err)
	assert.False(t, pref.Channels.Enabled(models.ChannelEmail))
	assert.False(t, pref.Channels.Enabled(models.ChannelSMS))
	assert.True(t, pref.Channels.Enabled(models.ChannelWhatsApp))

	pref, err = svc.OptIn(ctx, member.ID.Hex(), []models.Channel{models.ChannelEmail})
	require.NoError(t, err)
	assert.True(t, pref.Channels.Enabled(models.ChannelEmail))
	assert.False(t, pref.Channels.Enabled(models.ChannelSMS))

	opted := models.AudienceMember{Email: member.Email, Preferences: &pref.Channels}
	assert.True(t, opted.Reachable(models.ChannelEmail, true))
}

func TestPreferenceErrors(t *testing.T) {
	svc, member := newUserFixture()
	ctx := context.Background()

	_, err := svc.OptOut(ctx, member.ID.Hex(), nil)
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = svc.OptOut(ctx, member.ID.Hex(), []models.Channel{"pigeon"})
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = svc.GetPreferences(ctx, "bad")
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = svc.GetPreferences(ctx, primitive.NewObjectID().Hex())
	assert.True(t, errs.Is(err, errs.KindNotFound))
}
