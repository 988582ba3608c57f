package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
)

func TestNotificationLogListByCampaign(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	logs := &fakeNotificationRepo{}
	svc := NewNotificationLogService(campaigns, logs)

	stored := campaigns.put(draftCampaign([]models.Channel{models.ChannelEmail}, nil))
	other := primitive.NewObjectID()
	require.NoError(t, logs.InsertMany(context.Background(), []*models.Notification{
		{CampaignID: stored.ID, Channel: models.ChannelEmail, Status: "SENT", SentAt: fixedNow},
		{CampaignID: other, Channel: models.ChannelSMS, Status: "FAILED", SentAt: fixedNow},
	}))

	got, err := svc.ListByCampaign(context.Background(), stored.ID.Hex(), 0, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SENT", got[0].Status)
}

func TestNotificationLogEmptyCampaignReturnsEmptySlice(t *testing.T) {
	campaigns := newFakeCampaignRepo()
	svc := NewNotificationLogService(campaigns, &fakeNotificationRepo{})
	stored := campaigns.put(draftCampaign([]models.Channel{models.ChannelEmail}, nil))

	got, err := svc.ListByCampaign(context.Background(), stored.ID.Hex(), 1, 20)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNotificationLogErrors(t *testing.T) {
	svc := NewNotificationLogService(newFakeCampaignRepo(), &fakeNotificationRepo{})

	_, err := svc.ListByCampaign(context.Background(), "not-an-id", 1, 10)
	assert.True(t, errs.Is(err, errs.KindValidation))

	_, err = svc.ListByCampaign(context.Background(), primitive.NewObjectID().Hex(), 1, 10)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}
