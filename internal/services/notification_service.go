package services

import (
	"context"
	"errors"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
	"github.com/lfgraphics/khadimemillat-sub007/internal/utils"
)

// Compile-time check to ensure NotificationLogServiceImpl implements NotificationLogService
var _ NotificationLogService = (*NotificationLogServiceImpl)(nil)

// NotificationLogServiceImpl reads the per-recipient delivery log written by workers
type NotificationLogServiceImpl struct {
	campaignRepo     repositories.CampaignRepository
	notificationRepo repositories.NotificationRepository
}

// NewNotificationLogService creates a new NotificationLogServiceImpl
func NewNotificationLogService(
	campaignRepo repositories.CampaignRepository,
	notificationRepo repositories.NotificationRepository,
) *NotificationLogServiceImpl {
	return &NotificationLogServiceImpl{
		campaignRepo:     campaignRepo,
		notificationRepo: notificationRepo,
	}
}

// ListByCampaign returns one page of delivery log entries, newest first
func (s *NotificationLogServiceImpl) ListByCampaign(ctx context.Context, campaignID string, page, limit int) ([]*models.Notification, error) {
	id, err := parseID(campaignID, "campaign")
	if err != nil {
		return nil, err
	}
	if _, err := s.campaignRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, errs.NotFound("Campaign")
		}
		return nil, errs.Internal("failed to load campaign", err)
	}

	page, limit = utils.NormalizePage(page, limit)
	notifications, err := s.notificationRepo.FindByCampaignID(ctx, id, page, limit)
	if err != nil {
		return nil, errs.Internal("failed to load delivery log", err)
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}
	return notifications, nil
}
