package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
)

// Compile-time check to ensure UserServiceImpl implements UserService
var _ UserService = (*UserServiceImpl)(nil)

// UserServiceImpl manages the channel opt-ins that decide reachability
type UserServiceImpl struct {
	userRepo repositories.UserRepository
	prefRepo repositories.PreferenceRepository
	now      func() time.Time
}

// NewUserService creates a new UserServiceImpl
func NewUserService(userRepo repositories.UserRepository, prefRepo repositories.PreferenceRepository) *UserServiceImpl {
	return &UserServiceImpl{
		userRepo: userRepo,
		prefRepo: prefRepo,
		now:      time.Now,
	}
}

// GetPreferences returns the stored choices of a user. Users who never chose
// get an empty record, which means every channel is enabled.
func (s *UserServiceImpl) GetPreferences(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	id, err := s.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// OptIn enables channels for a user
func (s *UserServiceImpl) OptIn(ctx context.Context, userID string, channels []models.Channel) (*models.NotificationPreference, error) {
	return s.setChannels(ctx, userID, channels, true)
}

// OptOut disables channels for a user
func (s *UserServiceImpl) OptOut(ctx context.Context, userID string, channels []models.Channel) (*models.NotificationPreference, error) {
	return s.setChannels(ctx, userID, channels, false)
}

func (s *UserServiceImpl) setChannels(ctx context.Context, userID string, channels []models.Channel, enabled bool) (*models.NotificationPreference, error) {
	if len(channels) == 0 {
		return nil, errs.Validation("At least one channel is required")
	}
	for _, ch := range channels {
		if !ch.IsValid() {
			return nil, errs.Validation("Invalid channel: " + string(ch))
		}
	}
	id, err := s.requireUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var prefs models.ChannelPreferences
	for _, ch := range channels {
		v := enabled
		switch ch {
		case models.ChannelWebPush:
			prefs.WebPush = &v
		case models.ChannelEmail:
			prefs.Email = &v
		case models.ChannelWhatsApp:
			prefs.WhatsApp = &v
		case models.ChannelSMS:
			prefs.SMS = &v
		}
	}

	pref := &models.NotificationPreference{UserID: id, Channels: prefs, UpdatedAt: s.now()}
	if err := s.prefRepo.Upsert(ctx, pref); err != nil {
		return nil, errs.Internal("failed to store preferences", err)
	}
	slog.Info("Channel preferences updated", "userId", userID, "channels", channels, "enabled", enabled)
	return s.load(ctx, id)
}

func (s *UserServiceImpl) requireUser(ctx context.Context, userID string) (primitive.ObjectID, error) {
	id, err := parseID(userID, "user")
	if err != nil {
		return primitive.NilObjectID, err
	}
	if _, err := s.userRepo.FindByID(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return primitive.NilObjectID, errs.NotFound("User")
		}
		return primitive.NilObjectID, errs.Internal("failed to load user", err)
	}
	return id, nil
}

func (s *UserServiceImpl) load(ctx context.Context, id primitive.ObjectID) (*models.NotificationPreference, error) {
	pref, err := s.prefRepo.FindByUserID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return &models.NotificationPreference{UserID: id}, nil
	}
	if err != nil {
		return nil, errs.Internal("failed to load preferences", err)
	}
	return pref, nil
}
