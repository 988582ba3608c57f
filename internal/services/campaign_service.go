package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/metrics"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
	"github.com/lfgraphics/khadimemillat-sub007/internal/utils"
)

// deletableStatuses are the states a campaign may be deleted from
var deletableStatuses = []models.CampaignStatus{
	models.CampaignDraft,
	models.CampaignCompleted,
	models.CampaignFailed,
	models.CampaignCancelled,
}

// Compile-time checks
var (
	_ CampaignService = (*CampaignServiceImpl)(nil)
	_ DeliveryTracker = (*CampaignServiceImpl)(nil)
)

// CampaignServiceImpl handles the campaign lifecycle
type CampaignServiceImpl struct {
	campaignRepo repositories.CampaignRepository
	segmentRepo  repositories.SegmentRepository
	jobRepo      repositories.DeliveryJobRepository
	estimator    AudienceEstimator
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewCampaignService creates a new CampaignServiceImpl
func NewCampaignService(
	campaignRepo repositories.CampaignRepository,
	segmentRepo repositories.SegmentRepository,
	jobRepo repositories.DeliveryJobRepository,
	estimator AudienceEstimator,
	m *metrics.Metrics,
) *CampaignServiceImpl {
	return &CampaignServiceImpl{
		campaignRepo: campaignRepo,
		segmentRepo:  segmentRepo,
		jobRepo:      jobRepo,
		estimator:    estimator,
		metrics:      m,
		now:          time.Now,
	}
}

// Create stores a new draft campaign. A segmentId copies the segment's
// criteria into the campaign at creation time.
func (s *CampaignServiceImpl) Create(ctx context.Context, caller models.Principal, req models.CreateCampaignRequest) (*models.NotificationCampaign, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if req.Scheduling.Type == "" {
		req.Scheduling.Type = models.ScheduleImmediate
	}
	if err := validateScheduling(req.Scheduling); err != nil {
		return nil, err
	}

	now := s.now()
	campaign := &models.NotificationCampaign{
		ID:          primitive.NewObjectID(),
		Name:        req.Name,
		Description: req.Description,
		Status:      models.CampaignDraft,
		Channels:    req.Channels,
		Content:     req.Content,
		Targeting:   req.Targeting,
		Scheduling:  req.Scheduling,
		CreatedBy:   caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if campaign.Content == nil {
		campaign.Content = map[models.Channel]models.ChannelContent{}
	}

	if req.SegmentID != "" {
		segmentID, err := parseID(req.SegmentID, "segment")
		if err != nil {
			return nil, err
		}
		segment, err := s.segmentRepo.FindByID(ctx, segmentID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, errs.NotFound("Segment")
			}
			return nil, errs.Internal("loading segment", err)
		}
		if !segment.VisibleTo(caller) {
			return nil, errs.Forbidden("You do not have access to this segment")
		}
		campaign.Targeting = segment.Criteria
		campaign.SegmentID = &segment.ID
	}

	if err := s.campaignRepo.Create(ctx, campaign); err != nil {
		return nil, errs.Internal("creating campaign", err)
	}
	slog.Info("Campaign created", "campaignId", campaign.ID.Hex(), "createdBy", caller.ID)
	return campaign, nil
}

// Get returns a campaign by id
func (s *CampaignServiceImpl) Get(ctx context.Context, id string) (*models.NotificationCampaign, error) {
	oid, err := parseID(id, "campaign")
	if err != nil {
		return nil, err
	}
	return s.Load(ctx, oid)
}

// List returns one page of campaigns, newest first
func (s *CampaignServiceImpl) List(ctx context.Context, filter models.CampaignFilter) ([]*models.NotificationCampaign, models.Pagination, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, models.Pagination{}, errs.Validation("Invalid campaign status: " + string(filter.Status))
	}
	filter.Page, filter.Limit = utils.NormalizePage(filter.Page, filter.Limit)

	campaigns, total, err := s.campaignRepo.Find(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, errs.Internal("listing campaigns", err)
	}
	return campaigns, models.Pagination{
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: utils.TotalPages(total, filter.Limit),
	}, nil
}

// Update edits a draft campaign
func (s *CampaignServiceImpl) Update(ctx context.Context, id string, req models.UpdateCampaignRequest) (*models.NotificationCampaign, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignDraft {
		return nil, errs.Validation("Only draft campaigns can be edited")
	}

	if req.Name != nil {
		campaign.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		campaign.Description = *req.Description
	}
	if req.Channels != nil {
		campaign.Channels = req.Channels
	}
	if req.Content != nil {
		campaign.Content = req.Content
	}
	if req.Targeting != nil {
		campaign.Targeting = *req.Targeting
		// hand-edited criteria no longer mirror the segment
		campaign.SegmentID = nil
	}
	if req.Scheduling != nil {
		if req.Scheduling.Type == "" {
			req.Scheduling.Type = models.ScheduleImmediate
		}
		if err := validateScheduling(*req.Scheduling); err != nil {
			return nil, err
		}
		campaign.Scheduling = *req.Scheduling
	}

	if err := s.campaignRepo.UpdateDraft(ctx, campaign); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, errs.NotFound("Campaign")
		case errors.Is(err, repositories.ErrStateChanged):
			return nil, errs.Validation("Only draft campaigns can be edited")
		}
		return nil, errs.Internal("updating campaign", err)
	}
	return campaign, nil
}

// Delete removes a draft or finished campaign
func (s *CampaignServiceImpl) Delete(ctx context.Context, id string) error {
	oid, err := parseID(id, "campaign")
	if err != nil {
		return err
	}
	if err := s.campaignRepo.DeleteIn(ctx, oid, deletableStatuses); err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return errs.NotFound("Campaign")
		case errors.Is(err, repositories.ErrStateChanged):
			return errs.Validation("Only draft or finished campaigns can be deleted")
		}
		return errs.Internal("deleting campaign", err)
	}
	slog.Info("Campaign deleted", "campaignId", id)
	return nil
}

// Start validates a draft campaign, sets its estimated audience and hands it
// to the delivery queue. With force, validation problems become warnings.
func (s *CampaignServiceImpl) Start(ctx context.Context, id string, force bool) (*models.StartResult, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	deferred := campaign.Scheduling.Type != models.ScheduleImmediate &&
		campaign.Scheduling.ScheduledFor != nil &&
		campaign.Scheduling.ScheduledFor.After(now)
	target := models.CampaignRunning
	if deferred {
		target = models.CampaignScheduled
	}
	if campaign.Status != models.CampaignDraft || !campaign.CanTransitionTo(target) {
		return nil, errs.InvalidTransition(string(campaign.Status), string(target))
	}

	problems := StartProblems(campaign, now)
	if len(problems) > 0 && !force {
		return nil, errs.Validation("Campaign validation failed", problems...)
	}

	// heuristic estimate; the worker replaces it with the counted population
	estimate := s.estimator.Estimate(campaign.Targeting)
	progress := models.CampaignProgress{Total: estimate}
	if target == models.CampaignRunning {
		progress.InProgress = estimate
	}
	runAt := now
	if deferred {
		runAt = *campaign.Scheduling.ScheduledFor
	}

	job := &models.DeliveryJob{
		ID:         uuid.NewString(),
		CampaignID: campaign.ID,
		RunAt:      runAt,
	}
	if err := s.jobRepo.Enqueue(ctx, job); err != nil {
		return nil, errs.Internal("enqueueing delivery job", err)
	}

	estimated := true
	change := repositories.StatusChange{
		To:                target,
		Progress:          &progress,
		AudienceEstimated: &estimated,
	}
	if target == models.CampaignRunning {
		change.StartedAt = &now
	}
	updated, err := s.transition(ctx, campaign, change)
	if err != nil {
		if cerr := s.jobRepo.CancelPending(ctx, campaign.ID, "campaign start failed"); cerr != nil {
			slog.Error("Failed to cancel orphaned delivery job", "campaignId", id, "jobId", job.ID, "error", cerr)
		}
		return nil, err
	}

	message := "Campaign started successfully"
	if deferred {
		message = fmt.Sprintf("Campaign scheduled for %s", runAt.UTC().Format(time.RFC3339))
	}
	slog.Info("Campaign start accepted", "campaignId", id, "status", target, "estimatedAudience", estimate, "warnings", len(problems))

	result := &models.StartResult{
		Campaign:          updated,
		EstimatedAudience: estimate,
		Message:           message,
	}
	if len(problems) > 0 {
		result.ValidationWarnings = problems
	}
	return result, nil
}

// StartProblems lists what would stop campaign from starting at now.
func StartProblems(campaign *models.NotificationCampaign, now time.Time) []string {
	var problems []string
	for _, channel := range campaign.Channels {
		if strings.TrimSpace(campaign.Content[channel].Message) == "" {
			problems = append(problems, "Missing content for channel: "+string(channel))
		}
	}
	if len(campaign.Targeting.Roles) == 0 {
		problems = append(problems, "Target roles are required")
	}
	if campaign.Scheduling.Type == models.ScheduleScheduled {
		switch {
		case campaign.Scheduling.ScheduledFor == nil:
			problems = append(problems, "Scheduled time is required for scheduled campaigns")
		case !campaign.Scheduling.ScheduledFor.After(now):
			problems = append(problems, "Scheduled time must be in the future")
		}
	}
	return problems
}

// Pause stops a running campaign
func (s *CampaignServiceImpl) Pause(ctx context.Context, id string, reason string) (*models.NotificationCampaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, campaign, repositories.StatusChange{
		To:         models.CampaignPaused,
		PauseEntry: &models.HistoryEntry{Timestamp: s.now(), Reason: reason},
	})
}

// Resume restarts a paused campaign and re-queues its parked delivery job
func (s *CampaignServiceImpl) Resume(ctx context.Context, id string, reason string) (*models.NotificationCampaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	updated, err := s.transition(ctx, campaign, repositories.StatusChange{
		To:          models.CampaignRunning,
		ResumeEntry: &models.HistoryEntry{Timestamp: now, Reason: reason},
	})
	if err != nil {
		return nil, err
	}

	requeued, err := s.jobRepo.Requeue(ctx, campaign.ID, now)
	if err != nil {
		slog.Error("Failed to requeue delivery job", "campaignId", id, "error", err)
	} else if !requeued {
		slog.Debug("No parked delivery job to requeue", "campaignId", id)
	}
	return updated, nil
}

// Cancel stops a scheduled campaign before it runs
func (s *CampaignServiceImpl) Cancel(ctx context.Context, id string, reason string) (*models.NotificationCampaign, error) {
	campaign, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if reason == "" {
		reason = "Cancelled by administrator"
	}
	updated, err := s.transition(ctx, campaign, repositories.StatusChange{
		To:           models.CampaignCancelled,
		CompletedAt:  &now,
		CancelReason: reason,
	})
	if err != nil {
		return nil, err
	}
	if err := s.jobRepo.CancelPending(ctx, campaign.ID, reason); err != nil {
		slog.Error("Failed to cancel delivery jobs", "campaignId", id, "error", err)
	}
	return updated, nil
}

// UpdateProgress stores absolute counters reported by a worker. A requested
// status is applied only when the state machine allows it; otherwise it is
// ignored and the echoed status shows the rejection.
func (s *CampaignServiceImpl) UpdateProgress(ctx context.Context, id string, update models.ProgressUpdate) (*models.NotificationCampaign, error) {
	if update.Sent < 0 || update.Failed < 0 {
		return nil, errs.Validation("Progress counters cannot be negative")
	}
	if update.Total != nil && *update.Total < 0 {
		return nil, errs.Validation("Progress total cannot be negative")
	}
	oid, err := parseID(id, "campaign")
	if err != nil {
		return nil, err
	}

	campaign, err := s.campaignRepo.SetProgress(ctx, oid, update.Sent, update.Failed, update.Total)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, errs.NotFound("Campaign")
		}
		return nil, errs.Internal("updating campaign progress", err)
	}

	if update.Status == nil || *update.Status == campaign.Status {
		return campaign, nil
	}
	if !campaign.CanTransitionTo(*update.Status) {
		slog.Debug("Ignoring progress status change", "campaignId", id, "from", campaign.Status, "to", *update.Status)
		return campaign, nil
	}

	var updated *models.NotificationCampaign
	switch {
	case *update.Status == models.CampaignPaused:
		updated, err = s.Pause(ctx, id, "Paused by delivery worker")
	case *update.Status == models.CampaignRunning && campaign.Status == models.CampaignPaused:
		updated, err = s.Resume(ctx, id, "Resumed by delivery worker")
	default:
		updated, err = s.applyReportedStatus(ctx, campaign, *update.Status)
	}
	if err != nil {
		if errs.Is(err, errs.KindInvalidTransition) {
			return s.Load(ctx, oid)
		}
		return nil, err
	}
	return updated, nil
}

func (s *CampaignServiceImpl) applyReportedStatus(ctx context.Context, campaign *models.NotificationCampaign, to models.CampaignStatus) (*models.NotificationCampaign, error) {
	change := repositories.StatusChange{To: to}
	now := s.now()
	if change.To.IsTerminal() {
		change.CompletedAt = &now
	}
	if change.To == models.CampaignRunning && campaign.StartedAt == nil {
		change.StartedAt = &now
	}
	return s.transition(ctx, campaign, change)
}

// Activate moves a scheduled campaign to running. Running campaigns are
// returned unchanged.
func (s *CampaignServiceImpl) Activate(ctx context.Context, id primitive.ObjectID) (*models.NotificationCampaign, error) {
	campaign, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status == models.CampaignRunning {
		return campaign, nil
	}
	if campaign.Status != models.CampaignScheduled {
		return nil, errs.InvalidTransition(string(campaign.Status), string(models.CampaignRunning))
	}

	now := s.now()
	progress := campaign.Progress
	progress.Recompute()
	return s.transition(ctx, campaign, repositories.StatusChange{
		To:        models.CampaignRunning,
		Progress:  &progress,
		StartedAt: &now,
	})
}

// ReconcileTotal replaces the estimated total with the counted audience
func (s *CampaignServiceImpl) ReconcileTotal(ctx context.Context, id primitive.ObjectID, total int64) (*models.NotificationCampaign, error) {
	campaign, err := s.campaignRepo.ReconcileTotal(ctx, id, total)
	if err != nil {
		return nil, s.storeError("reconciling campaign total", err)
	}
	return campaign, nil
}

// IncrementProgress adds delivery outcomes to the counters
func (s *CampaignServiceImpl) IncrementProgress(ctx context.Context, id primitive.ObjectID, sentDelta, failedDelta int64) (*models.NotificationCampaign, error) {
	campaign, err := s.campaignRepo.IncrementProgress(ctx, id, sentDelta, failedDelta)
	if err != nil {
		return nil, s.storeError("incrementing campaign progress", err)
	}
	return campaign, nil
}

// Finish closes a running campaign as completed or failed
func (s *CampaignServiceImpl) Finish(ctx context.Context, id primitive.ObjectID, status models.CampaignStatus, reason string) (*models.NotificationCampaign, error) {
	campaign, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	change := repositories.StatusChange{To: status, CompletedAt: &now}
	if status == models.CampaignFailed {
		change.FailureReason = reason
	}
	return s.transition(ctx, campaign, change)
}

// Load returns a campaign by object id
func (s *CampaignServiceImpl) Load(ctx context.Context, id primitive.ObjectID) (*models.NotificationCampaign, error) {
	campaign, err := s.campaignRepo.FindByID(ctx, id)
	if err != nil {
		return nil, s.storeError("loading campaign", err)
	}
	return campaign, nil
}

// transition applies change as a compare-and-set on the campaign's current
// status. A concurrent change surfaces as InvalidTransition.
func (s *CampaignServiceImpl) transition(ctx context.Context, campaign *models.NotificationCampaign, change repositories.StatusChange) (*models.NotificationCampaign, error) {
	from := campaign.Status
	if !campaign.CanTransitionTo(change.To) {
		return nil, errs.InvalidTransition(string(from), string(change.To))
	}
	change.From = []models.CampaignStatus{from}

	updated, err := s.campaignRepo.TransitionStatus(ctx, campaign.ID, change)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrNotFound):
			return nil, errs.NotFound("Campaign")
		case errors.Is(err, repositories.ErrStateChanged):
			return nil, errs.InvalidTransition(string(from), string(change.To))
		}
		return nil, errs.Internal("changing campaign status", err)
	}

	s.metrics.ObserveTransition(string(from), string(change.To))
	slog.Info("Campaign status changed", "campaignId", campaign.ID.Hex(), "from", from, "to", change.To)
	return updated, nil
}

func (s *CampaignServiceImpl) storeError(op string, err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return errs.NotFound("Campaign")
	}
	return errs.Internal(op, err)
}

func validateScheduling(sch models.Scheduling) error {
	if sch.Type == models.ScheduleRecurring && sch.Recurring == nil {
		return errs.Validation("Recurring campaigns need a recurring schedule")
	}
	return nil
}
