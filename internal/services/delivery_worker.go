package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfgraphics/khadimemillat-sub007/internal/config"
	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/metrics"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/gateway"
)

const (
	defaultBatchSize    = 100
	defaultPollInterval = 5 * time.Second

	notificationSent   = "SENT"
	notificationFailed = "FAILED"
)

// errDeliveryHalted stops the recipient stream once the campaign leaves running.
var errDeliveryHalted = errors.New("campaign is no longer running")

// DeliveryWorker claims due delivery jobs and sends campaign notifications
// through the channel gateways.
type DeliveryWorker struct {
	id            string
	jobs          repositories.DeliveryJobRepository
	tracker       DeliveryTracker
	users         repositories.UserRepository
	notifications repositories.NotificationRepository
	gateways      map[models.Channel]gateway.Gateway
	metrics       *metrics.Metrics
	batchSize     int
	pollInterval  time.Duration
	now           func() time.Time
}

// NewDeliveryWorker creates a new DeliveryWorker
func NewDeliveryWorker(
	jobs repositories.DeliveryJobRepository,
	tracker DeliveryTracker,
	users repositories.UserRepository,
	notifications repositories.NotificationRepository,
	gateways map[models.Channel]gateway.Gateway,
	cfg config.WorkerConfig,
	m *metrics.Metrics,
) *DeliveryWorker {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &DeliveryWorker{
		id:            "worker-" + uuid.NewString(),
		jobs:          jobs,
		tracker:       tracker,
		users:         users,
		notifications: notifications,
		gateways:      gateways,
		metrics:       m,
		batchSize:     batchSize,
		pollInterval:  pollInterval,
		now:           time.Now,
	}
}

// ID returns the worker id recorded on claimed jobs.
func (w *DeliveryWorker) ID() string {
	return w.id
}

// Run polls for due jobs until ctx is cancelled
func (w *DeliveryWorker) Run(ctx context.Context) error {
	slog.Info("Delivery worker started", "workerId", w.id, "pollInterval", w.pollInterval, "batchSize", w.batchSize)
	for {
		claimed, err := w.RunOnce(ctx)
		if err != nil {
			slog.Error("Delivery job failed", "workerId", w.id, "error", err)
		}
		if claimed && ctx.Err() == nil {
			continue
		}
		select {
		case <-ctx.Done():
			slog.Info("Delivery worker stopped", "workerId", w.id)
			return nil
		case <-time.After(w.pollInterval):
		}
	}
}

// RunOnce claims and processes at most one due job. It reports whether a job
// was claimed.
func (w *DeliveryWorker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.jobs.ClaimDue(ctx, w.now(), w.id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	slog.Info("Delivery job claimed", "jobId", job.ID, "campaignId", job.CampaignID.Hex(), "offset", job.Offset, "attempt", job.Attempts)
	return true, w.process(ctx, job)
}

func (w *DeliveryWorker) process(ctx context.Context, job *models.DeliveryJob) error {
	campaign, err := w.tracker.Activate(ctx, job.CampaignID)
	if err != nil {
		if errs.Is(err, errs.KindInvalidTransition) {
			if current, loadErr := w.tracker.Load(ctx, job.CampaignID); loadErr == nil && current.Status == models.CampaignPaused {
				// paused before the job was claimed; wait for a resume
				return w.park(ctx, job, current.ID, job.Offset)
			}
		}
		w.finishJob(ctx, job, models.JobFailed, err.Error())
		if errs.Is(err, errs.KindNotFound) || errs.Is(err, errs.KindInvalidTransition) {
			slog.Warn("Dropping delivery job", "jobId", job.ID, "reason", err)
			return nil
		}
		return err
	}

	filter, err := BuildAudienceFilter(campaign.Targeting, w.now())
	if err != nil {
		return w.abort(ctx, job, campaign, "Invalid targeting: "+err.Error())
	}

	if campaign.Metadata.AudienceEstimated {
		total, err := w.users.CountAudience(ctx, filter)
		if err != nil {
			return w.abort(ctx, job, campaign, "Counting audience failed")
		}
		reconciled, err := w.tracker.ReconcileTotal(ctx, campaign.ID, total)
		if err != nil {
			return w.abort(ctx, job, campaign, "Reconciling audience failed")
		}
		campaign = reconciled
		slog.Info("Campaign audience counted", "campaignId", campaign.ID.Hex(), "total", total)
	}

	run := &deliveryRun{worker: w, job: job, campaign: campaign, offset: job.Offset}
	query := repositories.AudienceQuery{Filter: filter, Skip: job.Offset}
	err = w.users.StreamAudience(ctx, query, func(m *models.AudienceMember) error {
		return run.deliver(ctx, m)
	})
	if err == nil {
		err = run.flush(ctx)
	}

	switch {
	case errors.Is(err, errDeliveryHalted):
		return w.park(ctx, run.job, run.campaign.ID, run.offset)
	case err != nil:
		if ctx.Err() != nil {
			// shutting down; leave the job claimable from where it stopped
			return w.jobs.Park(context.Background(), job.ID, run.offset)
		}
		return w.abort(ctx, job, run.campaign, "Delivery interrupted: "+err.Error())
	}

	final := models.CampaignCompleted
	reason := ""
	p := run.campaign.Progress
	if p.Sent == 0 && p.Failed > 0 {
		final = models.CampaignFailed
		reason = "No notifications could be delivered"
	}
	if _, err := w.tracker.Finish(ctx, campaign.ID, final, reason); err != nil {
		if errs.Is(err, errs.KindInvalidTransition) {
			// paused after the last batch was reported
			return w.park(ctx, run.job, run.campaign.ID, run.offset)
		}
		w.finishJob(ctx, job, models.JobFailed, err.Error())
		return err
	}
	w.finishJob(ctx, job, models.JobDone, "")
	slog.Info("Campaign delivery finished", "campaignId", campaign.ID.Hex(), "status", final, "sent", p.Sent, "failed", p.Failed)
	return nil
}

// park stops the job where it is. A campaign resumed in the meantime gets
// its job re-queued straight away.
func (w *DeliveryWorker) park(ctx context.Context, job *models.DeliveryJob, campaignID primitive.ObjectID, offset int64) error {
	if err := w.jobs.Park(ctx, job.ID, offset); err != nil {
		return err
	}
	slog.Info("Delivery job parked", "jobId", job.ID, "campaignId", campaignID.Hex(), "offset", offset)

	current, err := w.tracker.Load(ctx, campaignID)
	if err != nil {
		return err
	}
	if current.Status == models.CampaignRunning {
		_, err = w.jobs.Requeue(ctx, current.ID, w.now())
	}
	return err
}

func (w *DeliveryWorker) abort(ctx context.Context, job *models.DeliveryJob, campaign *models.NotificationCampaign, reason string) error {
	w.finishJob(ctx, job, models.JobFailed, reason)
	if campaign != nil {
		if _, err := w.tracker.Finish(ctx, campaign.ID, models.CampaignFailed, reason); err != nil {
			slog.Error("Failed to mark campaign failed", "campaignId", campaign.ID.Hex(), "error", err)
		}
	}
	return errors.New(reason)
}

func (w *DeliveryWorker) finishJob(ctx context.Context, job *models.DeliveryJob, status models.DeliveryJobStatus, lastError string) {
	if err := w.jobs.Finish(ctx, job.ID, status, lastError); err != nil {
		slog.Error("Failed to close delivery job", "jobId", job.ID, "status", status, "error", err)
	}
}

// deliveryRun holds the state of one pass over a campaign's recipients
type deliveryRun struct {
	worker   *DeliveryWorker
	job      *models.DeliveryJob
	campaign *models.NotificationCampaign
	offset   int64

	pending     int
	sentDelta   int64
	failedDelta int64
	logs        []*models.Notification
}

// deliver sends every reachable channel to one member. The member counts as
// sent when at least one channel succeeded.
func (r *deliveryRun) deliver(ctx context.Context, m *models.AudienceMember) error {
	delivered, attempted := false, false

	for _, channel := range r.campaign.Channels {
		content := r.campaign.Content[channel]
		if content.Message == "" || !m.Reachable(channel, true) {
			continue
		}
		attempted = true
		entry := r.worker.send(ctx, r.campaign, m, channel, content)
		r.logs = append(r.logs, entry)
		if entry.Status == notificationSent {
			delivered = true
		}
	}

	if delivered {
		r.sentDelta++
	} else {
		if !attempted {
			slog.Debug("Recipient has no reachable channel", "campaignId", r.campaign.ID.Hex(), "userId", m.ID.Hex())
		}
		r.failedDelta++
	}
	r.offset++
	r.pending++

	if r.pending >= r.worker.batchSize {
		return r.flush(ctx)
	}
	return nil
}

// flush reports the pending counters and logs, then checks whether the
// campaign is still running.
func (r *deliveryRun) flush(ctx context.Context) error {
	if r.pending == 0 {
		return nil
	}
	w := r.worker
	if len(r.logs) > 0 {
		if err := w.notifications.InsertMany(ctx, r.logs); err != nil {
			slog.Error("Failed to store notification log", "campaignId", r.campaign.ID.Hex(), "count", len(r.logs), "error", err)
		}
	}
	campaign, err := w.tracker.IncrementProgress(ctx, r.campaign.ID, r.sentDelta, r.failedDelta)
	if err != nil {
		return err
	}
	if err := w.jobs.SaveOffset(ctx, r.job.ID, r.offset); err != nil {
		return err
	}

	r.campaign = campaign
	r.pending, r.sentDelta, r.failedDelta = 0, 0, 0
	r.logs = nil

	if campaign.Status != models.CampaignRunning {
		return errDeliveryHalted
	}
	return nil
}

func (w *DeliveryWorker) send(ctx context.Context, campaign *models.NotificationCampaign, m *models.AudienceMember, channel models.Channel, content models.ChannelContent) *models.Notification {
	entry := &models.Notification{
		CampaignID: campaign.ID,
		UserID:     m.ID,
		Channel:    channel,
		SentAt:     w.now(),
	}

	gw, ok := w.gateways[channel]
	if !ok {
		entry.Status = notificationFailed
		entry.Error = "no gateway configured for " + string(channel)
		w.metrics.ObserveDelivery(string(channel), "failed")
		return entry
	}

	messageID, err := gw.Send(ctx, gateway.Message{
		Channel:   string(channel),
		Recipient: recipientFor(m, channel),
		UserID:    m.ID.Hex(),
		Title:     content.Title,
		Body:      content.Message,
		Reference: campaign.ID.Hex(),
	})
	if err != nil {
		entry.Status = notificationFailed
		entry.Error = err.Error()
		w.metrics.ObserveDelivery(string(channel), "failed")
		return entry
	}
	entry.Status = notificationSent
	entry.MessageID = messageID
	w.metrics.ObserveDelivery(string(channel), "sent")
	return entry
}

func recipientFor(m *models.AudienceMember, channel models.Channel) string {
	switch channel {
	case models.ChannelEmail:
		return m.Email
	case models.ChannelSMS, models.ChannelWhatsApp:
		return m.Phone
	default:
		return m.ID.Hex()
	}
}
