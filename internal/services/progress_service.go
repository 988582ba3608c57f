package services

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
)

const maxRecentActivity = 10

// campaignLoader is the read side of the campaign service
type campaignLoader interface {
	Get(ctx context.Context, id string) (*models.NotificationCampaign, error)
}

// Compile-time check to ensure ProgressServiceImpl implements ProgressService
var _ ProgressService = (*ProgressServiceImpl)(nil)

// ProgressServiceImpl derives delivery progress reports from campaign counters
type ProgressServiceImpl struct {
	campaigns campaignLoader
	now       func() time.Time
}

// NewProgressService creates a new ProgressServiceImpl
func NewProgressService(campaigns campaignLoader) *ProgressServiceImpl {
	return &ProgressServiceImpl{campaigns: campaigns, now: time.Now}
}

// Get builds the progress report of a campaign
func (s *ProgressServiceImpl) Get(ctx context.Context, id string) (*models.ProgressReport, error) {
	campaign, err := s.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return BuildProgressReport(campaign, s.now()), nil
}

// BuildProgressReport computes the report of campaign as of now.
func BuildProgressReport(campaign *models.NotificationCampaign, now time.Time) *models.ProgressReport {
	p := campaign.Progress
	return &models.ProgressReport{
		CampaignID:                 campaign.ID.Hex(),
		Status:                     campaign.Status,
		Progress:                   p,
		CompletionPercentage:       percentage(p.Sent, p.Total),
		SuccessRate:                percentage(p.Sent, p.Sent+p.Failed),
		EstimatedCompletionTime:    estimateCompletion(campaign, now),
		RecentActivity:             recentActivity(campaign),
		ChannelProgress:            splitAcrossChannels(p, campaign.Channels),
		ChannelProgressApproximate: true,
	}
}

func percentage(part, whole int64) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// estimateCompletion projects the remaining work at the average rate since
// the campaign started. The rate covers the whole run from startedAt
// (createdAt before a start), not only the time since the last progress
// update.
func estimateCompletion(campaign *models.NotificationCampaign, now time.Time) *time.Time {
	p := campaign.Progress
	if campaign.Status != models.CampaignRunning || p.InProgress <= 0 {
		return nil
	}
	processed := p.Sent + p.Failed
	if processed <= 0 {
		return nil
	}
	since := campaign.CreatedAt
	if campaign.StartedAt != nil {
		since = *campaign.StartedAt
	}
	elapsed := now.Sub(since)
	if elapsed <= 0 {
		return nil
	}

	perItem := float64(elapsed) / float64(processed)
	eta := now.Add(time.Duration(perItem * float64(p.InProgress)))
	return &eta
}

// recentActivity merges the current status with the pause and resume
// history, newest first.
func recentActivity(campaign *models.NotificationCampaign) []models.ActivityEntry {
	entries := []models.ActivityEntry{{
		Type:      "status",
		Timestamp: campaign.UpdatedAt,
		Message:   "Campaign is " + string(campaign.Status),
	}}
	for _, h := range campaign.Metadata.PauseHistory {
		entries = append(entries, historyEntry("paused", "Campaign paused", h))
	}
	for _, h := range campaign.Metadata.ResumeHistory {
		entries = append(entries, historyEntry("resumed", "Campaign resumed", h))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})
	if len(entries) > maxRecentActivity {
		entries = entries[:maxRecentActivity]
	}
	return entries
}

func historyEntry(kind, message string, h models.HistoryEntry) models.ActivityEntry {
	if h.Reason != "" {
		message += ": " + h.Reason
	}
	return models.ActivityEntry{Type: kind, Timestamp: h.Timestamp, Message: message}
}

// splitAcrossChannels divides the aggregate counters evenly across channels.
// Remainders go to the first channels so each counter still sums to the
// aggregate. This is an approximation, not per-channel accounting.
func splitAcrossChannels(p models.CampaignProgress, channels []models.Channel) map[models.Channel]models.ChannelProgress {
	out := make(map[models.Channel]models.ChannelProgress, len(channels))
	n := int64(len(channels))
	if n == 0 {
		return out
	}
	for i, ch := range channels {
		idx := int64(i)
		out[ch] = models.ChannelProgress{
			Sent:       share(p.Sent, n, idx),
			Failed:     share(p.Failed, n, idx),
			InProgress: share(p.InProgress, n, idx),
		}
	}
	return out
}

func share(total, n, idx int64) int64 {
	s := total / n
	if idx < total%n {
		s++
	}
	return s
}
