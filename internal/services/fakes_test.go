package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
	"github.com/lfgraphics/khadimemillat-sub007/pkg/razorpay"
)

var (
	_ repositories.UserRepository         = (*fakeUserRepo)(nil)
	_ repositories.SegmentRepository      = (*fakeSegmentRepo)(nil)
	_ repositories.CampaignRepository     = (*fakeCampaignRepo)(nil)
	_ repositories.DeliveryJobRepository  = (*fakeJobRepo)(nil)
	_ repositories.NotificationRepository = (*fakeNotificationRepo)(nil)
	_ repositories.DonationRepository     = (*fakeDonationRepo)(nil)
	_ repositories.StaffAccountRepository = (*fakeStaffRepo)(nil)
	_ PaymentGateway                      = (*fakePayments)(nil)
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func changeTo(status models.CampaignStatus) repositories.StatusChange {
	return repositories.StatusChange{To: status}
}

func admin() models.Principal {
	return models.Principal{ID: "admin-1", Email: "admin@example.org", Role: models.RoleAdmin}
}

func moderator(id string) models.Principal {
	return models.Principal{ID: id, Email: id + "@example.org", Role: models.RoleModerator}
}

// fakeUserRepo serves a fixed population regardless of the filter.
type fakeUserRepo struct {
	mu         sync.Mutex
	members    []*models.AudienceMember
	countErr   error
	streamErr  error
	counts     int
	lastFilter bson.M
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error { return nil }

func (r *fakeUserRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.ID == id {
			return &models.User{ID: m.ID, Name: m.Name, Email: m.Email, Phone: m.Phone, Role: m.Role, Address: m.Address}, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) FindByEmailOrPhone(ctx context.Context, email, phone string) (*models.User, error) {
	return nil, repositories.ErrNotFound
}

func (r *fakeUserRepo) Update(ctx context.Context, user *models.User) error { return nil }

func (r *fakeUserRepo) CountAudience(ctx context.Context, filter bson.M) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts++
	r.lastFilter = filter
	if r.countErr != nil {
		return 0, r.countErr
	}
	return int64(len(r.members)), nil
}

func (r *fakeUserRepo) StreamAudience(ctx context.Context, query repositories.AudienceQuery, fn func(*models.AudienceMember) error) error {
	r.mu.Lock()
	r.lastFilter = query.Filter
	members := r.members
	r.mu.Unlock()
	if r.streamErr != nil {
		return r.streamErr
	}
	var emitted int64
	for i := query.Skip; i < int64(len(members)); i++ {
		if query.Limit > 0 && emitted >= query.Limit {
			break
		}
		if err := fn(members[i]); err != nil {
			return err
		}
		emitted++
	}
	return nil
}

type fakeSegmentRepo struct {
	mu         sync.Mutex
	segments   map[primitive.ObjectID]models.AudienceSegment
	lastFilter bson.M
}

func newFakeSegmentRepo() *fakeSegmentRepo {
	return &fakeSegmentRepo{segments: map[primitive.ObjectID]models.AudienceSegment{}}
}

func (r *fakeSegmentRepo) Create(ctx context.Context, s *models.AudienceSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.segments {
		if existing.CreatedBy == s.CreatedBy && existing.Name == s.Name {
			return repositories.ErrDuplicate
		}
	}
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	r.segments[s.ID] = *s
	return nil
}

func (r *fakeSegmentRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.AudienceSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.segments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &s, nil
}

func (r *fakeSegmentRepo) ExistsByName(ctx context.Context, createdBy, name string, excludeID primitive.ObjectID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.segments {
		if id != excludeID && s.CreatedBy == createdBy && s.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeSegmentRepo) Update(ctx context.Context, s *models.AudienceSegment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.segments[s.ID]; !ok {
		return repositories.ErrNotFound
	}
	r.segments[s.ID] = *s
	return nil
}

func (r *fakeSegmentRepo) UpdateCount(ctx context.Context, id primitive.ObjectID, count int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.segments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	s.UserCount = count
	s.LastUpdated = at
	r.segments[id] = s
	return nil
}

func (r *fakeSegmentRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.segments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.segments, id)
	return nil
}

func (r *fakeSegmentRepo) Find(ctx context.Context, filter bson.M, page, limit int) ([]*models.AudienceSegment, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = filter
	out := make([]*models.AudienceSegment, 0, len(r.segments))
	for _, s := range r.segments {
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, int64(len(out)), nil
}

func (r *fakeSegmentRepo) FindStale(ctx context.Context, before time.Time) ([]*models.AudienceSegment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AudienceSegment
	for _, s := range r.segments {
		if s.LastUpdated.Before(before) {
			s := s
			out = append(out, &s)
		}
	}
	return out, nil
}

func (r *fakeSegmentRepo) put(s models.AudienceSegment) models.AudienceSegment {
	if s.ID.IsZero() {
		s.ID = primitive.NewObjectID()
	}
	r.mu.Lock()
	r.segments[s.ID] = s
	r.mu.Unlock()
	return s
}

type fakeCampaignRepo struct {
	mu        sync.Mutex
	campaigns map[primitive.ObjectID]models.NotificationCampaign
}

func newFakeCampaignRepo() *fakeCampaignRepo {
	return &fakeCampaignRepo{campaigns: map[primitive.ObjectID]models.NotificationCampaign{}}
}

func (r *fakeCampaignRepo) put(c models.NotificationCampaign) models.NotificationCampaign {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	r.mu.Lock()
	r.campaigns[c.ID] = c
	r.mu.Unlock()
	return c
}

func (r *fakeCampaignRepo) stored(id primitive.ObjectID) models.NotificationCampaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.campaigns[id]
}

func (r *fakeCampaignRepo) Create(ctx context.Context, c *models.NotificationCampaign) error {
	r.put(*c)
	return nil
}

func (r *fakeCampaignRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.NotificationCampaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (r *fakeCampaignRepo) Find(ctx context.Context, filter models.CampaignFilter) ([]*models.NotificationCampaign, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.NotificationCampaign
	for _, c := range r.campaigns {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		c := c
		out = append(out, &c)
	}
	return out, int64(len(out)), nil
}

func (r *fakeCampaignRepo) UpdateDraft(ctx context.Context, c *models.NotificationCampaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.campaigns[c.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if stored.Status != models.CampaignDraft {
		return repositories.ErrStateChanged
	}
	r.campaigns[c.ID] = *c
	return nil
}

func (r *fakeCampaignRepo) DeleteIn(ctx context.Context, id primitive.ObjectID, statuses []models.CampaignStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return repositories.ErrNotFound
	}
	for _, s := range statuses {
		if c.Status == s {
			delete(r.campaigns, id)
			return nil
		}
	}
	return repositories.ErrStateChanged
}

func (r *fakeCampaignRepo) TransitionStatus(ctx context.Context, id primitive.ObjectID, change repositories.StatusChange) (*models.NotificationCampaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	allowed := false
	for _, from := range change.From {
		if c.Status == from {
			allowed = true
		}
	}
	if !allowed {
		return nil, repositories.ErrStateChanged
	}
	c.Status = change.To
	if change.Progress != nil {
		c.Progress = *change.Progress
	}
	if change.AudienceEstimated != nil {
		c.Metadata.AudienceEstimated = *change.AudienceEstimated
	}
	if change.StartedAt != nil {
		c.StartedAt = change.StartedAt
	}
	if change.CompletedAt != nil {
		c.CompletedAt = change.CompletedAt
	}
	if change.PauseEntry != nil {
		c.Metadata.PauseHistory = append(append([]models.HistoryEntry{}, c.Metadata.PauseHistory...), *change.PauseEntry)
	}
	if change.ResumeEntry != nil {
		c.Metadata.ResumeHistory = append(append([]models.HistoryEntry{}, c.Metadata.ResumeHistory...), *change.ResumeEntry)
	}
	if change.CancelReason != "" {
		c.Metadata.CancelReason = change.CancelReason
	}
	if change.FailureReason != "" {
		c.Metadata.FailureReason = change.FailureReason
	}
	r.campaigns[id] = c
	return &c, nil
}

func (r *fakeCampaignRepo) mutateProgress(id primitive.ObjectID, fn func(c *models.NotificationCampaign)) (*models.NotificationCampaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	fn(&c)
	c.Progress.Recompute()
	r.campaigns[id] = c
	return &c, nil
}

func (r *fakeCampaignRepo) SetProgress(ctx context.Context, id primitive.ObjectID, sent, failed int64, total *int64) (*models.NotificationCampaign, error) {
	return r.mutateProgress(id, func(c *models.NotificationCampaign) {
		c.Progress.Sent = sent
		c.Progress.Failed = failed
		if total != nil {
			c.Progress.Total = *total
		}
	})
}

func (r *fakeCampaignRepo) IncrementProgress(ctx context.Context, id primitive.ObjectID, sentDelta, failedDelta int64) (*models.NotificationCampaign, error) {
	return r.mutateProgress(id, func(c *models.NotificationCampaign) {
		c.Progress.Sent += sentDelta
		c.Progress.Failed += failedDelta
	})
}

func (r *fakeCampaignRepo) ReconcileTotal(ctx context.Context, id primitive.ObjectID, total int64) (*models.NotificationCampaign, error) {
	return r.mutateProgress(id, func(c *models.NotificationCampaign) {
		c.Progress.Total = total
		c.Metadata.AudienceEstimated = false
	})
}

type fakeJobRepo struct {
	mu   sync.Mutex
	jobs map[string]models.DeliveryJob
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{jobs: map[string]models.DeliveryJob{}}
}

func (r *fakeJobRepo) get(id string) models.DeliveryJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.jobs[id]
}

func (r *fakeJobRepo) forCampaign(campaignID primitive.ObjectID) []models.DeliveryJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.DeliveryJob
	for _, j := range r.jobs {
		if j.CampaignID == campaignID {
			out = append(out, j)
		}
	}
	return out
}

func (r *fakeJobRepo) Enqueue(ctx context.Context, job *models.DeliveryJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job.Status = models.JobQueued
	r.jobs[job.ID] = *job
	return nil
}

func (r *fakeJobRepo) ClaimDue(ctx context.Context, now time.Time, workerID string) (*models.DeliveryJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due *models.DeliveryJob
	for _, j := range r.jobs {
		if j.Status != models.JobQueued || j.RunAt.After(now) {
			continue
		}
		if due == nil || j.RunAt.Before(due.RunAt) {
			j := j
			due = &j
		}
	}
	if due == nil {
		return nil, repositories.ErrNotFound
	}
	due.Status = models.JobProcessing
	due.WorkerID = workerID
	due.Attempts++
	r.jobs[due.ID] = *due
	return due, nil
}

func (r *fakeJobRepo) update(id string, fn func(j *models.DeliveryJob)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j := r.jobs[id]
	fn(&j)
	r.jobs[id] = j
}

func (r *fakeJobRepo) SaveOffset(ctx context.Context, id string, offset int64) error {
	r.update(id, func(j *models.DeliveryJob) { j.Offset = offset })
	return nil
}

func (r *fakeJobRepo) Park(ctx context.Context, id string, offset int64) error {
	r.update(id, func(j *models.DeliveryJob) {
		j.Status = models.JobParked
		j.Offset = offset
	})
	return nil
}

func (r *fakeJobRepo) Requeue(ctx context.Context, campaignID primitive.ObjectID, runAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, j := range r.jobs {
		if j.CampaignID == campaignID && j.Status == models.JobParked {
			j.Status = models.JobQueued
			j.RunAt = runAt
			r.jobs[id] = j
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeJobRepo) Finish(ctx context.Context, id string, status models.DeliveryJobStatus, lastError string) error {
	r.update(id, func(j *models.DeliveryJob) {
		j.Status = status
		j.LastError = lastError
	})
	return nil
}

func (r *fakeJobRepo) CancelPending(ctx context.Context, campaignID primitive.ObjectID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, j := range r.jobs {
		if j.CampaignID == campaignID && (j.Status == models.JobQueued || j.Status == models.JobParked) {
			j.Status = models.JobFailed
			j.LastError = reason
			r.jobs[id] = j
		}
	}
	return nil
}

type fakeNotificationRepo struct {
	mu   sync.Mutex
	logs []*models.Notification
}

func (r *fakeNotificationRepo) InsertMany(ctx context.Context, notifications []*models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, notifications...)
	return nil
}

func (r *fakeNotificationRepo) FindByCampaignID(ctx context.Context, campaignID primitive.ObjectID, page, limit int) ([]*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for _, n := range r.logs {
		if n.CampaignID == campaignID {
			out = append(out, n)
		}
	}
	return out, nil
}

type fakeDonationRepo struct {
	mu        sync.Mutex
	donations map[primitive.ObjectID]models.Donation
	updates   int
}

func newFakeDonationRepo(donations ...models.Donation) *fakeDonationRepo {
	r := &fakeDonationRepo{donations: map[primitive.ObjectID]models.Donation{}}
	for _, d := range donations {
		r.donations[d.ID] = d
	}
	return r
}

func (r *fakeDonationRepo) Create(ctx context.Context, d *models.Donation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.donations[d.ID] = *d
	return nil
}

func (r *fakeDonationRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &d, nil
}

func (r *fakeDonationRepo) FindByStatus(ctx context.Context, status models.DonationStatus, limit int) ([]*models.Donation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Donation
	for _, d := range r.donations {
		if d.Status == status {
			d := d
			out = append(out, &d)
		}
	}
	return out, nil
}

func (r *fakeDonationRepo) UpdateStatus(ctx context.Context, id primitive.ObjectID, change models.DonationStatusChange, paymentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donations[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if d.Status != change.From {
		return repositories.ErrStateChanged
	}
	d.Status = change.To
	d.StatusHistory = append(d.StatusHistory, change)
	if paymentID != "" {
		d.RazorpayPaymentID = paymentID
	}
	r.donations[id] = d
	r.updates++
	return nil
}

type fakeStaffRepo struct {
	mu       sync.Mutex
	accounts map[string]models.StaffAccount
}

func newFakeStaffRepo() *fakeStaffRepo {
	return &fakeStaffRepo{accounts: map[string]models.StaffAccount{}}
}

func (r *fakeStaffRepo) Create(ctx context.Context, a *models.StaffAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[a.Email]; ok {
		return repositories.ErrDuplicate
	}
	r.accounts[a.Email] = *a
	return nil
}

func (r *fakeStaffRepo) FindByEmail(ctx context.Context, email string) (*models.StaffAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[email]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

type fixedEstimator int64

func (e fixedEstimator) Estimate(models.TargetingCriteria) int64 { return int64(e) }

// fakePayments answers by payment id first, then by order id.
type fakePayments struct {
	payments map[string]*razorpay.Payment
	errors   map[string]error
	calls    []string
}

func (g *fakePayments) FetchPayment(ctx context.Context, paymentID string) (*razorpay.Payment, error) {
	return g.answer(paymentID)
}

func (g *fakePayments) LatestOrderPayment(ctx context.Context, orderID string) (*razorpay.Payment, error) {
	return g.answer(orderID)
}

func (g *fakePayments) answer(key string) (*razorpay.Payment, error) {
	g.calls = append(g.calls, key)
	if err, ok := g.errors[key]; ok {
		return nil, err
	}
	if p, ok := g.payments[key]; ok {
		return p, nil
	}
	return nil, razorpay.ErrNotFound
}
