package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/metrics"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
	"github.com/lfgraphics/khadimemillat-sub007/internal/utils"
)

const (
	previewSampleSize  = 5
	topLocationsLimit  = 10
	defaultCacheSize   = 512
	defaultCacheTTL    = time.Minute
	maxSampleUsersSize = 50
)

// Compile-time check to ensure AudienceServiceImpl implements AudienceService
var _ AudienceService = (*AudienceServiceImpl)(nil)

// AudienceServiceImpl evaluates targeting criteria against the users collection
type AudienceServiceImpl struct {
	userRepo   repositories.UserRepository
	countCache *expirable.LRU[string, int64]
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewAudienceService creates a new AudienceServiceImpl. Population counts are
// cached per normalized criteria for cacheTTL.
func NewAudienceService(userRepo repositories.UserRepository, cacheSize int, cacheTTL time.Duration, m *metrics.Metrics) *AudienceServiceImpl {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}
	return &AudienceServiceImpl{
		userRepo:   userRepo,
		countCache: expirable.NewLRU[string, int64](cacheSize, nil, cacheTTL),
		metrics:    m,
		now:        time.Now,
	}
}

// Preview evaluates the criteria in one pass over the matched population
func (s *AudienceServiceImpl) Preview(ctx context.Context, req models.PreviewRequest) (*models.AudiencePreview, error) {
	defer s.metrics.ObserveAudience("preview", time.Now())

	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	filter, err := BuildAudienceFilter(req.Criteria, s.now())
	if err != nil {
		return nil, err
	}

	channels := distinctChannels(req.Channels)
	agg := newAudienceAggregate(channels, req.ExcludeOptedOut)

	err = s.userRepo.StreamAudience(ctx, repositories.AudienceQuery{Filter: filter}, func(m *models.AudienceMember) error {
		agg.add(m)
		return nil
	})
	if err != nil {
		slog.Error("Audience preview query failed", "error", err)
		return nil, errs.Internal("audience preview failed", err)
	}

	preview := agg.result()
	if key, ok := cacheKey(req.Criteria); ok {
		s.countCache.Add(key, preview.TotalUsers)
	}
	return preview, nil
}

// Count returns the matched population size, served from cache when fresh
func (s *AudienceServiceImpl) Count(ctx context.Context, criteria models.TargetingCriteria) (int64, error) {
	key, cacheable := cacheKey(criteria)
	if cacheable {
		if n, ok := s.countCache.Get(key); ok {
			return n, nil
		}
	}
	return s.count(ctx, criteria, key, cacheable)
}

// Recount bypasses the cache and stores the fresh count
func (s *AudienceServiceImpl) Recount(ctx context.Context, criteria models.TargetingCriteria) (int64, error) {
	key, cacheable := cacheKey(criteria)
	return s.count(ctx, criteria, key, cacheable)
}

func (s *AudienceServiceImpl) count(ctx context.Context, criteria models.TargetingCriteria, key string, cacheable bool) (int64, error) {
	defer s.metrics.ObserveAudience("count", time.Now())

	filter, err := BuildAudienceFilter(criteria, s.now())
	if err != nil {
		return 0, err
	}
	n, err := s.userRepo.CountAudience(ctx, filter)
	if err != nil {
		return 0, errs.Internal("audience count failed", err)
	}
	if cacheable {
		s.countCache.Add(key, n)
	}
	return n, nil
}

// SampleUsers returns the first limit matching users in natural order, redacted
func (s *AudienceServiceImpl) SampleUsers(ctx context.Context, criteria models.TargetingCriteria, limit int) ([]models.RedactedUser, error) {
	if limit <= 0 {
		limit = previewSampleSize
	}
	if limit > maxSampleUsersSize {
		limit = maxSampleUsersSize
	}
	filter, err := BuildAudienceFilter(criteria, s.now())
	if err != nil {
		return nil, err
	}

	sample := make([]models.RedactedUser, 0, limit)
	err = s.userRepo.StreamAudience(ctx, repositories.AudienceQuery{Filter: filter, Limit: int64(limit)}, func(m *models.AudienceMember) error {
		sample = append(sample, redact(m))
		return nil
	})
	if err != nil {
		return nil, errs.Internal("audience sample failed", err)
	}
	return sample, nil
}

// audienceAggregate accumulates the preview figures of one stream
type audienceAggregate struct {
	channels        []models.Channel
	excludeOptedOut bool

	total     int64
	effective int64
	breakdown map[models.Channel]int64
	roles     map[models.Role]int64
	locations map[string]int64
	contacts  models.ContactMethodCounts
	sample    []models.RedactedUser
}

func newAudienceAggregate(channels []models.Channel, excludeOptedOut bool) *audienceAggregate {
	breakdown := make(map[models.Channel]int64, len(channels))
	for _, ch := range channels {
		breakdown[ch] = 0
	}
	return &audienceAggregate{
		channels:        channels,
		excludeOptedOut: excludeOptedOut,
		breakdown:       breakdown,
		roles:           map[models.Role]int64{},
		locations:       map[string]int64{},
		sample:          make([]models.RedactedUser, 0, previewSampleSize),
	}
}

func (a *audienceAggregate) add(m *models.AudienceMember) {
	a.total++
	a.roles[m.Role]++
	if m.Address.City != "" {
		a.locations[m.Address.City]++
	}
	if m.Email != "" {
		a.contacts.Email++
	}
	if m.Phone != "" {
		a.contacts.Phone++
	}

	reachable := false
	for _, ch := range a.channels {
		if m.Reachable(ch, a.excludeOptedOut) {
			a.breakdown[ch]++
			reachable = true
		}
	}
	if reachable {
		a.effective++
	}

	if len(a.sample) < previewSampleSize {
		a.sample = append(a.sample, redact(m))
	}
}

func (a *audienceAggregate) result() *models.AudiencePreview {
	return &models.AudiencePreview{
		TotalUsers:        a.total,
		ChannelBreakdown:  a.breakdown,
		EffectiveAudience: a.effective,
		Demographics: models.Demographics{
			Roles:          a.roles,
			Locations:      topLocations(a.locations, topLocationsLimit),
			ContactMethods: a.contacts,
		},
		SampleUsers: a.sample,
	}
}

// topLocations orders by count descending, then name ascending.
func topLocations(counts map[string]int64, limit int) []models.LocationCount {
	out := make([]models.LocationCount, 0, len(counts))
	for loc, n := range counts {
		out = append(out, models.LocationCount{Location: loc, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Location < out[j].Location
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func distinctChannels(requested []models.Channel) []models.Channel {
	if len(requested) == 0 {
		return append([]models.Channel(nil), models.AllChannels...)
	}
	seen := make(map[models.Channel]bool, len(requested))
	out := make([]models.Channel, 0, len(requested))
	for _, ch := range requested {
		if !seen[ch] {
			seen[ch] = true
			out = append(out, ch)
		}
	}
	return out
}

func redact(m *models.AudienceMember) models.RedactedUser {
	u := models.RedactedUser{
		ID:       m.ID.Hex(),
		Name:     m.Name,
		Role:     m.Role,
		Location: m.Address.City,
	}
	if m.Email != "" {
		u.Email = utils.MaskEmail(m.Email)
	}
	if m.Phone != "" {
		u.Phone = utils.MaskPhone(m.Phone)
	}
	return u
}

// cacheKey normalizes the criteria so equivalent criteria share a cache slot.
func cacheKey(criteria models.TargetingCriteria) (string, bool) {
	roles := criteria.DistinctRoles()
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	if criteria.IncludesEveryone() {
		roles = []models.Role{models.RoleEveryone}
	}
	locations := append([]string(nil), criteria.Locations...)
	sort.Strings(locations)

	normalized := models.TargetingCriteria{
		Roles:          roles,
		Locations:      locations,
		ActivityStatus: criteria.ActivityStatus,
		Logic:          criteria.EffectiveLogic(),
		CustomFilters:  criteria.CustomFilters,
	}
	b, err := json.Marshal(normalized)
	if err != nil {
		return "", false
	}
	return string(b), true
}
