package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/sync/errgroup"

	"github.com/lfgraphics/khadimemillat-sub007/internal/errs"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/repositories"
	"github.com/lfgraphics/khadimemillat-sub007/internal/utils"
)

const (
	segmentSampleSize     = 10
	segmentRefreshWorkers = 4
)

var errDuplicateSegmentName = errs.Conflict("A segment with this name already exists")

// audienceCounter is the part of the audience evaluator segments depend on
type audienceCounter interface {
	Recount(ctx context.Context, criteria models.TargetingCriteria) (int64, error)
	SampleUsers(ctx context.Context, criteria models.TargetingCriteria, limit int) ([]models.RedactedUser, error)
}

// Compile-time check to ensure SegmentServiceImpl implements SegmentService
var _ SegmentService = (*SegmentServiceImpl)(nil)

// SegmentServiceImpl handles audience segment business logic
type SegmentServiceImpl struct {
	segmentRepo repositories.SegmentRepository
	audience    audienceCounter
	now         func() time.Time
}

// NewSegmentService creates a new SegmentServiceImpl
func NewSegmentService(segmentRepo repositories.SegmentRepository, audience audienceCounter) *SegmentServiceImpl {
	return &SegmentServiceImpl{
		segmentRepo: segmentRepo,
		audience:    audience,
		now:         time.Now,
	}
}

// Create stores a new segment and counts its population
func (s *SegmentServiceImpl) Create(ctx context.Context, caller models.Principal, req models.CreateSegmentRequest) (*models.SegmentView, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	exists, err := s.segmentRepo.ExistsByName(ctx, caller.ID, req.Name, primitive.NilObjectID)
	if err != nil {
		return nil, errs.Internal("checking segment name", err)
	}
	if exists {
		return nil, errDuplicateSegmentName
	}

	now := s.now()
	segment := &models.AudienceSegment{
		ID:          primitive.NewObjectID(),
		Name:        req.Name,
		Description: req.Description,
		Criteria:    req.Criteria,
		UserCount:   0,
		LastUpdated: now,
		IsShared:    req.IsShared,
		CreatedBy:   caller.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.segmentRepo.Create(ctx, segment); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, errDuplicateSegmentName
		}
		return nil, errs.Internal("creating segment", err)
	}
	slog.Info("Segment created", "segmentId", segment.ID.Hex(), "createdBy", caller.ID)

	s.recount(ctx, segment)
	return s.view(segment, caller), nil
}

// Get returns a visible segment, recounting it when stale or asked to
func (s *SegmentServiceImpl) Get(ctx context.Context, caller models.Principal, id string, opts models.SegmentGetOptions) (*models.SegmentView, error) {
	segment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !segment.VisibleTo(caller) {
		return nil, errs.Forbidden("You do not have access to this segment")
	}

	recount := opts.RefreshCount || segment.NeedsCountUpdate(s.now())
	var sample []models.RedactedUser

	g, gctx := errgroup.WithContext(ctx)
	if recount {
		g.Go(func() error {
			s.recount(gctx, segment)
			return nil
		})
	}
	if opts.IncludeUsers {
		g.Go(func() error {
			users, err := s.audience.SampleUsers(gctx, segment.Criteria, segmentSampleSize)
			if err != nil {
				return err
			}
			sample = users
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errs.KindOf(err) != errs.KindInternal {
			return nil, err
		}
		return nil, errs.Internal("sampling segment users", err)
	}

	view := s.view(segment, caller)
	view.SampleUsers = sample
	return view, nil
}

// List returns one page of segments. An explicit createdBy or isShared filter
// replaces the default "mine or shared" visibility instead of narrowing it.
func (s *SegmentServiceImpl) List(ctx context.Context, caller models.Principal, filter models.SegmentFilter) ([]*models.SegmentView, models.Pagination, error) {
	filter.Page, filter.Limit = utils.NormalizePage(filter.Page, filter.Limit)

	segments, total, err := s.segmentRepo.Find(ctx, SegmentListQuery(caller, filter), filter.Page, filter.Limit)
	if err != nil {
		return nil, models.Pagination{}, errs.Internal("listing segments", err)
	}

	views := make([]*models.SegmentView, len(segments))
	for i, seg := range segments {
		views[i] = s.view(seg, caller)
	}
	return views, models.Pagination{
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: utils.TotalPages(total, filter.Limit),
	}, nil
}

// SegmentListQuery builds the listing filter for caller.
func SegmentListQuery(caller models.Principal, filter models.SegmentFilter) bson.M {
	query := bson.M{}
	if filter.CreatedBy != nil || filter.IsShared != nil {
		if filter.CreatedBy != nil {
			query["createdBy"] = *filter.CreatedBy
		}
		if filter.IsShared != nil {
			query["isShared"] = *filter.IsShared
		}
	} else {
		query["$or"] = bson.A{
			bson.M{"createdBy": caller.ID},
			bson.M{"isShared": true},
		}
	}
	if search := utils.ContainsPattern(filter.Search); search != "" {
		query["name"] = primitive.Regex{Pattern: search, Options: "i"}
	}
	return query
}

// Update applies a patch to a segment owned by caller, or any segment for admins
func (s *SegmentServiceImpl) Update(ctx context.Context, caller models.Principal, id string, patch models.SegmentPatch) (*models.SegmentView, error) {
	if err := utils.ValidateStruct(patch); err != nil {
		return nil, err
	}
	segment, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !segment.EditableBy(caller) {
		return nil, errs.Forbidden("Only the creator or an admin can modify this segment")
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, errs.Validation("Segment name cannot be empty")
		}
		if name != segment.Name {
			// uniqueness stays scoped to the original creator
			exists, err := s.segmentRepo.ExistsByName(ctx, segment.CreatedBy, name, segment.ID)
			if err != nil {
				return nil, errs.Internal("checking segment name", err)
			}
			if exists {
				return nil, errDuplicateSegmentName
			}
			segment.Name = name
		}
	}
	if patch.Description != nil {
		segment.Description = *patch.Description
	}
	if patch.IsShared != nil {
		segment.IsShared = *patch.IsShared
	}
	criteriaChanged := patch.Criteria != nil
	if criteriaChanged {
		segment.Criteria = *patch.Criteria
	}

	if err := s.segmentRepo.Update(ctx, segment); err != nil {
		switch {
		case errors.Is(err, repositories.ErrDuplicate):
			return nil, errDuplicateSegmentName
		case errors.Is(err, repositories.ErrNotFound):
			return nil, errs.NotFound("Segment")
		}
		return nil, errs.Internal("updating segment", err)
	}

	if criteriaChanged {
		s.recount(ctx, segment)
	}
	return s.view(segment, caller), nil
}

// Delete removes a segment. Campaigns that copied its criteria are unaffected
// and nothing checks for campaigns still referencing it.
func (s *SegmentServiceImpl) Delete(ctx context.Context, caller models.Principal, id string) error {
	segment, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !segment.EditableBy(caller) {
		return errs.Forbidden("Only the creator or an admin can delete this segment")
	}
	if err := s.segmentRepo.Delete(ctx, segment.ID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return errs.NotFound("Segment")
		}
		return errs.Internal("deleting segment", err)
	}
	slog.Info("Segment deleted", "segmentId", segment.ID.Hex(), "by", caller.ID)
	return nil
}

// RefreshStale recounts every expired segment with bounded parallelism and
// returns how many were refreshed.
func (s *SegmentServiceImpl) RefreshStale(ctx context.Context) (int, error) {
	stale, err := s.segmentRepo.FindStale(ctx, s.now().Add(-models.SegmentCountTTL))
	if err != nil {
		return 0, errs.Internal("finding stale segments", err)
	}

	var refreshed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(segmentRefreshWorkers)
	for _, segment := range stale {
		segment := segment
		g.Go(func() error {
			if s.recount(gctx, segment) {
				refreshed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(refreshed.Load()), nil
}

// recount refreshes the cached population count. Failures are logged and
// never fail the caller.
func (s *SegmentServiceImpl) recount(ctx context.Context, segment *models.AudienceSegment) bool {
	n, err := s.audience.Recount(ctx, segment.Criteria)
	if err != nil {
		slog.Warn("Segment recount failed", "segmentId", segment.ID.Hex(), "error", err)
		return false
	}
	at := s.now()
	if err := s.segmentRepo.UpdateCount(ctx, segment.ID, n, at); err != nil {
		slog.Warn("Failed to store segment count", "segmentId", segment.ID.Hex(), "error", err)
		return false
	}
	segment.UserCount = n
	segment.LastUpdated = at
	return true
}

func (s *SegmentServiceImpl) load(ctx context.Context, id string) (*models.AudienceSegment, error) {
	oid, err := parseID(id, "segment")
	if err != nil {
		return nil, err
	}
	segment, err := s.segmentRepo.FindByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, errs.NotFound("Segment")
		}
		return nil, errs.Internal("loading segment", err)
	}
	return segment, nil
}

func (s *SegmentServiceImpl) view(segment *models.AudienceSegment, caller models.Principal) *models.SegmentView {
	return &models.SegmentView{
		AudienceSegment:  segment,
		CriteriaSummary:  segment.Criteria.Summary(),
		CanEdit:          segment.EditableBy(caller),
		NeedsCountUpdate: segment.NeedsCountUpdate(s.now()),
	}
}

func parseID(id, resource string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, errs.Validation("Invalid " + resource + " id")
	}
	return oid, nil
}
