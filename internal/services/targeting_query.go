package services

import (
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
	"github.com/lfgraphics/khadimemillat-sub007/internal/utils"
)

const (
	// ActiveWindow is how recent a login must be for the active bucket.
	ActiveWindow = 30 * 24 * time.Hour
	// NewAccountWindow is how recent an account must be for the new bucket.
	NewAccountWindow = 7 * 24 * time.Hour
)

// Queried user fields.
const (
	fieldRole      = "role"
	fieldCity      = "address.city"
	fieldState     = "address.state"
	fieldLastLogin = "lastLogin"
	fieldCreatedAt = "createdAt"
)

// BuildAudienceFilter turns criteria into a users collection filter. The
// criteria is validated first and no filter is returned when it is malformed.
func BuildAudienceFilter(criteria models.TargetingCriteria, now time.Time) (bson.M, error) {
	if err := utils.ValidateStruct(criteria); err != nil {
		return nil, err
	}

	var roleClause, locationClause bson.M
	if roles := criteria.DistinctRoles(); len(roles) > 0 && !criteria.IncludesEveryone() {
		roleClause = bson.M{fieldRole: bson.M{"$in": roles}}
	}
	if len(criteria.Locations) > 0 {
		patterns := make(bson.A, 0, len(criteria.Locations))
		for _, loc := range criteria.Locations {
			patterns = append(patterns, primitive.Regex{Pattern: "^" + regexp.QuoteMeta(loc) + "$", Options: "i"})
		}
		locationClause = bson.M{"$or": bson.A{
			bson.M{fieldCity: bson.M{"$in": patterns}},
			bson.M{fieldState: bson.M{"$in": patterns}},
		}}
	}

	var clauses []bson.M
	if roleClause != nil && locationClause != nil && criteria.EffectiveLogic() == models.LogicOr {
		clauses = append(clauses, bson.M{"$or": bson.A{roleClause, locationClause}})
	} else {
		if roleClause != nil {
			clauses = append(clauses, roleClause)
		}
		if locationClause != nil {
			clauses = append(clauses, locationClause)
		}
	}

	if activity := activityClause(criteria.ActivityStatus, now); activity != nil {
		clauses = append(clauses, activity)
	}

	if len(criteria.CustomFilters) > 0 {
		custom := bson.M{}
		for k, v := range criteria.CustomFilters {
			custom[k] = v
		}
		clauses = append(clauses, custom)
	}

	switch len(clauses) {
	case 0:
		return bson.M{}, nil
	case 1:
		return clauses[0], nil
	default:
		and := make(bson.A, len(clauses))
		for i, c := range clauses {
			and[i] = c
		}
		return bson.M{"$and": and}, nil
	}
}

func activityClause(status models.ActivityStatus, now time.Time) bson.M {
	switch status {
	case models.ActivityActive:
		return bson.M{fieldLastLogin: bson.M{"$gte": now.Add(-ActiveWindow)}}
	case models.ActivityInactive:
		// nil matches both a missing and a null lastLogin
		return bson.M{"$or": bson.A{
			bson.M{fieldLastLogin: bson.M{"$lt": now.Add(-ActiveWindow)}},
			bson.M{fieldLastLogin: nil},
		}}
	case models.ActivityNew:
		return bson.M{fieldCreatedAt: bson.M{"$gte": now.Add(-NewAccountWindow)}}
	default:
		return nil
	}
}
