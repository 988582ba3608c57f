package services

import (
	"math"

	"github.com/lfgraphics/khadimemillat-sub007/internal/config"
	"github.com/lfgraphics/khadimemillat-sub007/internal/models"
)

// AudienceEstimator guesses a campaign's audience size without querying users.
// Start uses it so that a campaign can be launched without a population scan;
// the delivery worker later replaces the guess with a real count.
type AudienceEstimator interface {
	Estimate(criteria models.TargetingCriteria) int64
}

// WeightedEstimator is a heuristic: a per-role weight table discounted by a
// location factor and an activity bucket factor. It is not a population count.
type WeightedEstimator struct {
	roleWeights     map[string]int
	locationFactor  float64
	activityFactors map[string]float64
}

// NewWeightedEstimator builds the estimator from configuration, falling back
// to the stock weight table when none is configured.
func NewWeightedEstimator(cfg config.EstimatorConfig) *WeightedEstimator {
	weights := cfg.RoleWeights
	if len(weights) == 0 {
		weights = config.DefaultRoleWeights()
	}
	locationFactor := cfg.LocationFactor
	if locationFactor <= 0 {
		locationFactor = 0.5
	}
	activity := cfg.ActivityFactors
	if len(activity) == 0 {
		activity = map[string]float64{"active": 0.7, "inactive": 0.2, "new": 0.1}
	}
	return &WeightedEstimator{
		roleWeights:     weights,
		locationFactor:  locationFactor,
		activityFactors: activity,
	}
}

// Estimate returns the heuristic audience size for criteria
func (e *WeightedEstimator) Estimate(criteria models.TargetingCriteria) int64 {
	var base float64
	if criteria.IncludesEveryone() {
		base = float64(e.roleWeights[string(models.RoleEveryone)])
	} else {
		for _, role := range criteria.DistinctRoles() {
			base += float64(e.roleWeights[string(role)])
		}
	}

	if len(criteria.Locations) > 0 {
		base *= e.locationFactor
	}
	if criteria.ActivityStatus != "" {
		if factor, ok := e.activityFactors[string(criteria.ActivityStatus)]; ok {
			base *= factor
		}
	}
	return int64(math.Round(base))
}
