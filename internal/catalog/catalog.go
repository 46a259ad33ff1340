// Package catalog provides the static tier catalog: the mapping from a star
// price to the forecast window and feature set it purchases.
package catalog

import (
	"fmt"

	"github.com/BogdanDubenets/weather-bot-telegram/internal/types"
)

// Catalog is the authoritative definition of the purchasable tiers.
// This is the single source of truth for what each star amount buys.
type Catalog interface {
	// Tier returns the tier definition for the given ID. Unknown IDs fail
	// with validation_invalid_tier; there is no fallback tier, because a
	// tier decides what a user is charged.
	Tier(id types.TierID) (types.Tier, error)
	// Tiers returns all tiers ordered by ID, for menu rendering.
	Tiers() []types.Tier
}

// staticCatalog is a compile-time catalog backed by an in-memory map.
// It implements Catalog and is the standard implementation for production use.
type staticCatalog struct {
	tiers map[types.TierID]types.Tier
}

// tierDefaults defines the hardcoded tiers:
//
//	| Stars | Days | Features                                                    |
//	|-------|------|-------------------------------------------------------------|
//	| 1     | 2    | basic                                                       |
//	| 2     | 3    | basic, extended                                             |
//	| 3     | 4    | basic, extended, air-quality                                |
//	| 4     | 5    | basic, extended, air-quality, moon-phase                    |
//	| 5     | 6    | basic, extended, air-quality, moon-phase, health-recs       |
//
// Day counts increase strictly with the tier ID and every tier carries all
// features of the tiers below it.
var tierDefaults = map[types.TierID]types.Tier{
	1: {ID: 1, Stars: 1, Days: 2, Name: "⭐", Features: features(types.FeatureBasic)},
	2: {ID: 2, Stars: 2, Days: 3, Name: "⭐⭐", Features: features(types.FeatureBasic, types.FeatureExtended)},
	3: {ID: 3, Stars: 3, Days: 4, Name: "⭐⭐⭐", Features: features(types.FeatureBasic, types.FeatureExtended, types.FeatureAirQuality)},
	4: {ID: 4, Stars: 4, Days: 5, Name: "⭐⭐⭐⭐", Features: features(types.FeatureBasic, types.FeatureExtended, types.FeatureAirQuality, types.FeatureMoonPhase)},
	5: {ID: 5, Stars: 5, Days: 6, Name: "⭐⭐⭐⭐⭐", Features: features(types.FeatureBasic, types.FeatureExtended, types.FeatureAirQuality, types.FeatureMoonPhase, types.FeatureHealth)},
}

func features(fs ...types.Feature) types.FeatureSet {
	set := make(types.FeatureSet, len(fs))
	for _, f := range fs {
		set[f] = true
	}
	return set
}

// NewStaticCatalog returns a Catalog backed by the hardcoded tier table.
// No database or external service is required.
func NewStaticCatalog() Catalog {
	// Copy the defaults, feature sets included, so callers cannot mutate the
	// package-level table through a returned Tier.
	m := make(map[types.TierID]types.Tier, len(tierDefaults))
	for k, v := range tierDefaults {
		fs := make(types.FeatureSet, len(v.Features))
		for f := range v.Features {
			fs[f] = true
		}
		v.Features = fs
		m[k] = v
	}
	return &staticCatalog{tiers: m}
}

// Tier returns the tier definition for the given ID, or
// validation_invalid_tier for IDs outside 1..5.
func (c *staticCatalog) Tier(id types.TierID) (types.Tier, error) {
	tier, ok := c.tiers[id]
	if !ok {
		return types.Tier{}, types.NewAppError(
			types.ErrCodeValidationInvalidTier,
			fmt.Sprintf("unknown tier %d; tiers run 1 through 5", id),
			nil,
		)
	}
	return tier, nil
}

// Tiers returns all tiers ordered by ID.
func (c *staticCatalog) Tiers() []types.Tier {
	out := make([]types.Tier, 0, len(c.tiers))
	for id := types.TierID(1); id <= types.TierID(len(tierDefaults)); id++ {
		if t, ok := c.tiers[id]; ok {
			out = append(out, t)
		}
	}
	return out
}
