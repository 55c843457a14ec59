package services

import (
	"camcapture/internal/core/domain"
)

// QualityService maps tiers to acquisition constraints and owns the
// fallback policy: HIGH may drop to STANDARD once, STANDARD has nowhere to go.
type QualityService struct {
	facing    domain.FacingMode
	audio     bool
	fallbacks map[domain.QualityTier]domain.QualityTier
}

func NewQualityService(facing domain.FacingMode) *QualityService {
	if facing == "" {
		facing = domain.FacingEnvironment
	}
	return &QualityService{
		facing: facing,
		audio:  true,
		fallbacks: map[domain.QualityTier]domain.QualityTier{
			domain.TierHigh: domain.TierStandard,
		},
	}
}

func (qs *QualityService) Constraints(tier domain.QualityTier) domain.Constraints {
	res := tier.Resolution()
	return domain.Constraints{
		IdealWidth:  res.Width,
		IdealHeight: res.Height,
		FacingMode:  qs.facing,
		Audio:       qs.audio,
	}
}

// Fallback returns the tier to retry with after tier failed to acquire.
func (qs *QualityService) Fallback(tier domain.QualityTier) (domain.QualityTier, bool) {
	next, ok := qs.fallbacks[tier]
	return next, ok
}
