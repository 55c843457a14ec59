package domain

import (
	"fmt"
	"strings"
)

type QualityTier string

const (
	TierHigh     QualityTier = "high"
	TierStandard QualityTier = "standard"
)

type FacingMode string

const (
	FacingEnvironment FacingMode = "environment"
	FacingUser        FacingMode = "user"
)

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Constraints is the request handed to stream acquisition. Width and height
// are ideal values: a backend may deliver something close to them.
type Constraints struct {
	IdealWidth  int        `json:"ideal_width"`
	IdealHeight int        `json:"ideal_height"`
	FacingMode  FacingMode `json:"facing_mode"`
	Audio       bool       `json:"audio"`
}

func (c Constraints) Resolution() Resolution {
	return Resolution{Width: c.IdealWidth, Height: c.IdealHeight}
}

// Resolution returns the ideal capture size of the tier.
func (t QualityTier) Resolution() Resolution {
	switch t {
	case TierHigh:
		return Resolution{Width: 1920, Height: 1080}
	default:
		return Resolution{Width: 1280, Height: 720}
	}
}

// Label is the short name shown on the resolution toggle.
func (t QualityTier) Label() string {
	if t == TierHigh {
		return "FHD"
	}
	return "HD"
}

// Toggle flips between the two tiers.
func (t QualityTier) Toggle() QualityTier {
	if t == TierHigh {
		return TierStandard
	}
	return TierHigh
}

func (t QualityTier) Valid() bool {
	return t == TierHigh || t == TierStandard
}

// ParseTier accepts the tier names as well as the FHD/HD labels and the
// 1080p/720p shorthands.
func ParseTier(s string) (QualityTier, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "fhd", "1080p", "1920x1080":
		return TierHigh, nil
	case "standard", "hd", "720p", "1280x720":
		return TierStandard, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTier, s)
}
