package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		input string
		want  QualityTier
	}{
		{"high", TierHigh},
		{" FHD ", TierHigh},
		{"1080p", TierHigh},
		{"1920x1080", TierHigh},
		{"standard", TierStandard},
		{"HD", TierStandard},
		{"720p", TierStandard},
		{"1280x720", TierStandard},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTier(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	for _, bad := range []string{"", "4k", "low"} {
		_, err := ParseTier(bad)
		assert.ErrorIs(t, err, ErrInvalidTier, bad)
	}
}

func TestQualityTier_ResolutionLabelToggle(t *testing.T) {
	assert.Equal(t, Resolution{Width: 1920, Height: 1080}, TierHigh.Resolution())
	assert.Equal(t, Resolution{Width: 1280, Height: 720}, TierStandard.Resolution())
	assert.Equal(t, "1920x1080", TierHigh.Resolution().String())

	assert.Equal(t, "FHD", TierHigh.Label())
	assert.Equal(t, "HD", TierStandard.Label())

	assert.Equal(t, TierStandard, TierHigh.Toggle())
	assert.Equal(t, TierHigh, TierStandard.Toggle())
	assert.Equal(t, TierHigh, TierHigh.Toggle().Toggle())

	assert.True(t, TierHigh.Valid())
	assert.False(t, QualityTier("ultra").Valid())
}

func TestConstraints_Resolution(t *testing.T) {
	c := Constraints{IdealWidth: 1280, IdealHeight: 720, FacingMode: FacingEnvironment, Audio: true}
	assert.Equal(t, TierStandard.Resolution(), c.Resolution())
}
