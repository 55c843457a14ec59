package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []FilterOp
	}{
		{"empty", "", nil},
		{"none", "  None ", nil},
		{"bare name", "grayscale", []FilterOp{{FilterGrayscale, 1}}},
		{"empty parens", "invert()", []FilterOp{{FilterInvert, 1}}},
		{"percentage", "sepia(40%)", []FilterOp{{FilterSepia, 0.4}}},
		{"plain number", "brightness(1.5)", []FilterOp{{FilterBrightness, 1.5}}},
		{"blur px", "blur(2px)", []FilterOp{{FilterBlur, 2}}},
		{"blur unitless", "blur(3)", []FilterOp{{FilterBlur, 3}}},
		{"saturation clamp", "grayscale(250%)", []FilterOp{{FilterGrayscale, 1}}},
		{"upper case", "CONTRAST(120%)", []FilterOp{{FilterContrast, 1.2}}},
		{"chain keeps order", "grayscale(50%)  blur(2px)\tsaturate(2)", []FilterOp{
			{FilterGrayscale, 0.5}, {FilterBlur, 2}, {FilterSaturate, 2},
		}},
		{"space inside parens", "blur( 4px )", []FilterOp{{FilterBlur, 4}}},
		{"largest blur", "blur(100px)", []FilterOp{{FilterBlur, MaxBlurRadius}}},
		{"largest factor", "brightness(1000%)", []FilterOp{{FilterBrightness, MaxFilterFactor}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFilter(tt.input)
			require.NoError(t, err)
			if tt.want == nil {
				assert.True(t, f.IsNone())
				return
			}
			require.Len(t, f.Ops, len(tt.want))
			for i, op := range tt.want {
				assert.Equal(t, op.Func, f.Ops[i].Func)
				assert.InDelta(t, op.Amount, f.Ops[i].Amount, 1e-9)
			}
		})
	}
}

func TestParseFilter_Rejects(t *testing.T) {
	inputs := []string{
		"blur(2px",
		"grayscale)",
		"hue-rotate(90deg)",
		"blur(50%)",
		"sepia(lots)",
		"blur(-1px)",
		"brightness(-20%)",
		"blur(inf)",
		"blur(nan)",
		"blur(infinity)",
		"sepia(nan%)",
		"contrast(-inf)",
		"blur(1e12px)",
		"blur(101px)",
		"brightness(1001%)",
		"contrast(11)",
		"saturate(1e308)",
		"grayscale blur(inf)",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := ParseFilter(in)
			assert.ErrorIs(t, err, ErrInvalidFilter)
		})
	}
}

func TestDisplayFilter_String(t *testing.T) {
	assert.Equal(t, "none", DisplayFilter{}.String())

	f, err := ParseFilter("grayscale(50%) blur(2.5px)")
	require.NoError(t, err)
	assert.Equal(t, "grayscale(0.5) blur(2.5px)", f.String())

	again, err := ParseFilter(f.String())
	require.NoError(t, err)
	assert.Equal(t, f, again)
}

func TestSplitFilterTokens(t *testing.T) {
	assert.Equal(t, []string{"a(1 2)", "b"}, splitFilterTokens("a(1 2)  b"))
	assert.Empty(t, splitFilterTokens("   "))
}
