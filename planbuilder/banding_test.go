package planbuilder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnackBandFor(t *testing.T) {
	tests := []struct {
		remaining float64
		want      SnackBand
		contains  string
	}{
		{-400, SnackNone, "no snack needed"},
		{50, SnackNone, "no snack needed"},
		{100, SnackNone, "no snack needed"},
		{150, SnackOptional, "optional light snack"},
		{200, SnackOptional, "optional light snack"},
		{250, SnackLight, "light snack if needed"},
		{300, SnackLight, "light snack if needed"},
		{500, SnackDish, ""},
	}
	for _, tt := range tests {
		band := SnackBandFor(tt.remaining)
		assert.Equal(t, tt.want, band, "remaining %v", tt.remaining)
		if tt.contains == "" {
			assert.Empty(t, band.Message())
			continue
		}
		assert.Contains(t, strings.ToLower(band.Message()), tt.contains)
	}
}

func TestSnackBandFor_Monotonic(t *testing.T) {
	prev := SnackBandFor(-1000)
	for r := -1000.0; r <= 2000; r += 5 {
		band := SnackBandFor(r)
		assert.GreaterOrEqual(t, band, prev, "remaining %v", r)
		prev = band
	}
}

func TestPortionQualifier(t *testing.T) {
	assert.Equal(t, PortionLight, PortionQualifier(-50))
	assert.Equal(t, PortionLight, PortionQualifier(199))
	assert.Equal(t, PortionModerate, PortionQualifier(200))
	assert.Equal(t, PortionModerate, PortionQualifier(299))
	assert.Equal(t, PortionNormal, PortionQualifier(300))

	assert.Equal(t, "light portion", PortionLight.Label())
	assert.Equal(t, "moderate portion", PortionModerate.Label())
	assert.Empty(t, PortionNormal.Label())
}
