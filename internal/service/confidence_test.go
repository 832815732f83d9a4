package service

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skin-lesion-advisor/internal/domain"
)

func TestClassify_Bands(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		tier       domain.Tier
		color      string
	}{
		{"ceiling", 100, domain.TierVeryHigh, "confidence-very-high"},
		{"very high boundary", 90, domain.TierVeryHigh, "confidence-very-high"},
		{"just below very high", 89.999, domain.TierHigh, "confidence-high"},
		{"high boundary", 70, domain.TierHigh, "confidence-high"},
		{"just below high", 69.999, domain.TierMedium, "confidence-medium"},
		{"medium boundary", 50, domain.TierMedium, "confidence-medium"},
		{"just below medium", 49.999, domain.TierLow, "confidence-low"},
		{"low boundary", 30, domain.TierLow, "confidence-low"},
		{"just below low", 29.999, domain.TierVeryLow, "confidence-very-low"},
		{"floor", 0, domain.TierVeryLow, "confidence-very-low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.confidence)
			assert.Equal(t, tt.tier, got.Tier)
			assert.Equal(t, tt.color, got.ColorToken)
		})
	}
}

func TestClassify_ClampsOutOfRange(t *testing.T) {
	assert.Equal(t, Classify(0), Classify(-5))
	assert.Equal(t, Classify(100), Classify(150))
	assert.Equal(t, Classify(0), Classify(math.Inf(-1)))
	assert.Equal(t, Classify(100), Classify(math.Inf(1)))
	assert.Equal(t, domain.TierVeryLow, Classify(math.NaN()).Tier)
}

func TestClassify_Segments(t *testing.T) {
	tests := []struct {
		confidence float64
		segments   int
	}{
		{0, 0},
		{9.9, 0},
		{10, 1},
		{45, 2},
		{50, 3},
		{87.5, 4},
		{95, 5},
		{100, 5},
		{250, 5},
		{-20, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.segments, Classify(tt.confidence).Segments, "confidence %v", tt.confidence)
	}
}

func TestClassify_Monotonic(t *testing.T) {
	rank := map[domain.Tier]int{
		domain.TierVeryLow:  0,
		domain.TierLow:      1,
		domain.TierMedium:   2,
		domain.TierHigh:     3,
		domain.TierVeryHigh: 4,
	}

	prev := rank[Classify(-10).Tier]
	for c := -10.0; c <= 110; c += 0.25 {
		cur := rank[Classify(c).Tier]
		assert.GreaterOrEqual(t, cur, prev, "tier decreased at %v", c)
		prev = cur
	}
}

func TestClampConfidence(t *testing.T) {
	assert.Equal(t, 0.0, ClampConfidence(-1))
	assert.Equal(t, 42.5, ClampConfidence(42.5))
	assert.Equal(t, 100.0, ClampConfidence(101))
	assert.Equal(t, 0.0, ClampConfidence(math.NaN()))
}
