package service

import (
	"math"

	"github.com/skin-lesion-advisor/internal/domain"
)

// Lower bounds of the confidence bands, in percent.
const (
	veryHighThreshold = 90.0
	highThreshold     = 70.0
	mediumThreshold   = 50.0
	lowThreshold      = 30.0
)

// confidenceBarSegments is the number of cells in the confidence bar.
const confidenceBarSegments = 5

// ClampConfidence pins a confidence percentage into [0, 100]. NaN maps to 0.
func ClampConfidence(confidence float64) float64 {
	switch {
	case math.IsNaN(confidence), confidence < 0:
		return 0
	case confidence > 100:
		return 100
	default:
		return confidence
	}
}

// Classify maps a confidence percentage to its band. Out-of-range input is
// clamped first, so Classify never fails.
func Classify(confidence float64) domain.ConfidenceTier {
	c := ClampConfidence(confidence)

	var tier domain.Tier
	switch {
	case c >= veryHighThreshold:
		tier = domain.TierVeryHigh
	case c >= highThreshold:
		tier = domain.TierHigh
	case c >= mediumThreshold:
		tier = domain.TierMedium
	case c >= lowThreshold:
		tier = domain.TierLow
	default:
		tier = domain.TierVeryLow
	}

	return domain.ConfidenceTier{
		Tier:       tier,
		ColorToken: ColorToken(tier),
		Segments:   int(math.Round(c / 100 * confidenceBarSegments)),
	}
}

// ColorToken returns the semantic color identifier of a tier.
func ColorToken(tier domain.Tier) string {
	switch tier {
	case domain.TierVeryHigh:
		return "confidence-very-high"
	case domain.TierHigh:
		return "confidence-high"
	case domain.TierMedium:
		return "confidence-medium"
	case domain.TierLow:
		return "confidence-low"
	default:
		return "confidence-very-low"
	}
}
