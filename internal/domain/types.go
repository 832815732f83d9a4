// Package domain contains the core entities for skin-lesion prediction advisories:
// prediction results produced by the image classifier, clinical condition records,
// confidence tiers and the statistics reshaped for reporting views.
package domain

import (
	"errors"
	"time"
)

// Severity is the clinical severity attached to a catalog condition.
type Severity string

const (
	SeverityNone   Severity = "None"
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// UrgencyLevel drives how strongly the presentation layer escalates an advisory.
// It is kept separate from Severity because the source data names them differently.
type UrgencyLevel string

const (
	UrgencyNone   UrgencyLevel = "none"
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
)

// Tier is the discrete confidence band of a prediction.
type Tier string

const (
	TierVeryLow  Tier = "VeryLow"
	TierLow      Tier = "Low"
	TierMedium   Tier = "Medium"
	TierHigh     Tier = "High"
	TierVeryHigh Tier = "VeryHigh"
)

// Bucketing selects the width of the time buckets in a StatisticsSummary.
type Bucketing string

const (
	BucketDaily   Bucketing = "daily"
	BucketWeekly  Bucketing = "weekly"
	BucketMonthly Bucketing = "monthly"
	BucketYearly  Bucketing = "yearly"
)

// Sentinel errors shared across packages
var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidBucketing     = errors.New("invalid bucketing")
	ErrInferenceUnavailable = errors.New("inference service unavailable")
)

// IsValid reports whether the severity is one of the known values.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityNone, SeverityLow, SeverityMedium, SeverityHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// MatchingUrgency returns the urgency level a condition of this severity must carry.
func (s Severity) MatchingUrgency() UrgencyLevel {
	switch s {
	case SeverityLow:
		return UrgencyLow
	case SeverityMedium:
		return UrgencyMedium
	case SeverityHigh:
		return UrgencyHigh
	default:
		return UrgencyNone
	}
}

// IsValid reports whether the urgency level is one of the known values.
func (u UrgencyLevel) IsValid() bool {
	switch u {
	case UrgencyNone, UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the urgency level.
func (u UrgencyLevel) String() string {
	return string(u)
}

// Token returns the semantic color identifier for the urgency level.
// The presentation layer maps tokens to concrete colors.
func (u UrgencyLevel) Token() string {
	switch u {
	case UrgencyHigh:
		return "urgency-high"
	case UrgencyMedium:
		return "urgency-medium"
	case UrgencyLow:
		return "urgency-low"
	case UrgencyNone:
		return "urgency-none"
	default:
		return "urgency-unknown"
	}
}

// Icon returns the icon identifier shown next to the urgency badge.
func (u UrgencyLevel) Icon() string {
	switch u {
	case UrgencyHigh:
		return "alert-circle"
	case UrgencyMedium:
		return "warning"
	case UrgencyLow:
		return "information-circle"
	case UrgencyNone:
		return "checkmark-circle"
	default:
		return "help-circle"
	}
}

// RequiresMedicalAttention reports whether the urgency calls for a clinician.
func (u UrgencyLevel) RequiresMedicalAttention() bool {
	return u == UrgencyHigh
}

// IsValid reports whether the tier is one of the five bands.
func (t Tier) IsValid() bool {
	switch t {
	case TierVeryLow, TierLow, TierMedium, TierHigh, TierVeryHigh:
		return true
	default:
		return false
	}
}

// String returns the string representation of the tier.
func (t Tier) String() string {
	return string(t)
}

// IsValid reports whether the bucketing is supported.
func (b Bucketing) IsValid() bool {
	switch b {
	case BucketDaily, BucketWeekly, BucketMonthly, BucketYearly:
		return true
	default:
		return false
	}
}

// String returns the string representation of the bucketing.
func (b Bucketing) String() string {
	return string(b)
}

// AllBucketings lists every supported bucketing in ascending width.
func AllBucketings() []Bucketing {
	return []Bucketing{BucketDaily, BucketWeekly, BucketMonthly, BucketYearly}
}

// PredictionResult is a single classifier output. Confidence is a percentage (0-100).
// CreatedAt and UserID are only set once the result has been persisted.
type PredictionResult struct {
	Label      string    `json:"prediction"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
	UserID     string    `json:"userId,omitempty"`
}

// ConditionRecord is a catalog entry describing one condition the classifier can emit.
type ConditionRecord struct {
	Label             string       `json:"label" yaml:"label"`
	DisplayName       string       `json:"displayName" yaml:"display_name"`
	Description       string       `json:"description" yaml:"description"`
	Severity          Severity     `json:"severity" yaml:"severity"`
	UrgencyLevel      UrgencyLevel `json:"urgencyLevel" yaml:"urgency_level"`
	ImmediateActions  []string     `json:"immediateActions" yaml:"immediate_actions"`
	Medications       []string     `json:"medications" yaml:"medications"`
	WhenToSeekHelp    []string     `json:"whenToSeekHelp" yaml:"when_to_seek_help"`
	PreventionTips    []string     `json:"preventionTips" yaml:"prevention_tips"`
	EstimatedRecovery string       `json:"estimatedRecovery" yaml:"estimated_recovery"`
	ContagiousPeriod  string       `json:"contagiousPeriod" yaml:"contagious_period"`
}

// Clone returns a deep copy so callers can never reach the catalog's slices.
func (c ConditionRecord) Clone() ConditionRecord {
	out := c
	out.ImmediateActions = cloneStrings(c.ImmediateActions)
	out.Medications = cloneStrings(c.Medications)
	out.WhenToSeekHelp = cloneStrings(c.WhenToSeekHelp)
	out.PreventionTips = cloneStrings(c.PreventionTips)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// ConfidenceTier is the banded view of a confidence value.
type ConfidenceTier struct {
	Tier       Tier   `json:"tier"`
	ColorToken string `json:"colorToken"`
	// Segments is the number of filled cells in a five-cell confidence bar.
	Segments int `json:"segments"`
}

// Advisory is the display-ready bundle for one prediction.
type Advisory struct {
	Label        string          `json:"label"`
	Confidence   float64         `json:"confidence"`
	Tier         ConfidenceTier  `json:"tier"`
	Condition    ConditionRecord `json:"condition"`
	Recognized   bool            `json:"recognized"`
	UrgencyToken string          `json:"urgencyToken"`
	UrgencyIcon  string          `json:"urgencyIcon"`
	Disclaimer   string          `json:"disclaimer"`
}

// LabelBreakdown holds population statistics for one predicted label.
type LabelBreakdown struct {
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avgConfidence"`
	MinConfidence float64 `json:"minConfidence"`
	MaxConfidence float64 `json:"maxConfidence"`
}

// TimeBucket is one entry of the trend series.
type TimeBucket struct {
	BucketKey     string  `json:"bucketKey"`
	Count         int     `json:"count"`
	AvgConfidence float64 `json:"avgConfidence"`
}

// ConfidenceStats summarizes confidence across every result. All fields are
// zero when there are no results.
type ConfidenceStats struct {
	AvgConfidence float64 `json:"avgConfidence"`
	MinConfidence float64 `json:"minConfidence"`
	MaxConfidence float64 `json:"maxConfidence"`
}

// StatisticsSummary is derived from a sequence of prediction results.
// HighConfidenceShare is the fraction in [0, 1] of results whose confidence
// falls in the High or VeryHigh tier.
type StatisticsSummary struct {
	Bucketing           Bucketing                 `json:"bucketing"`
	TotalCount          int                       `json:"totalCount"`
	Confidence          ConfidenceStats           `json:"confidence"`
	HighConfidenceShare float64                   `json:"highConfidenceShare"`
	BreakdownByLabel    map[string]LabelBreakdown `json:"breakdownByLabel"`
	TimeBuckets         []TimeBucket              `json:"timeBuckets"`
}
