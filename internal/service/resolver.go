package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/skin-lesion-advisor/internal/domain"
)

// Disclaimer accompanies every advisory.
const Disclaimer = "This is an AI-assisted assessment and should not replace professional medical advice. " +
	"Always consult with a qualified healthcare provider for proper diagnosis and treatment."

// Resolver combines the confidence tier and the catalog record of a prediction
type Resolver struct {
	logger  *logrus.Logger
	catalog domain.ConditionCatalog
}

// NewResolver creates a resolver backed by catalog
func NewResolver(logger *logrus.Logger, catalog domain.ConditionCatalog) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{
		logger:  logger,
		catalog: catalog,
	}
}

// Resolve produces the advisory for a prediction. Labels the catalog does not
// know resolve to a placeholder condition rather than an error; only malformed
// input is rejected.
func (r *Resolver) Resolve(result domain.PredictionResult) (domain.Advisory, error) {
	if strings.TrimSpace(result.Label) == "" {
		return domain.Advisory{}, domain.NewValidationError("prediction", "label is required", result.Label)
	}
	if math.IsNaN(result.Confidence) || math.IsInf(result.Confidence, 0) {
		return domain.Advisory{}, domain.NewValidationError("confidence", "confidence must be a finite number", result.Confidence)
	}

	condition, recognized := r.catalog.Lookup(result.Label)
	if !recognized {
		r.logger.WithFields(logrus.Fields{
			"label":      result.Label,
			"confidence": result.Confidence,
		}).Warn("Prediction label not found in condition catalog")
		condition = UnknownCondition(result.Label)
	}

	return domain.Advisory{
		Label:        result.Label,
		Confidence:   result.Confidence,
		Tier:         Classify(result.Confidence),
		Condition:    condition,
		Recognized:   recognized,
		UrgencyToken: condition.UrgencyLevel.Token(),
		UrgencyIcon:  condition.UrgencyLevel.Icon(),
		Disclaimer:   Disclaimer,
	}, nil
}

// ResolvePayload decodes a raw {"prediction", "confidence"} document and resolves it.
func (r *Resolver) ResolvePayload(raw []byte) (domain.Advisory, error) {
	result, err := DecodePrediction(raw)
	if err != nil {
		return domain.Advisory{}, err
	}
	return r.Resolve(result)
}

// UnknownCondition is the placeholder record used for labels missing from the catalog.
func UnknownCondition(label string) domain.ConditionRecord {
	return domain.ConditionRecord{
		Label:             label,
		DisplayName:       label,
		Description:       fmt.Sprintf("The label %q is not recognized by the condition catalog.", label),
		Severity:          domain.SeverityNone,
		UrgencyLevel:      domain.UrgencyNone,
		ImmediateActions:  []string{"Consult a healthcare provider for an accurate assessment"},
		Medications:       []string{"Do not start any medication without professional advice"},
		WhenToSeekHelp:    []string{"If the lesion changes, spreads or becomes painful"},
		PreventionTips:    []string{"Monitor your skin regularly for any changes"},
		EstimatedRecovery: "Unknown",
		ContagiousPeriod:  "Unknown",
	}
}

type predictionPayload struct {
	Prediction json.RawMessage `json:"prediction"`
	Confidence json.RawMessage `json:"confidence"`
}

// DecodePrediction parses a prediction document strictly: both fields must be
// present, the label a string and the confidence a JSON number.
func DecodePrediction(raw []byte) (domain.PredictionResult, error) {
	var payload predictionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.PredictionResult{}, domain.NewValidationError("payload", "payload must be a JSON object", string(raw))
	}

	if isMissing(payload.Prediction) {
		return domain.PredictionResult{}, domain.NewValidationError("prediction", "prediction is required", nil)
	}
	var label string
	if err := json.Unmarshal(payload.Prediction, &label); err != nil {
		return domain.PredictionResult{}, domain.NewValidationError("prediction", "prediction must be a string", string(payload.Prediction))
	}

	if isMissing(payload.Confidence) {
		return domain.PredictionResult{}, domain.NewValidationError("confidence", "confidence is required", nil)
	}
	var confidence float64
	if err := json.Unmarshal(payload.Confidence, &confidence); err != nil {
		return domain.PredictionResult{}, domain.NewValidationError("confidence", "confidence must be a number", string(payload.Confidence))
	}

	return domain.PredictionResult{Label: label, Confidence: confidence}, nil
}

func isMissing(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
