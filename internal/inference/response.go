package inference

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/skin-lesion-advisor/internal/domain"
)

type predictResponse struct {
	Prediction json.RawMessage `json:"prediction"`
	Confidence json.RawMessage `json:"confidence"`
}

// ParsePrediction decodes the body returned by the prediction endpoint.
func ParsePrediction(body []byte) (domain.PredictionResult, error) {
	var resp predictResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.PredictionResult{}, domain.NewValidationError("response", "response is not a JSON object", truncate(string(body)))
	}

	var label string
	if len(resp.Prediction) == 0 || json.Unmarshal(resp.Prediction, &label) != nil || strings.TrimSpace(label) == "" {
		return domain.PredictionResult{}, domain.NewValidationError("prediction", "prediction must be a non-empty string", string(resp.Prediction))
	}

	confidence, err := ParseConfidence(resp.Confidence)
	if err != nil {
		return domain.PredictionResult{}, err
	}

	return domain.PredictionResult{Label: label, Confidence: confidence}, nil
}

// ParseConfidence accepts a JSON number or a percentage string such as "87.5%".
// The value must already be on the 0-100 scale; fractions are not rescaled.
func ParseConfidence(raw json.RawMessage) (float64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, domain.NewValidationError("confidence", "confidence is required", nil)
	}

	var value float64
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, domain.NewValidationError("confidence", "confidence is not a valid string", string(raw))
		}
		s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, domain.NewValidationError("confidence", "confidence is not numeric", s)
		}
		value = v
	default:
		if err := json.Unmarshal(raw, &value); err != nil {
			return 0, domain.NewValidationError("confidence", "confidence must be a number or percentage string", string(raw))
		}
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, domain.NewValidationError("confidence", "confidence must be finite", value)
	}
	if value < 0 || value > 100 {
		return 0, domain.NewValidationError("confidence", "confidence must be between 0 and 100", value)
	}
	return value, nil
}

func truncate(s string) string {
	const max = 200
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
