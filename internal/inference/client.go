// Package inference talks to the remote image classification endpoint.
package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/skin-lesion-advisor/internal/domain"
)

const (
	predictPath   = "/predict"
	formFieldName = "file"
	maxBodyBytes  = 1 << 20
)

// Client posts lesion images to the prediction endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *logrus.Logger
}

// NewClient creates an inference client from configuration.
func NewClient(cfg domain.InferenceConfig, logger *logrus.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.BreakerRequests == 0 {
		cfg.BreakerRequests = 1
	}
	if cfg.BreakerThreshold <= 0 {
		cfg.BreakerThreshold = 0.6
	}

	settings := gobreaker.Settings{
		Name:        "inference",
		MaxRequests: cfg.BreakerRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.BreakerThreshold
		},
		// A malformed payload means the service answered; it is not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || domain.IsValidationError(err)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from.String(),
				"to_state":        to.String(),
			}).Warn("Circuit breaker state changed")
		},
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst),
		breaker:    gobreaker.NewCircuitBreaker(settings),
		logger:     logger,
	}
}

// Predict uploads the image and returns the classifier's result.
func (c *Client) Predict(ctx context.Context, filename string, image io.Reader) (domain.PredictionResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.PredictionResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	body, contentType, err := encodeImage(filename, image)
	if err != nil {
		return domain.PredictionResult{}, err
	}

	start := time.Now()
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, body, contentType)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.PredictionResult{}, fmt.Errorf("%w: %v", domain.ErrInferenceUnavailable, err)
		}
		return domain.PredictionResult{}, err
	}

	result := out.(domain.PredictionResult)
	c.logger.WithFields(logrus.Fields{
		"filename":   filename,
		"prediction": result.Label,
		"confidence": result.Confidence,
		"duration":   time.Since(start),
	}).Info("Image classified")

	return result, nil
}

func (c *Client) post(ctx context.Context, body []byte, contentType string) (domain.PredictionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+predictPath, bytes.NewReader(body))
	if err != nil {
		return domain.PredictionResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PredictionResult{}, fmt.Errorf("calling inference service: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.PredictionResult{}, fmt.Errorf("reading inference response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.PredictionResult{}, fmt.Errorf("inference service returned status %d: %s", resp.StatusCode, truncate(string(payload)))
	}

	return ParsePrediction(payload)
}

// encodeImage wraps the image in a multipart form under the "file" field.
func encodeImage(filename string, image io.Reader) ([]byte, string, error) {
	if filename == "" {
		filename = "photo.jpg"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, formFieldName, escapeQuotes(filepath.Base(filename))))
	header.Set("Content-Type", imageContentType(filename))

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("creating form part: %w", err)
	}
	if _, err := io.Copy(part, image); err != nil {
		return nil, "", fmt.Errorf("reading image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("closing form: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

func imageContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct := mime.TypeByExtension(ext); strings.HasPrefix(ct, "image/") {
		return ct
	}
	if ext != "" {
		return "image/" + strings.TrimPrefix(ext, ".")
	}
	return "image/jpeg"
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
