package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/skin-lesion-advisor/internal/domain"
	"github.com/skin-lesion-advisor/internal/middleware"
	"github.com/skin-lesion-advisor/internal/results"
	"github.com/skin-lesion-advisor/internal/service"
)

// ClassifyRequest is the body of POST /api/v1/classify
type ClassifyRequest struct {
	Confidence *float64 `json:"confidence" binding:"required"`
}

// SummarizeRequest is the body of POST /api/v1/statistics/summarize
type SummarizeRequest struct {
	Bucketing domain.Bucketing       `json:"bucketing"`
	Results   []service.StoredRecord `json:"results"`
}

// ScanResponse is returned by POST /api/v1/scan
type ScanResponse struct {
	Advisory domain.Advisory `json:"advisory"`
	Saved    bool            `json:"saved"`
	ResultID int64           `json:"resultId,omitempty"`
}

// ListResultsResponse is one page of stored results
type ListResultsResponse struct {
	Results    []*results.Record `json:"results"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"totalPages"`
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "healthy"
	code := http.StatusOK
	checks := gin.H{"catalog": fmt.Sprintf("%d conditions", s.deps.Catalog.Len())}

	if db := s.deps.Database; db != nil {
		ctx := c.Request.Context()
		degrade := func(check string, value interface{}) {
			status = "degraded"
			code = http.StatusServiceUnavailable
			checks[check] = value
		}

		if err := db.Health(ctx); err != nil {
			degrade("database", err.Error())
		} else {
			checks["database"] = "ok"
			checks["pool"] = db.PoolStats()

			// A dirty schema means a migration failed halfway
			version, dirty, err := db.SchemaVersion(ctx)
			switch {
			case err != nil:
				degrade("schema", err.Error())
			case dirty:
				degrade("schema", gin.H{"version": version, "dirty": true})
			default:
				checks["schema"] = gin.H{"version": version, "dirty": false}
			}
		}
	}

	c.JSON(code, gin.H{
		"status":    status,
		"version":   Version,
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListConditions(c *gin.Context) {
	conditions := s.deps.Catalog.Records()
	c.JSON(http.StatusOK, gin.H{
		"conditions": conditions,
		"count":      len(conditions),
	})
}

func (s *Server) handleGetCondition(c *gin.Context) {
	label := c.Param("label")
	record, ok := s.deps.Catalog.Lookup(label)
	if !ok {
		abortWithError(c, http.StatusNotFound, domain.ErrCodeNotFound, "Condition not found", label)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleClassify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid request body", err.Error())
		return
	}
	c.JSON(http.StatusOK, service.Classify(*req.Confidence))
}

func (s *Server) handleResolve(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Unable to read request body", err.Error())
		return
	}

	advisory, err := s.deps.Resolver.ResolvePayload(body)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, advisory)
}

func (s *Server) handleSummarize(c *gin.Context) {
	var req SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid request body", err.Error())
		return
	}
	if req.Bucketing == "" {
		req.Bucketing = domain.BucketDaily
	}

	summary, err := service.SummarizeRecords(req.Results, req.Bucketing)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) handleScan(c *gin.Context) {
	maxBytes := s.configManager.GetServerConfig().MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, domain.ErrCodeInvalidInput, "Image is too large", "")
			return
		}
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "An image file is required", err.Error())
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Unable to read image", err.Error())
		return
	}
	defer file.Close()

	prediction, err := s.deps.Inference.Predict(c.Request.Context(), fileHeader.Filename, file)
	if err != nil {
		s.logger.WithError(err).WithField("correlation_id", c.GetString(middleware.CorrelationIDKey)).
			Warn("Inference request failed")
		if errors.Is(err, domain.ErrInferenceUnavailable) {
			abortWithError(c, http.StatusServiceUnavailable, domain.ErrCodeInference, "Prediction service is unavailable", "")
			return
		}
		abortWithError(c, http.StatusBadGateway, domain.ErrCodeInference, "Prediction failed", "")
		return
	}

	advisory, err := s.deps.Resolver.Resolve(prediction)
	if err != nil {
		abortWithError(c, http.StatusBadGateway, domain.ErrCodeInference, "Prediction service returned an invalid result", err.Error())
		return
	}

	resp := ScanResponse{Advisory: advisory}
	if user := GetAuthUser(c); user != nil {
		record := &results.Record{
			Prediction: prediction.Label,
			Confidence: prediction.Confidence,
			UserID:     user.ID,
			ImageName:  filepath.Base(fileHeader.Filename),
		}
		if err := s.deps.Statistics.Record(c.Request.Context(), record); err != nil {
			// the advisory is still useful without the history entry
			s.logger.WithError(err).WithField("user_id", user.ID).Error("Failed to save scan result")
		} else {
			resp.Saved = true
			resp.ResultID = record.ID
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSaveResult(c *gin.Context) {
	user := GetAuthUser(c)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Unable to read request body", err.Error())
		return
	}

	prediction, err := service.DecodePrediction(body)
	if err != nil {
		s.respondError(c, err)
		return
	}

	record := &results.Record{
		Prediction: prediction.Label,
		Confidence: prediction.Confidence,
		UserID:     user.ID,
	}
	if err := s.deps.Statistics.Record(c.Request.Context(), record); err != nil {
		s.respondError(c, err)
		return
	}

	s.logger.WithFields(logrus.Fields{
		"result_id":  record.ID,
		"user_id":    user.ID,
		"prediction": record.Prediction,
	}).Info("Result saved")

	c.JSON(http.StatusCreated, record)
}

// pageParams reads page and limit, bounded by the reporting configuration
func (s *Server) pageParams(c *gin.Context) (int, int) {
	cfg := s.configManager.GetConfig().Reporting

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		limit = cfg.DefaultLimit
	}
	if cfg.MaxLimit > 0 && limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}
	return page, limit
}

func (s *Server) handleListResults(c *gin.Context) {
	user := GetAuthUser(c)
	page, limit := s.pageParams(c)

	filter := results.Filter{
		Prediction: c.Query("prediction"),
		Page:       page,
		Limit:      limit,
	}
	if user.Role != s.configManager.GetConfig().Auth.AdminRole {
		filter.UserID = user.ID
	} else {
		filter.UserID = c.Query("userId")
	}
	filter = filter.Normalize()

	records, total, err := s.deps.Store.List(c.Request.Context(), filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if records == nil {
		records = []*results.Record{}
	}

	c.JSON(http.StatusOK, ListResultsResponse{
		Results:    records,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
	})
}

func (s *Server) handleResultStatistics(c *gin.Context) {
	bucketing := domain.Bucketing(c.DefaultQuery("bucketing", string(domain.BucketDaily)))

	report, err := s.deps.Statistics.Report(c.Request.Context(), bucketing)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handlePredictionDetails(c *gin.Context) {
	page, limit := s.pageParams(c)

	details, err := s.deps.Statistics.PredictionDetails(c.Request.Context(), c.Param("label"), page, limit)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (s *Server) handleExportResults(c *gin.Context) {
	filename := fmt.Sprintf("results-%s.json", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Type", "application/json")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)

	if err := s.deps.Store.ExportJSON(c.Request.Context(), c.Writer); err != nil {
		// headers are already on the wire
		s.logger.WithError(err).Error("Results export failed")
	}
}

func (s *Server) handleDeleteResult(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortWithError(c, http.StatusBadRequest, domain.ErrCodeInvalidInput, "Invalid result id", c.Param("id"))
		return
	}

	if err := s.deps.Store.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	if err := s.deps.Statistics.Invalidate(c.Request.Context()); err != nil {
		s.logger.WithError(err).WithField("result_id", id).Warn("Statistics cache not invalidated after delete")
	}

	c.Status(http.StatusNoContent)
}
