package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/domain/analytics"
	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/domain/events"
	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/execution"
	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/infrastructure/logging"
)

// Version is the reported service version.
const Version = "0.3.0"

// errBadRequest marks failures caused by the request payload.
var errBadRequest = errors.New("bad request")

// Handlers contains all HTTP handlers.
type Handlers struct {
	logger    *logging.Logger
	validator *events.Validator
	started   time.Time
}

// NewHandlers creates a new handler set.
func NewHandlers(logger *logging.Logger, validator *events.Validator) *Handlers {
	return &Handlers{
		logger:    logger,
		validator: validator,
		started:   time.Now(),
	}
}

// Health handles liveness checks. Operational path: no execution context is
// required and no hierarchy is injected.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "analytics-hub",
		"version": Version,
		"uptime":  time.Since(h.started).String(),
	})
}

// Ready handles readiness checks. Operational path.
func (h *Handlers) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// PipelineMetadata describes one ingestion pipeline. The trailing /metadata
// segment makes this an operational path.
func (h *Handlers) PipelineMetadata(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pipeline_id":    c.Param("id"),
		"schema_version": events.SchemaVersion,
		"operations":     []string{"ingest", "anomalies", "correlation", "predict", "summary"},
	})
}

// IngestEvents validates and accepts a batch of analytics events.
func (h *Handlers) IngestEvents(c *gin.Context) {
	batch, err := execution.WithProcessingSpan(c.Request.Context(), "event-ingestion",
		func(ctx context.Context) (*events.Batch, error) {
			raw, err := io.ReadAll(c.Request.Body)
			if err != nil {
				return nil, fmt.Errorf("%w: %s", errBadRequest, err)
			}
			return h.validator.ValidateBatch(raw)
		},
		func(batch *events.Batch) *execution.Artifact {
			return &execution.Artifact{
				ArtifactType: "ingest-summary",
				Data: gin.H{
					"events":    len(batch.Events),
					"by_module": batch.Summarize(),
				},
			}
		})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success":  true,
		"accepted": len(batch.Events),
	})
}

type anomalyRequest struct {
	Series    []float64 `json:"series"`
	Threshold float64   `json:"threshold"`
}

// DetectAnomalies flags outliers in a metric series.
func (h *Handlers) DetectAnomalies(c *gin.Context) {
	report, err := execution.WithProcessingSpan(c.Request.Context(), "anomaly-detection",
		func(ctx context.Context) (*analytics.AnomalyReport, error) {
			var req anomalyRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				return nil, fmt.Errorf("%w: %s", errBadRequest, err)
			}
			return analytics.DetectAnomalies(req.Series, req.Threshold)
		},
		func(report *analytics.AnomalyReport) *execution.Artifact {
			return &execution.Artifact{
				ArtifactType: "anomaly-report",
				Data: gin.H{
					"points":    report.Points,
					"anomalies": len(report.Anomalies),
				},
			}
		})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}

type correlationRequest struct {
	SeriesA []float64 `json:"series_a"`
	SeriesB []float64 `json:"series_b"`
}

// Correlate computes the Pearson correlation between two series.
func (h *Handlers) Correlate(c *gin.Context) {
	coefficient, err := execution.WithProcessingSpan(c.Request.Context(), "correlation-analysis",
		func(ctx context.Context) (float64, error) {
			var req correlationRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				return 0, fmt.Errorf("%w: %s", errBadRequest, err)
			}
			return analytics.Correlate(req.SeriesA, req.SeriesB)
		}, nil)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "correlation": coefficient})
}

type predictRequest struct {
	Series []float64 `json:"series"`
	Steps  int       `json:"steps"`
}

// Predict forecasts future values of a series.
func (h *Handlers) Predict(c *gin.Context) {
	forecast, err := execution.WithProcessingSpan(c.Request.Context(), "trend-forecast",
		func(ctx context.Context) (*analytics.Forecast, error) {
			var req predictRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				return nil, fmt.Errorf("%w: %s", errBadRequest, err)
			}
			return analytics.Predict(req.Series, req.Steps)
		},
		func(forecast *analytics.Forecast) *execution.Artifact {
			return &execution.Artifact{
				ArtifactType: "forecast-summary",
				Data: gin.H{
					"history": forecast.Points,
					"steps":   len(forecast.Forecast),
					"slope":   forecast.Slope,
				},
			}
		})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "forecast": forecast})
}

type summaryRequest struct {
	Series []float64 `json:"series"`
}

// Summarize computes descriptive statistics for a series.
func (h *Handlers) Summarize(c *gin.Context) {
	summary, err := execution.WithProcessingSpan(c.Request.Context(), "series-summary",
		func(ctx context.Context) (*analytics.Summary, error) {
			var req summaryRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				return nil, fmt.Errorf("%w: %s", errBadRequest, err)
			}
			return analytics.Summarize(req.Series)
		},
		func(summary *analytics.Summary) *execution.Artifact {
			return &execution.Artifact{
				ArtifactType: "series-summary",
				Data:         summary,
			}
		})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "summary": summary})
}

// respondError maps domain and payload errors to 400, everything else to 500.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "INTERNAL_ERROR"

	var verr *events.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, errBadRequest),
		errors.Is(err, analytics.ErrEmptySeries),
		errors.Is(err, analytics.ErrLengthMismatch),
		errors.Is(err, analytics.ErrTooFewPoints):
		status = http.StatusBadRequest
		code = "INVALID_REQUEST"
	}

	c.JSON(status, gin.H{
		"success": false,
		"error":   gin.H{"code": code, "message": err.Error()},
	})
}
