package execution

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(cfg MiddlewareConfig) *gin.Engine {
	router := gin.New()
	router.Use(Middleware(cfg))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Opens exactly one agent span named "x" and ends it ok.
	router.GET("/work", func(c *gin.Context) {
		graph := FromContext(c.Request.Context())
		spanID := graph.StartAgentSpan("x", nil)
		graph.EndAgentSpan(spanID, StatusOK)
		c.JSON(http.StatusOK, gin.H{"foo": 1})
	})

	// Returns success without recording any agent span.
	router.GET("/lazy", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"foo": 1})
	})

	// Fails after recording a span.
	router.GET("/broken", func(c *gin.Context) {
		graph := FromContext(c.Request.Context())
		spanID := graph.StartAgentSpan("x", nil)
		graph.EndAgentSpan(spanID, StatusError)
		c.JSON(http.StatusBadGateway, gin.H{"message": "downstream failed"})
	})

	// Produces an opaque, non-JSON body.
	router.GET("/binary", func(c *gin.Context) {
		graph := FromContext(c.Request.Context())
		spanID := graph.StartAgentSpan("x", nil)
		graph.EndAgentSpan(spanID, StatusOK)
		c.Data(http.StatusOK, "application/octet-stream", []byte{0x00, 0x01, 0x02, 0xff})
	})

	return router
}

func doRequest(router *gin.Engine, path string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func validHeaders() map[string]string {
	return map[string]string{
		HeaderParentSpanID: testParentID,
		HeaderExecutionID:  testTraceID,
	}
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) ErrorEnvelope {
	t.Helper()
	var envelope ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestMiddlewareMissingContext(t *testing.T) {
	router := newTestRouter(MiddlewareConfig{})

	w := doRequest(router, "/work", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.False(t, envelope.Success)
	assert.Equal(t, CodeMissingContext, envelope.Error.Code)
	assert.Nil(t, envelope.Execution, "no graph exists for rejected requests")
}

func TestMiddlewareInvalidContext(t *testing.T) {
	router := newTestRouter(MiddlewareConfig{})

	w := doRequest(router, "/work", map[string]string{HeaderParentSpanID: "not-a-uuid"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, CodeInvalidContext, envelope.Error.Code)
}

func TestMiddlewareExemptPath(t *testing.T) {
	router := newTestRouter(MiddlewareConfig{})

	w := doRequest(router, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.NotContains(t, body, ExecutionField)
	assert.Empty(t, w.Header().Get(TraceHeader))
}

func TestMiddlewareMergesHierarchyIntoJSONBody(t *testing.T) {
	router := newTestRouter(MiddlewareConfig{RepoName: "analytics-hub"})

	w := doRequest(router, "/work", validHeaders())

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Foo       int       `json:"foo"`
		Execution Hierarchy `json:"_execution"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))

	assert.Equal(t, 1, body.Foo, "original body fields are preserved")
	assert.Equal(t, SpanID(testParentID), body.Execution.CoreSpanID)
	assert.Equal(t, StatusOK, body.Execution.RepoSpan.Status)
	assert.Equal(t, "analytics-hub", body.Execution.RepoSpan.Name)
	assert.False(t, body.Execution.RepoSpan.Open())

	require.Len(t, body.Execution.AgentSpans, 1)
	agent := body.Execution.AgentSpans[0]
	assert.Equal(t, "x", agent.Name)
	assert.Equal(t, StatusOK, agent.Status)

	// Supplied execution id is the trace id of every span.
	assert.Equal(t, TraceID(testTraceID), body.Execution.RepoSpan.TraceID)
	assert.Equal(t, body.Execution.RepoSpan.TraceID, agent.TraceID)
	assert.Equal(t, body.Execution.RepoSpan.SpanID, agent.ParentSpanID)
	assert.NotEqual(t, body.Execution.RepoSpan.SpanID, agent.SpanID)
}

func TestMiddlewareInvariantViolationOverridesSuccess(t *testing.T) {
	router := newTestRouter(MiddlewareConfig{})

	w := doRequest(router, "/lazy", validHeaders())

	assert.Equal(t, http.StatusInternalServerError, w.Code, "handler's 200 is overridden")

	envelope := decodeEnvelope(t, w)
	assert.False(t, envelope.Success)
	assert.Equal(t, CodeInvariantViolation, envelope.Error.Code)
	require.NotNil(t, envelope.Execution, "partial hierarchy is surfaced for diagnosis")
	assert.Empty(t, envelope.Execution.AgentSpans)
	assert.Equal(t, SpanID(testParentID), envelope.Execution.CoreSpanID)
}

func TestMiddlewareHandlerErrorFinalizesRepoSpanError(t *testing.T) {
	router := newTestRouter(MiddlewareConfig{})

	w := doRequest(router, "/broken", validHeaders())

	assert.Equal(t, http.StatusBadGateway, w.Code, "handler errors pass through untouched")

	var body struct {
		Message   string    `json:"message"`
		Execution Hierarchy `json:"_execution"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "downstream failed", body.Message)
	assert.Equal(t, StatusError, body.Execution.RepoSpan.Status)
}

func TestMiddlewareOpaqueBodyUsesTraceHeader(t *testing.T) {
	router := newTestRouter(MiddlewareConfig{})

	w := doRequest(router, "/binary", validHeaders())

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []byte{0x00, 0x01, 0x02, 0xff}, w.Body.Bytes(), "opaque body is untouched")

	trace := w.Header().Get(TraceHeader)
	require.NotEmpty(t, trace)

	var h Hierarchy
	require.NoError(t, json.Unmarshal([]byte(trace), &h))
	assert.Equal(t, SpanID(testParentID), h.CoreSpanID)
	require.Len(t, h.AgentSpans, 1)
	assert.Equal(t, "x", h.AgentSpans[0].Name)
	assert.Equal(t, h.RepoSpan.TraceID, h.AgentSpans[0].TraceID)
}

func TestMiddlewareGeneratesTraceIDWhenAbsent(t *testing.T) {
	router := newTestRouter(MiddlewareConfig{})

	w := doRequest(router, "/work", map[string]string{HeaderParentSpanID: testParentID})

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Execution Hierarchy `json:"_execution"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Execution.RepoSpan.TraceID)
	assert.Equal(t, body.Execution.RepoSpan.TraceID, body.Execution.AgentSpans[0].TraceID)
}

func TestMiddlewareOnFinalized(t *testing.T) {
	var got []Hierarchy
	router := newTestRouter(MiddlewareConfig{
		OnFinalized: func(h Hierarchy) { got = append(got, h) },
	})

	doRequest(router, "/work", validHeaders())
	doRequest(router, "/health", nil)
	doRequest(router, "/lazy", validHeaders())

	require.Len(t, got, 2, "exempt paths never finalize a graph")
	assert.Len(t, got[0].AgentSpans, 1)
	assert.Empty(t, got[1].AgentSpans)
}

type recordingMetrics struct {
	rejections []string
	finalized  int
	violations []string
}

func (m *recordingMetrics) RecordContextRejection(code string) { m.rejections = append(m.rejections, code) }
func (m *recordingMetrics) RecordGraphFinalized(agentSpans int, status Status) {
	m.finalized++
}
func (m *recordingMetrics) RecordInvariantViolation(path string) {
	m.violations = append(m.violations, path)
}

func TestMiddlewareMetricsHooks(t *testing.T) {
	metrics := &recordingMetrics{}
	router := newTestRouter(MiddlewareConfig{Metrics: metrics})

	doRequest(router, "/work", nil)
	doRequest(router, "/work", validHeaders())
	doRequest(router, "/lazy", validHeaders())

	assert.Equal(t, []string{CodeMissingContext}, metrics.rejections)
	assert.Equal(t, 1, metrics.finalized)
	assert.Equal(t, []string{"/lazy"}, metrics.violations)
}
