package execution

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error codes surfaced to clients.
const (
	CodeMissingContext     = "MISSING_EXECUTION_CONTEXT"
	CodeInvalidContext     = "INVALID_EXECUTION_CONTEXT"
	CodeInvariantViolation = "EXECUTION_INVARIANT_VIOLATION"
)

// TraceHeader carries the serialized hierarchy when the response body is not
// a JSON object.
const TraceHeader = "X-Execution-Trace"

// ExecutionField is the key under which the hierarchy is merged into JSON
// object responses.
const ExecutionField = "_execution"

// ErrorBody is the structured error carried by rejection and violation
// responses.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope is the fixed response shape for requests this layer fails.
type ErrorEnvelope struct {
	Success   bool       `json:"success"`
	Error     ErrorBody  `json:"error"`
	Execution *Hierarchy `json:"_execution,omitempty"`
}

// Metrics is the subset of the monitoring surface the middleware reports to.
// A nil Metrics disables reporting.
type Metrics interface {
	RecordContextRejection(code string)
	RecordGraphFinalized(agentSpans int, status Status)
	RecordInvariantViolation(path string)
}

// MiddlewareConfig configures the request lifecycle middleware.
type MiddlewareConfig struct {
	// RepoName names the repo span opened for every traced request.
	RepoName string

	Logger  *zap.Logger
	Metrics Metrics

	// OnFinalized, if set, receives every rendered hierarchy after the
	// response is decided (e.g. the observatory exporter's Submit).
	OnFinalized func(Hierarchy)
}

// Middleware composes the execution-tracking layer around the request cycle:
// classify the path, extract and enforce the trace context, attach a fresh
// graph to the request context, and after the handler runs finalize the
// graph, check the completion invariant, and merge the hierarchy into the
// outbound response.
func Middleware(cfg MiddlewareConfig) gin.HandlerFunc {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	repoName := cfg.RepoName
	if repoName == "" {
		repoName = "analytics-hub"
	}

	return func(c *gin.Context) {
		if IsOperationalPath(c.Request.URL.Path) {
			c.Next()
			return
		}

		execCtx, err := ExtractContext(c.Request.Header)
		if err != nil {
			code := CodeInvalidContext
			if errors.Is(err, ErrMissingContext) {
				code = CodeMissingContext
			}
			if cfg.Metrics != nil {
				cfg.Metrics.RecordContextRejection(code)
			}
			logger.Warn("rejected request without valid execution context",
				zap.String("path", c.Request.URL.Path),
				zap.String("code", code),
			)
			c.AbortWithStatusJSON(http.StatusBadRequest, ErrorEnvelope{
				Error: ErrorBody{Code: code, Message: err.Error()},
			})
			return
		}

		graph := NewGraph(execCtx, repoName)
		c.Request = c.Request.WithContext(NewContext(c.Request.Context(), graph))

		// Hold back status and body so the hierarchy can be merged, or the
		// response overridden, before anything reaches the wire.
		buf := newBufferedWriter(c.Writer)
		c.Writer = buf

		c.Next()

		status := buf.status
		if status < http.StatusBadRequest {
			graph.Finalize(StatusOK)
		} else {
			graph.Finalize(StatusError)
		}

		if err := graph.Validate(); err != nil {
			hierarchy := graph.Hierarchy()
			if cfg.Metrics != nil {
				cfg.Metrics.RecordInvariantViolation(c.Request.URL.Path)
			}
			logger.Error("execution invariant violated: no agent spans recorded",
				zap.String("path", c.Request.URL.Path),
				zap.String("trace_id", string(hierarchy.RepoSpan.TraceID)),
				zap.Int("handler_status", status),
			)
			body, _ := json.Marshal(ErrorEnvelope{
				Error:     ErrorBody{Code: CodeInvariantViolation, Message: err.Error()},
				Execution: &hierarchy,
			})
			buf.Header().Set("Content-Type", "application/json; charset=utf-8")
			buf.flush(http.StatusInternalServerError, body)
			if cfg.OnFinalized != nil {
				cfg.OnFinalized(hierarchy)
			}
			return
		}

		hierarchy := graph.Hierarchy()
		if cfg.Metrics != nil {
			cfg.Metrics.RecordGraphFinalized(len(hierarchy.AgentSpans), hierarchy.RepoSpan.Status)
		}

		if merged, ok := mergeHierarchy(buf.body.Bytes(), hierarchy); ok {
			buf.flush(status, merged)
		} else {
			// Opaque body: leave it untouched and carry the hierarchy in a
			// response header instead.
			trace, _ := json.Marshal(hierarchy)
			buf.Header().Set(TraceHeader, string(trace))
			buf.flush(status, buf.body.Bytes())
		}

		if cfg.OnFinalized != nil {
			cfg.OnFinalized(hierarchy)
		}
	}
}

// mergeHierarchy adds the hierarchy as an _execution field when body is a
// JSON object. Any other body shape reports false.
func mergeHierarchy(body []byte, h Hierarchy) ([]byte, bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(trimmed, &payload); err != nil {
		return nil, false
	}

	payload[ExecutionField] = h
	merged, err := json.Marshal(payload)
	if err != nil {
		return nil, false
	}
	return merged, true
}

// bufferedWriter captures the handler's status code and body instead of
// streaming them, deferring the write until the middleware has decided the
// final response.
type bufferedWriter struct {
	gin.ResponseWriter
	body        bytes.Buffer
	status      int
	wroteHeader bool
}

func newBufferedWriter(w gin.ResponseWriter) *bufferedWriter {
	return &bufferedWriter{ResponseWriter: w, status: http.StatusOK}
}

func (w *bufferedWriter) WriteHeader(code int) {
	w.status = code
	w.wroteHeader = true
}

// WriteHeaderNow is deliberately a no-op; the deferred header is written by
// flush once the final status is known.
func (w *bufferedWriter) WriteHeaderNow() {}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

func (w *bufferedWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

func (w *bufferedWriter) Status() int {
	return w.status
}

func (w *bufferedWriter) Size() int {
	return w.body.Len()
}

func (w *bufferedWriter) Written() bool {
	return w.wroteHeader || w.body.Len() > 0
}

// flush writes the final response through the underlying writer. The body
// may differ from what the handler produced, so any handler-set
// Content-Length is dropped. The recorded status is updated so middleware
// outside this one observes what the client received, not what the handler
// wrote.
func (w *bufferedWriter) flush(status int, body []byte) {
	w.status = status
	w.wroteHeader = true
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(status)
	if len(body) > 0 {
		_, _ = w.ResponseWriter.Write(body)
	}
}
