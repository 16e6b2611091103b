package execution

import "time"

// TraceID correlates every span produced while handling one request.
type TraceID string

// SpanID uniquely identifies a single span.
type SpanID string

// SpanType distinguishes the levels of the execution hierarchy.
type SpanType string

const (
	SpanTypeCore  SpanType = "core"
	SpanTypeRepo  SpanType = "repo"
	SpanTypeAgent SpanType = "agent"
)

// Status is the disposition of a span.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Artifact is an opaque payload attached to exactly one span.
type Artifact struct {
	ArtifactType string      `json:"artifact_type"`
	ArtifactID   string      `json:"artifact_id"`
	Data         interface{} `json:"data"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Span is a timed unit of work within a trace. A span with no end time is
// still open.
type Span struct {
	SpanID       SpanID            `json:"span_id"`
	ParentSpanID SpanID            `json:"parent_span_id"`
	TraceID      TraceID           `json:"trace_id"`
	SpanType     SpanType          `json:"span_type"`
	Name         string            `json:"name"`
	Status       Status            `json:"status"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      *time.Time        `json:"end_time,omitempty"`
	Attributes   map[string]string `json:"attributes"`
	Artifacts    []Artifact        `json:"artifacts"`
}

// Open reports whether the span has not been ended yet.
func (s *Span) Open() bool {
	return s.EndTime == nil
}

// Hierarchy is the rendered, immutable shape of one request's execution
// graph: the caller-owned core span id, the repo span, and its agent spans.
type Hierarchy struct {
	CoreSpanID SpanID `json:"core_span_id"`
	RepoSpan   Span   `json:"repo_span"`
	AgentSpans []Span `json:"agent_spans"`
}

// Context is the distributed trace identity extracted from inbound headers.
// It is produced once per request and owned by that request's graph.
type Context struct {
	ExecutionID  TraceID
	ParentSpanID SpanID
}
