package execution

import (
	"errors"
	"net/http"

	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/shared/id"
)

// Headers for single-hop trace propagation.
const (
	HeaderExecutionID  = "X-Execution-Id"
	HeaderParentSpanID = "X-Parent-Span-Id"
)

var (
	// ErrMissingContext indicates the required parent span header was absent.
	ErrMissingContext = errors.New("x-parent-span-id header is required")

	// ErrInvalidContext indicates the parent span header was not a valid UUID.
	ErrInvalidContext = errors.New("x-parent-span-id must be a UUID")
)

// ExtractContext parses the trace-propagation headers of an inbound request.
// The parent span id is mandatory and must be UUID-shaped. A missing or
// malformed x-execution-id is not an error; a fresh trace id is generated in
// its place.
func ExtractContext(h http.Header) (Context, error) {
	parent := h.Get(HeaderParentSpanID)
	if parent == "" {
		return Context{}, ErrMissingContext
	}
	if !id.IsUUID(parent) {
		return Context{}, ErrInvalidContext
	}

	execID := h.Get(HeaderExecutionID)
	if execID == "" || !id.IsUUID(execID) {
		execID = id.NewTraceID()
	}

	return Context{
		ExecutionID:  TraceID(execID),
		ParentSpanID: SpanID(parent),
	}, nil
}
