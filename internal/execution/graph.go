package execution

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/LLM-Dev-Ops/analytics-hub-sub005/internal/shared/id"
)

// ErrNoAgentSpans is reported by Validate when a graph reaches finalization
// without recording any agent-level work.
var ErrNoAgentSpans = errors.New("No agent-level spans were emitted during execution")

// Graph is the per-request, append-only accumulator of execution spans. It
// owns exactly one repo span and the agent spans recorded beneath it, all
// sharing the request's trace id. A graph belongs to a single request and is
// discarded with it; the mutex only guards handlers that fan work out to
// goroutines within that request.
type Graph struct {
	mu      sync.Mutex
	execCtx Context
	repo    Span
	agents  []Span
}

// NewGraph opens the repo span for one request. Its parent is the
// caller-owned core span named by the extracted context.
func NewGraph(execCtx Context, repoName string) *Graph {
	return &Graph{
		execCtx: execCtx,
		repo: Span{
			SpanID:       SpanID(id.NewSpanID()),
			ParentSpanID: execCtx.ParentSpanID,
			TraceID:      execCtx.ExecutionID,
			SpanType:     SpanTypeRepo,
			Name:         repoName,
			Status:       StatusOK,
			StartTime:    time.Now().UTC(),
			Attributes:   map[string]string{},
			Artifacts:    []Artifact{},
		},
	}
}

// ExecutionID returns the trace id shared by every span in the graph.
func (g *Graph) ExecutionID() TraceID {
	return g.execCtx.ExecutionID
}

// StartAgentSpan appends a new agent span beneath the repo span and returns
// its id for later EndAgentSpan / AttachArtifact calls.
func (g *Graph) StartAgentSpan(name string, attrs map[string]string) SpanID {
	g.mu.Lock()
	defer g.mu.Unlock()

	span := Span{
		SpanID:       SpanID(id.NewSpanID()),
		ParentSpanID: g.repo.SpanID,
		TraceID:      g.repo.TraceID,
		SpanType:     SpanTypeAgent,
		Name:         name,
		Status:       StatusOK,
		StartTime:    time.Now().UTC(),
		Attributes:   make(map[string]string, len(attrs)),
		Artifacts:    []Artifact{},
	}
	for k, v := range attrs {
		span.Attributes[k] = v
	}

	g.agents = append(g.agents, span)
	return span.SpanID
}

// EndAgentSpan closes the agent span with the given status. Unknown ids and
// already-closed spans are ignored so a racing or double-ending caller
// cannot fail the request.
func (g *Graph) EndAgentSpan(spanID SpanID, status Status) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.agents {
		if g.agents[i].SpanID != spanID {
			continue
		}
		if g.agents[i].Open() {
			now := time.Now().UTC()
			g.agents[i].EndTime = &now
			g.agents[i].Status = status
		}
		return
	}
}

// AttachArtifact appends an artifact to the named agent span, stamping it
// with the current time and a generated artifact id if absent. Unknown span
// ids are ignored. Attachment to an already-closed span is permitted:
// artifacts are diagnostic payloads, not lifecycle events.
func (g *Graph) AttachArtifact(spanID SpanID, artifact Artifact) {
	g.mu.Lock()
	defer g.mu.Unlock()

	artifact.Timestamp = time.Now().UTC()
	if artifact.ArtifactID == "" {
		artifact.ArtifactID = id.NewArtifactID().String()
	}

	for i := range g.agents {
		if g.agents[i].SpanID == spanID {
			g.agents[i].Artifacts = append(g.agents[i].Artifacts, artifact)
			return
		}
	}
}

// Finalize closes the repo span. The middleware calls this exactly once when
// the response is ready; calling it again just overwrites end time and status.
func (g *Graph) Finalize(status Status) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now().UTC()
	g.repo.EndTime = &now
	g.repo.Status = status
}

// Validate checks the completion invariant: at least one agent span must
// have been recorded.
func (g *Graph) Validate() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.agents) == 0 {
		return ErrNoAgentSpans
	}
	return nil
}

// Hierarchy renders the graph. The returned spans are defensive copies, so
// mutating the live graph afterwards cannot retroactively alter an
// already-rendered hierarchy.
func (g *Graph) Hierarchy() Hierarchy {
	g.mu.Lock()
	defer g.mu.Unlock()

	agents := make([]Span, len(g.agents))
	for i := range g.agents {
		agents[i] = copySpan(g.agents[i])
	}

	return Hierarchy{
		CoreSpanID: g.repo.ParentSpanID,
		RepoSpan:   copySpan(g.repo),
		AgentSpans: agents,
	}
}

func copySpan(s Span) Span {
	out := s
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	out.Attributes = make(map[string]string, len(s.Attributes))
	for k, v := range s.Attributes {
		out.Attributes[k] = v
	}
	out.Artifacts = append([]Artifact(nil), s.Artifacts...)
	return out
}

type graphKey struct{}

// NewContext returns a context carrying the request's execution graph. The
// graph travels as an explicit context value rather than as mutation of the
// framework's request object.
func NewContext(ctx context.Context, g *Graph) context.Context {
	return context.WithValue(ctx, graphKey{}, g)
}

// FromContext returns the graph attached to ctx, or nil for operational
// requests that carry none.
func FromContext(ctx context.Context) *Graph {
	g, _ := ctx.Value(graphKey{}).(*Graph)
	return g
}
