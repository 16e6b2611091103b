/*
Package execution implements per-request, causally-ordered execution-span
tracking.

# Overview

Every non-operational request must arrive with a distributed trace context
(the x-parent-span-id header identifying the caller's core span, plus an
optional x-execution-id trace id) and must record at least one agent-level
span of observable work before it completes. The package enforces both ends
of that contract: it rejects requests with missing or malformed context
before any handler runs, and it fails requests that finish without agent
spans even when the handler reported success.

# Hierarchy

Spans form a fixed two-level hierarchy beneath the caller-owned core span:

	core span (external, id only)
	└── repo span (one per request, opened by the middleware)
	    ├── agent span
	    └── agent span ...

Agent spans are always siblings. All spans in one graph share the request's
trace id, and span ids are generated fresh per span.

# Usage

	router.Use(execution.Middleware(execution.MiddlewareConfig{
		RepoName: "analytics-hub",
		Logger:   logger,
	}))

Handlers record work either through the graph directly:

	graph := execution.FromContext(ctx)
	spanID := graph.StartAgentSpan("aggregation", nil)
	defer graph.EndAgentSpan(spanID, execution.StatusOK)

or through the helper, which manages the span lifecycle around a single
operation:

	report, err := execution.WithProcessingSpan(ctx, "anomaly-detection", run, buildArtifact)

# Response shape

When the graph is valid the rendered hierarchy is merged into the response:
JSON object bodies gain an _execution field; opaque bodies are left intact
and the hierarchy travels in the x-execution-trace header. A request that
recorded no agent spans is overridden with a 500 EXECUTION_INVARIANT_VIOLATION
envelope carrying the partial hierarchy.
*/
package execution
