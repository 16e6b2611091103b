// Package http implements the REST handlers for the analytics hub: event
// ingestion, anomaly detection, correlation, series summaries, and the
// operational health/readiness/introspection endpoints.
//
// Every non-operational handler records its work through
// execution.WithProcessingSpan, which satisfies the completion invariant
// enforced by the execution middleware even when the handler fails on bad
// input.
package http
