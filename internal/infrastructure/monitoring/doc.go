// Package monitoring provides Prometheus metrics for the HTTP surface and
// the execution-tracking layer: request counts and latencies, context
// rejections, finalized graphs, agent span volume, invariant violations, and
// observatory export outcomes.
package monitoring
