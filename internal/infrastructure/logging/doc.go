// Package logging provides structured logging using uber/zap.
//
// Two modes are supported: production (JSON output for machine parsing) and
// development (colored console output). Execution-layer events such as
// context rejections and invariant violations are logged with the trace id
// as a structured field so they can be joined against the span hierarchies
// shipped to the observatory.
package logging
