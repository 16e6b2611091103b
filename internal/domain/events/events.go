// Package events defines the unified analytics event schema and validates
// inbound event batches against it.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// SchemaVersion is the current event schema version.
const SchemaVersion = "1.0.0"

// batchSchema is the JSON Schema every inbound event batch must satisfy.
const batchSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["events"],
	"properties": {
		"events": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["event_id", "timestamp", "source_module", "event_type"],
				"properties": {
					"event_id": {"type": "string", "format": "uuid"},
					"timestamp": {"type": "string", "format": "date-time"},
					"source_module": {"type": "string", "minLength": 1},
					"event_type": {"type": "string", "minLength": 1},
					"correlation_id": {"type": "string", "format": "uuid"},
					"schema_version": {"type": "string"},
					"payload": {"type": "object"}
				}
			}
		}
	}
}`

// Event is one analytics event reported by an upstream module.
type Event struct {
	EventID       string                 `json:"event_id"`
	Timestamp     time.Time              `json:"timestamp"`
	SourceModule  string                 `json:"source_module"`
	EventType     string                 `json:"event_type"`
	CorrelationID string                 `json:"correlation_id,omitempty"`
	SchemaVersion string                 `json:"schema_version,omitempty"`
	Payload       map[string]interface{} `json:"payload,omitempty"`
}

// Batch is a group of events ingested together.
type Batch struct {
	Events []Event `json:"events"`
}

// ValidationError aggregates the schema violations found in one batch.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("event batch failed schema validation: %s", strings.Join(e.Problems, "; "))
}

// Validator checks inbound batches against the event schema. Construct once
// and share; validation itself is stateless.
type Validator struct {
	schema *gojsonschema.Schema
}

// NewValidator compiles the batch schema.
func NewValidator() (*Validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(batchSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile event schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateBatch checks raw JSON against the schema and decodes it. Schema
// violations come back as a *ValidationError listing every problem found.
func (v *Validator) ValidateBatch(raw []byte) (*Batch, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("malformed event batch: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, &ValidationError{Problems: problems}
	}

	var batch Batch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return nil, fmt.Errorf("failed to decode event batch: %w", err)
	}
	return &batch, nil
}

// Summarize counts events per source module, for ingest artifacts.
func (b *Batch) Summarize() map[string]int {
	counts := make(map[string]int, len(b.Events))
	for _, e := range b.Events {
		counts[e.SourceModule]++
	}
	return counts
}
