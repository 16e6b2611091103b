package events

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidateBatchAccepts(t *testing.T) {
	raw := []byte(`{
		"events": [
			{
				"event_id": "550e8400-e29b-41d4-a716-446655440000",
				"timestamp": "2026-08-25T10:00:00Z",
				"source_module": "llm-gateway",
				"event_type": "request.completed",
				"payload": {"latency_ms": 120}
			},
			{
				"event_id": "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
				"timestamp": "2026-08-25T10:00:01Z",
				"source_module": "cost-ops",
				"event_type": "budget.updated"
			}
		]
	}`)

	batch, err := newValidator(t).ValidateBatch(raw)
	require.NoError(t, err)
	require.Len(t, batch.Events, 2)

	assert.Equal(t, "llm-gateway", batch.Events[0].SourceModule)
	assert.Equal(t, "request.completed", batch.Events[0].EventType)
	assert.Equal(t, float64(120), batch.Events[0].Payload["latency_ms"])

	counts := batch.Summarize()
	assert.Equal(t, 1, counts["llm-gateway"])
	assert.Equal(t, 1, counts["cost-ops"])
}

func TestValidateBatchRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty batch", `{"events": []}`},
		{"missing events", `{}`},
		{"bad event id", `{"events":[{"event_id":"nope","timestamp":"2026-08-25T10:00:00Z","source_module":"m","event_type":"t"}]}`},
		{"missing event type", `{"events":[{"event_id":"550e8400-e29b-41d4-a716-446655440000","timestamp":"2026-08-25T10:00:00Z","source_module":"m"}]}`},
		{"empty source module", `{"events":[{"event_id":"550e8400-e29b-41d4-a716-446655440000","timestamp":"2026-08-25T10:00:00Z","source_module":"","event_type":"t"}]}`},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateBatch([]byte(tt.raw))
			require.Error(t, err)

			var verr *ValidationError
			assert.True(t, errors.As(err, &verr), "expected a ValidationError, got %v", err)
			assert.NotEmpty(t, verr.Problems)
		})
	}
}

func TestValidateBatchMalformedJSON(t *testing.T) {
	_, err := newValidator(t).ValidateBatch([]byte(`not json at all`))
	require.Error(t, err)

	var verr *ValidationError
	assert.False(t, errors.As(err, &verr), "malformed JSON is not a schema violation")
}
