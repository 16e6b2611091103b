package execution

import "context"

// ProcessingSpanName is the name under which helper-managed agent spans are
// recorded.
const ProcessingSpanName = "data-processing-agent"

// ArtifactBuilder derives an artifact from a successful operation result.
// Returning nil attaches nothing.
type ArtifactBuilder[T any] func(result T) *Artifact

// WithProcessingSpan runs fn inside a single agent span so handlers do not
// have to manage the span lifecycle themselves. When ctx carries no graph
// (operational paths) fn runs untraced. On success an optional artifact is
// built from the result and attached before the span closes ok; on failure
// the span closes error and the original error is returned unchanged.
func WithProcessingSpan[T any](ctx context.Context, operation string, fn func(context.Context) (T, error), builder ArtifactBuilder[T]) (T, error) {
	g := FromContext(ctx)
	if g == nil {
		return fn(ctx)
	}

	spanID := g.StartAgentSpan(ProcessingSpanName, map[string]string{"operation": operation})

	result, err := fn(ctx)
	if err != nil {
		g.EndAgentSpan(spanID, StatusError)
		return result, err
	}

	if builder != nil {
		if artifact := builder(result); artifact != nil {
			g.AttachArtifact(spanID, *artifact)
		}
	}
	g.EndAgentSpan(spanID, StatusOK)
	return result, nil
}
