// Package id provides centralized ID generation for the service.
//
// Two identifier families coexist:
//   - Span and trace identifiers are RFC 4122 UUIDs (v4), as required by the
//     execution-context wire contract (x-execution-id / x-parent-span-id).
//   - Artifact and request identifiers are prefixed ULIDs: lexicographically
//     sortable and readable in logs (art_*, req_*).
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// ArtifactID identifies an artifact attached to a span.
type ArtifactID string

// RequestID identifies an inbound API request in logs.
type RequestID string

const (
	ArtifactPrefix = "art"
	RequestPrefix  = "req"
)

// NewSpanID generates a fresh UUID v4 span identifier.
func NewSpanID() string {
	return uuid.NewString()
}

// NewTraceID generates a fresh UUID v4 trace identifier.
func NewTraceID() string {
	return uuid.NewString()
}

// IsUUID reports whether s is a valid RFC 4122 textual UUID.
func IsUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex // Protects entropy reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the singleton generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a new ULID generator
func NewGenerator() *Generator {
	return &Generator{
		entropy: rand.Reader,
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewArtifactID generates a new artifact ID
func NewArtifactID() ArtifactID {
	return ArtifactID(Default().GenerateWithPrefix(ArtifactPrefix))
}

// NewRequestID generates a new request ID
func NewRequestID() RequestID {
	return RequestID(Default().GenerateWithPrefix(RequestPrefix))
}

// String methods for ID types
func (id ArtifactID) String() string { return string(id) }
func (id RequestID) String() string  { return string(id) }

// IsValidULID checks if an ID string is a valid ULID
func IsValidULID(id string) bool {
	_, err := ulid.Parse(id)
	return err == nil
}
