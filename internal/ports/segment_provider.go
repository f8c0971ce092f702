package ports

import (
	"context"

	"traffic-probe-service/internal/domain"
)

// Port: a boundary for turning one probe point into one validated canonical
// segment, or failing closed. Implementations do not retry; retry policy
// lives in the collector layer.
type SegmentProvider interface {
	// FetchSegment acquires and validates one probe's segment in the given mode.
	FetchSegment(ctx context.Context, probe domain.ProbePoint, mode domain.Mode) (*domain.CanonicalSegment, error)

	// SourceID identifies the upstream source for batch-level provenance.
	SourceID(mode domain.Mode) string
}
