package flow

import (
	"context"
	"fmt"

	"traffic-probe-service/internal/domain"
)

// MockSegmentProvider returns canned segments or errors per probe ID.
type MockSegmentProvider struct {
	Segments map[string]*domain.CanonicalSegment
	Errs     map[string]error
	Source   string

	Calls int
}

func NewMockSegmentProvider(segments []*domain.CanonicalSegment) *MockSegmentProvider {
	m := make(map[string]*domain.CanonicalSegment, len(segments))
	for _, s := range segments {
		m[s.SegmentID] = s
	}
	return &MockSegmentProvider{Segments: m, Source: sourceIDLive}
}

func (p *MockSegmentProvider) SourceID(mode domain.Mode) string { return p.Source }

func (p *MockSegmentProvider) FetchSegment(ctx context.Context, probe domain.ProbePoint, mode domain.Mode) (*domain.CanonicalSegment, error) {
	p.Calls++
	if err, ok := p.Errs[probe.ID]; ok {
		return nil, err
	}
	s, ok := p.Segments[probe.ID]
	if !ok {
		return nil, fmt.Errorf("missing segment for probe %q", probe.ID)
	}
	return s, nil
}
