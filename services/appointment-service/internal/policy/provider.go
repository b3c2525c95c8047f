package policy

import (
	"context"
	"time"
)

// Provider resolves the minimum gap enforced around a new booking for a provider.
type Provider interface {
	Buffer(ctx context.Context, providerID string) (time.Duration, error)
}

type staticProvider struct {
	fallback  time.Duration
	overrides map[string]time.Duration
}

// NewStaticProvider returns fallback for every provider except those listed in
// overrides. Negative values are treated as zero.
func NewStaticProvider(fallback time.Duration, overrides map[string]time.Duration) Provider {
	p := &staticProvider{fallback: clamp(fallback), overrides: make(map[string]time.Duration, len(overrides))}
	for id, d := range overrides {
		p.overrides[id] = clamp(d)
	}
	return p
}

func (p *staticProvider) Buffer(_ context.Context, providerID string) (time.Duration, error) {
	if d, ok := p.overrides[providerID]; ok {
		return d, nil
	}
	return p.fallback, nil
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
