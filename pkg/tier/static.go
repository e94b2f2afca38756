package tier

import (
	"maps"
	"slices"
)

// Static is an immutable in-memory Catalog.
// The zero value is an empty catalog; a nil *Static is usable as well.
type Static struct {
	tiers       map[string]Definition
	byPrice     map[string]string
	defaultFree string
}

// Option configures a Static catalog.
type Option func(*Static)

// WithDefaultFree pins the default free tier instead of deriving it.
func WithDefaultFree(id string) Option {
	return func(s *Static) {
		if id != "" {
			s.defaultFree = id
		}
	}
}

// New builds a catalog from definitions. Later definitions with the same ID win.
func New(defs []Definition, opts ...Option) *Static {
	s := &Static{
		tiers:   make(map[string]Definition, len(defs)),
		byPrice: make(map[string]string, len(defs)*2),
	}
	for _, d := range defs {
		if d.ID == "" {
			continue
		}
		s.tiers[d.ID] = d
	}
	for _, id := range slices.Sorted(maps.Keys(s.tiers)) {
		d := s.tiers[id]
		if d.MonthlyPriceID != "" {
			s.byPrice[d.MonthlyPriceID] = id
		}
		if d.YearlyPriceID != "" {
			s.byPrice[d.YearlyPriceID] = id
		}
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.defaultFree == "" {
		// Sorted so the choice does not depend on map order.
		for _, id := range slices.Sorted(maps.Keys(s.tiers)) {
			if s.tiers[id].Free {
				s.defaultFree = id
				break
			}
		}
	}
	return s
}

// TierByPrice implements Catalog.
func (s *Static) TierByPrice(priceID string) (string, bool) {
	if s == nil || priceID == "" {
		return "", false
	}
	id, ok := s.byPrice[priceID]
	return id, ok
}

// Tier implements Catalog.
func (s *Static) Tier(id string) (Definition, bool) {
	if s == nil {
		return Definition{}, false
	}
	d, ok := s.tiers[id]
	return d, ok
}

// DefaultFree implements Catalog.
func (s *Static) DefaultFree() string {
	if s == nil || s.defaultFree == "" {
		return FallbackFreeTier
	}
	return s.defaultFree
}

// IDs returns all tier IDs in lexical order.
func (s *Static) IDs() []string {
	if s == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(s.tiers))
}
