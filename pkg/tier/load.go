package tier

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/subsync/pkg/config"
)

var (
	ErrFailedToLoadCatalog = errors.New("failed to load tier catalog")
	ErrDuplicatePriceID    = errors.New("price id is mapped to more than one tier")
)

// File is the on-disk catalog shape.
type File struct {
	DefaultFreeTier string                `yaml:"default_free_tier"`
	Tiers           map[string]Definition `yaml:"tiers"`
}

// Load reads a YAML catalog file.
func Load(path string) (*Static, error) {
	var f File
	if err := config.LoadYAML(path, &f); err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}
	return FromFile(f)
}

// FromFile validates a decoded catalog file and builds a Static catalog from it.
func FromFile(f File) (*Static, error) {
	defs := make([]Definition, 0, len(f.Tiers))
	owners := make(map[string]string)
	for id, d := range f.Tiers {
		d.ID = id
		for _, price := range []string{d.MonthlyPriceID, d.YearlyPriceID} {
			if price == "" {
				continue
			}
			if other, ok := owners[price]; ok && other != id {
				return nil, errors.Join(ErrFailedToLoadCatalog,
					fmt.Errorf("%w: %s used by %s and %s", ErrDuplicatePriceID, price, other, id))
			}
			owners[price] = id
		}
		defs = append(defs, d)
	}
	return New(defs, WithDefaultFree(f.DefaultFreeTier)), nil
}
