package tier

import "strings"

// FallbackFreeTier is used when the catalog is empty or declares no free tier.
const FallbackFreeTier = "free"

// Period is a billing period a paid tier can be purchased for.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// ParsePeriod normalizes user input. Empty input defaults to monthly.
func ParsePeriod(s string) (Period, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "monthly", "month":
		return PeriodMonthly, true
	case "yearly", "year", "annual":
		return PeriodYearly, true
	default:
		return "", false
	}
}

// Definition describes a single tier.
type Definition struct {
	ID             string `yaml:"-"`
	Name           string `yaml:"name"`
	Free           bool   `yaml:"free"`
	MonthlyPriceID string `yaml:"price_id_monthly"`
	YearlyPriceID  string `yaml:"price_id_yearly"`
}

// PriceID returns the gateway price for the period, or "" if none is configured.
func (d Definition) PriceID(p Period) string {
	switch p {
	case PeriodYearly:
		return d.YearlyPriceID
	case PeriodMonthly:
		return d.MonthlyPriceID
	default:
		return ""
	}
}

// DisplayName falls back to the ID when no name is configured.
func (d Definition) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// Catalog is the read-only tier lookup consumed by the reconciliation engine.
type Catalog interface {
	// TierByPrice resolves the tier granted by a gateway price.
	TierByPrice(priceID string) (string, bool)
	// Tier returns the definition of a tier.
	Tier(id string) (Definition, bool)
	// DefaultFree returns the tier users fall back to without a paid subscription.
	DefaultFree() string
}
