package subscription

import (
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrymomot/subsync/pkg/tier"
)

// Config is the engine's billing configuration, read from BILLING_* variables.
type Config struct {
	// DefaultPaidTier is used when a completed checkout names no known tier and
	// its price is not in the catalog.
	DefaultPaidTier string `env:"BILLING_DEFAULT_PAID_TIER" envDefault:"pro"`
	// RegistrationTier is assigned on sign-up. Empty means the catalog's default free tier.
	RegistrationTier string `env:"BILLING_REGISTRATION_TIER"`
	// FreeAlwaysActive makes free-tier records active rather than none.
	FreeAlwaysActive         bool          `env:"BILLING_FREE_ALWAYS_ACTIVE" envDefault:"true"`
	TrialDays                int64         `env:"BILLING_TRIAL_DAYS" envDefault:"14"`
	CreateCustomerOnRegister bool          `env:"BILLING_CREATE_CUSTOMER_ON_REGISTER" envDefault:"false"`
	SuccessURL               string        `env:"BILLING_SUCCESS_URL" envDefault:"http://localhost:8080/billing/success?session_id={CHECKOUT_SESSION_ID}"`
	CancelURL                string        `env:"BILLING_CANCEL_URL" envDefault:"http://localhost:8080/billing/cancel"`
	PortalReturnURL          string        `env:"BILLING_PORTAL_RETURN_URL" envDefault:"http://localhost:8080/account"`
	GatewayTimeout           time.Duration `env:"BILLING_GATEWAY_TIMEOUT" envDefault:"30s"`
}

// DefaultConfig mirrors the envDefault tags.
func DefaultConfig() Config {
	return Config{
		DefaultPaidTier:  "pro",
		FreeAlwaysActive: true,
		TrialDays:        14,
		SuccessURL:       "http://localhost:8080/billing/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:        "http://localhost:8080/billing/cancel",
		PortalReturnURL:  "http://localhost:8080/account",
		GatewayTimeout:   30 * time.Second,
	}
}

// Validate checks the tier names against the catalog. DefaultPaidTier must
// name a paid tier; RegistrationTier, when set, any known tier.
func (c Config) Validate(catalog tier.Catalog) error {
	if c.DefaultPaidTier != "" {
		def, ok := catalog.Tier(c.DefaultPaidTier)
		if !ok {
			return fmt.Errorf("default paid tier: %w: %q", ErrTierNotFound, c.DefaultPaidTier)
		}
		if def.Free {
			return fmt.Errorf("default paid tier: %w: %q", ErrFreeTier, c.DefaultPaidTier)
		}
	}
	if c.RegistrationTier != "" {
		if _, ok := catalog.Tier(c.RegistrationTier); !ok {
			return fmt.Errorf("registration tier: %w: %q", ErrTierNotFound, c.RegistrationTier)
		}
	}
	return nil
}

// FreeStatus is the status given to records on a free tier.
func (c Config) FreeStatus() Status {
	if c.FreeAlwaysActive {
		return StatusActive
	}
	return StatusNone
}

// StripeConfig configures StripeGateway, read from STRIPE_* variables.
type StripeConfig struct {
	SecretKey     string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	// APIURL overrides the API base, e.g. for stripe-mock in tests.
	APIURL  string        `env:"STRIPE_API_URL"`
	Timeout time.Duration `env:"STRIPE_TIMEOUT" envDefault:"30s"`
}

func (c StripeConfig) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
