package subscription_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/subsync/pkg/subscription"
)

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  subscription.Config
		want error
	}{
		{"defaults", subscription.DefaultConfig(), nil},
		{"empty default paid tier", subscription.Config{}, nil},
		{"unknown default paid tier", subscription.Config{DefaultPaidTier: "gold"}, subscription.ErrTierNotFound},
		{"free default paid tier", subscription.Config{DefaultPaidTier: "free"}, subscription.ErrFreeTier},
		{"paid registration tier", subscription.Config{DefaultPaidTier: "fleet", RegistrationTier: "pro"}, nil},
		{"unknown registration tier", subscription.Config{RegistrationTier: "gold"}, subscription.ErrTierNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate(testCatalog())
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
