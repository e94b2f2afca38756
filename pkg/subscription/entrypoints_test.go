package subscription_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subsync/pkg/subscription"
	"github.com/dmitrymomot/subsync/pkg/tier"
)

func TestEngine_Checkout(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		tests := []struct {
			name string
			req  subscription.CheckoutRequest
			want error
		}{
			{"anonymous", subscription.CheckoutRequest{Tier: "pro"}, subscription.ErrUnauthenticated},
			{"unknown tier", subscription.CheckoutRequest{UserID: 1, Tier: "gold"}, subscription.ErrTierNotFound},
			{"free tier", subscription.CheckoutRequest{UserID: 1, Tier: "free"}, subscription.ErrFreeTier},
			{"no yearly price", subscription.CheckoutRequest{UserID: 1, Tier: "fleet", Period: tier.PeriodYearly}, subscription.ErrPriceNotConfigured},
		}
		for _, tt := range tests {
			_, err := f.engine.Checkout(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want, tt.name)
		}
		assert.Equal(t, 0, f.store.Len())
		f.gateway.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	})

	t.Run("first checkout creates customer and offers trial", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		cfg := subscription.DefaultConfig()

		f.gateway.On("CreateCustomer", mock.Anything, subscription.CustomerParams{UserID: 42, Email: "ada@example.com"}).
			Return("cus_new", nil).Once()
		f.gateway.On("CreateCheckoutSession", mock.Anything, subscription.CheckoutSessionParams{
			CustomerID: "cus_new",
			PriceID:    "price_pro_y",
			SuccessURL: cfg.SuccessURL,
			CancelURL:  cfg.CancelURL,
			TrialDays:  14,
			Metadata: map[string]string{
				subscription.MetadataUserID:        "42",
				subscription.MetadataTier:          "pro",
				subscription.MetadataBillingPeriod: "yearly",
			},
			SubscriptionMetadata: map[string]string{
				subscription.MetadataUserID: "42",
				subscription.MetadataTier:   "pro",
			},
		}).Return(&subscription.CheckoutLink{URL: "https://checkout.test/cs_1", SessionID: "cs_1"}, nil).Once()

		link, err := f.engine.Checkout(ctx, subscription.CheckoutRequest{
			UserID: 42, Email: "ada@example.com", Tier: "pro", Period: tier.PeriodYearly,
		})
		require.NoError(t, err)
		assert.Equal(t, "https://checkout.test/cs_1", link.URL)
		assert.Equal(t, "cus_new", f.record(42).CustomerID)
		assert.Equal(t, "ada@example.com", f.record(42).Email)
		f.gateway.AssertExpectations(t)
	})

	t.Run("used trial and existing customer", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		_, err := f.store.Upsert(ctx, 42, subscription.Patch{
			CustomerID: subscription.Set("cus_1"),
			TrialUsed:  subscription.Set(true),
		})
		require.NoError(t, err)

		f.gateway.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p subscription.CheckoutSessionParams) bool {
			return p.CustomerID == "cus_1" && p.TrialDays == 0 && p.PriceID == "price_pro_m"
		})).Return(&subscription.CheckoutLink{URL: "https://checkout.test/cs_2"}, nil).Once()

		_, err = f.engine.Checkout(ctx, subscription.CheckoutRequest{UserID: 42, Tier: "pro"})
		require.NoError(t, err)
		f.gateway.AssertExpectations(t)
		f.gateway.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	})

	t.Run("trials disabled", func(t *testing.T) {
		t.Parallel()
		cfg := subscription.DefaultConfig()
		cfg.TrialDays = 0
		f := newFixture(subscription.WithConfig(cfg))
		_, err := f.store.Upsert(ctx, 42, subscription.Patch{CustomerID: subscription.Set("cus_1")})
		require.NoError(t, err)

		f.gateway.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p subscription.CheckoutSessionParams) bool {
			return p.TrialDays == 0
		})).Return(&subscription.CheckoutLink{URL: "u"}, nil).Once()

		_, err = f.engine.Checkout(ctx, subscription.CheckoutRequest{UserID: 42, Tier: "pro"})
		require.NoError(t, err)
		f.gateway.AssertExpectations(t)
	})

	t.Run("gateway failure keeps the created customer", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.gateway.On("CreateCustomer", mock.Anything, mock.Anything).Return("cus_new", nil).Once()
		f.gateway.On("CreateCheckoutSession", mock.Anything, mock.Anything).Return(nil, errors.New("rate limited")).Once()

		_, err := f.engine.Checkout(ctx, subscription.CheckoutRequest{UserID: 42, Tier: "pro"})
		require.ErrorIs(t, err, subscription.ErrGateway)
		assert.Equal(t, "cus_new", f.record(42).CustomerID)
	})

	t.Run("customer creation failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.gateway.On("CreateCustomer", mock.Anything, mock.Anything).Return("", errors.New("invalid email")).Once()

		_, err := f.engine.Checkout(ctx, subscription.CheckoutRequest{UserID: 42, Tier: "pro"})
		require.ErrorIs(t, err, subscription.ErrGateway)
		assert.Equal(t, 0, f.store.Len())
	})
}

func TestEngine_Portal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture()

	_, err := f.engine.Portal(ctx, 0)
	assert.ErrorIs(t, err, subscription.ErrUnauthenticated)

	_, err = f.engine.Portal(ctx, 42)
	assert.ErrorIs(t, err, subscription.ErrNoSubscription)

	_, err = f.engine.OnRegister(ctx, 42, "")
	require.NoError(t, err)
	_, err = f.engine.Portal(ctx, 42)
	assert.ErrorIs(t, err, subscription.ErrNoSubscription, "record without customer")

	_, err = f.store.Upsert(ctx, 42, subscription.Patch{CustomerID: subscription.Set("cus_1")})
	require.NoError(t, err)
	f.gateway.On("CreatePortalSession", mock.Anything, subscription.PortalSessionParams{
		CustomerID: "cus_1",
		ReturnURL:  subscription.DefaultConfig().PortalReturnURL,
	}).Return(&subscription.PortalLink{URL: "https://portal.test/s"}, nil).Once()

	link, err := f.engine.Portal(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "https://portal.test/s", link.URL)
	f.gateway.AssertExpectations(t)
}

func TestEngine_OnRegister(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates free record once", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		_, err := f.engine.OnRegister(ctx, 0, "")
		require.ErrorIs(t, err, subscription.ErrInvalidUserID)

		rec, err := f.engine.OnRegister(ctx, 42, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, "free", rec.Tier)
		assert.Equal(t, subscription.StatusActive, rec.Status)
		assert.False(t, rec.TrialUsed)

		// A webhook that arrived before registration must not be overwritten.
		_, err = f.store.Upsert(ctx, 42, subscription.Patch{Tier: subscription.Set("pro")})
		require.NoError(t, err)
		rec, err = f.engine.OnRegister(ctx, 42, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, "pro", rec.Tier)
		f.gateway.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything)
	})

	t.Run("stores the normalized email", func(t *testing.T) {
		t.Parallel()
		f := newFixture()

		rec, err := f.engine.OnRegister(ctx, 42, "  Ada@Example.com ")
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", rec.Email)

		// A record written by an early webhook still learns the address.
		_, err = f.store.Upsert(ctx, 43, subscription.Patch{Tier: subscription.Set("pro")})
		require.NoError(t, err)
		rec, err = f.engine.OnRegister(ctx, 43, "bob@example.com")
		require.NoError(t, err)
		assert.Equal(t, "pro", rec.Tier)
		assert.Equal(t, "bob@example.com", rec.Email)

		got, err := subscription.NewStoreDirectory(f.store).UserIDByEmail(ctx, "BOB@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(43), got)
	})

	t.Run("paid registration tier starts without status", func(t *testing.T) {
		t.Parallel()
		cfg := subscription.DefaultConfig()
		cfg.RegistrationTier = "pro"
		f := newFixture(subscription.WithConfig(cfg))

		rec, err := f.engine.OnRegister(ctx, 42, "")
		require.NoError(t, err)
		assert.Equal(t, "pro", rec.Tier)
		assert.Equal(t, subscription.StatusNone, rec.Status)
		assert.False(t, rec.Entitled())
	})

	t.Run("free status none when not always active", func(t *testing.T) {
		t.Parallel()
		cfg := subscription.DefaultConfig()
		cfg.FreeAlwaysActive = false
		f := newFixture(subscription.WithConfig(cfg))

		rec, err := f.engine.OnRegister(ctx, 42, "")
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusNone, rec.Status)
	})

	t.Run("eager customer creation", func(t *testing.T) {
		t.Parallel()
		cfg := subscription.DefaultConfig()
		cfg.CreateCustomerOnRegister = true
		f := newFixture(subscription.WithConfig(cfg))
		f.gateway.On("CreateCustomer", mock.Anything, subscription.CustomerParams{UserID: 42, Email: "ada@example.com"}).
			Return("cus_42", nil).Once()
		f.gateway.On("CreateCustomer", mock.Anything, subscription.CustomerParams{UserID: 43, Email: "bob@example.com"}).
			Return("", errors.New("down")).Once()

		rec, err := f.engine.OnRegister(ctx, 42, "ada@example.com")
		require.NoError(t, err)
		assert.Equal(t, "cus_42", rec.CustomerID)

		rec, err = f.engine.OnRegister(ctx, 43, "bob@example.com")
		require.NoError(t, err, "customer creation failure does not fail registration")
		assert.Empty(t, rec.CustomerID)
		assert.Equal(t, "free", rec.Tier)
		f.gateway.AssertExpectations(t)
	})
}

func TestEngine_OnLogin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("refreshes known subscription", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		_, err := f.engine.Apply(ctx, subEvent("evt_1", subscription.KindSubscriptionUpdated, proSub()))
		require.NoError(t, err)

		f.pub.reset()

		latest := proSub()
		latest.Status = "unpaid"
		f.gateway.On("GetSubscription", mock.Anything, "sub_1").Return(&latest, nil).Once()

		f.engine.OnLogin(ctx, 42)
		assert.Equal(t, subscription.StatusPastDue, f.record(42).Status)
		f.gateway.AssertExpectations(t)

		n, ok := f.pub.find(subscription.NotifyStatusChanged)
		require.True(t, ok)
		assert.Equal(t, subscription.StatusActive, n.OldStatus)
		assert.Equal(t, subscription.StatusPastDue, n.NewStatus)
		assert.Empty(t, n.EventID)
	})

	t.Run("unchanged status publishes nothing", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		_, err := f.engine.Apply(ctx, subEvent("evt_1", subscription.KindSubscriptionUpdated, proSub()))
		require.NoError(t, err)
		f.pub.reset()

		latest := proSub()
		latest.CurrentPeriodEnd = ptr(t2)
		f.gateway.On("GetSubscription", mock.Anything, "sub_1").Return(&latest, nil).Once()

		f.engine.OnLogin(ctx, 42)
		assert.Equal(t, t2, *f.record(42).CurrentPeriodEnd)
		assert.Empty(t, f.pub.names())
		f.gateway.AssertExpectations(t)
	})

	t.Run("gateway failure keeps the record", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		_, err := f.engine.Apply(ctx, subEvent("evt_1", subscription.KindSubscriptionUpdated, proSub()))
		require.NoError(t, err)
		before := withoutTimestamps(f.record(42))

		f.gateway.On("GetSubscription", mock.Anything, "sub_1").Return(nil, errors.New("down")).Once()
		f.engine.OnLogin(ctx, 42)
		assert.Equal(t, before, withoutTimestamps(f.record(42)))
	})

	t.Run("no subscription skips the gateway", func(t *testing.T) {
		t.Parallel()
		f := newFixture()
		f.engine.OnLogin(ctx, 42)
		_, err := f.engine.OnRegister(ctx, 42, "")
		require.NoError(t, err)
		f.engine.OnLogin(ctx, 42)
		f.gateway.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
	})
}

func TestEngine_ForgetAndRecord(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture()

	_, err := f.engine.OnRegister(ctx, 42, "")
	require.NoError(t, err)
	rec, err := f.engine.Record(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), rec.UserID)

	require.NoError(t, f.engine.Forget(ctx, 42))
	_, err = f.engine.Record(ctx, 42)
	assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
	require.NoError(t, f.engine.Forget(ctx, 42), "forgetting twice is fine")

	assert.ErrorIs(t, f.engine.ResetTrial(ctx, 42), subscription.ErrRecordNotFound)
}
