package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subsync/pkg/subscription"
)

func TestMemoryIndex(t *testing.T) {
	t.Parallel()
	testIndex(t, subscription.NewMemoryIndex())
}

func TestRedisIndex(t *testing.T) {
	t.Parallel()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	testIndex(t, subscription.NewRedisIndex(client, "test:", time.Hour))

	t.Run("keys and ttl", func(t *testing.T) {
		idx := subscription.NewRedisIndex(client, "ttl:", time.Minute)
		require.NoError(t, idx.Remember(context.Background(), &subscription.Record{
			UserID: 7, CustomerID: "cus_7", SubscriptionID: "sub_7",
		}))

		got, err := srv.Get("ttl:customer:cus_7")
		require.NoError(t, err)
		assert.Equal(t, "7", got)
		assert.Equal(t, time.Minute, srv.TTL("ttl:subscription:sub_7"))
		members, err := srv.Members("ttl:user:7")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"ttl:customer:cus_7", "ttl:subscription:sub_7"}, members)
	})

	t.Run("unavailable server", func(t *testing.T) {
		down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
		t.Cleanup(func() { _ = down.Close() })
		idx := subscription.NewRedisIndex(down, "x:", 0)

		_, err := idx.LookupCustomer(context.Background(), "cus_1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, subscription.ErrRecordNotFound)
	})
}

func testIndex(t *testing.T, idx subscription.SecondaryIndex) {
	t.Helper()
	ctx := context.Background()

	_, err := idx.LookupCustomer(ctx, "cus_1")
	assert.ErrorIs(t, err, subscription.ErrRecordNotFound)

	rec := &subscription.Record{UserID: 1, CustomerID: "cus_1", SubscriptionID: "sub_1"}
	require.NoError(t, idx.Remember(ctx, rec))
	require.NoError(t, idx.Remember(ctx, &subscription.Record{UserID: 2, CustomerID: "cus_2"}))

	got, err := idx.LookupCustomer(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
	got, err = idx.LookupSubscription(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	require.NoError(t, idx.Forget(ctx, rec))
	_, err = idx.LookupCustomer(ctx, "cus_1")
	assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
	_, err = idx.LookupSubscription(ctx, "sub_1")
	assert.ErrorIs(t, err, subscription.ErrRecordNotFound)

	got, err = idx.LookupCustomer(ctx, "cus_2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got, "other users are untouched")
}

type brokenIndex struct{ subscription.SecondaryIndex }

func (brokenIndex) Remember(context.Context, *subscription.Record) error {
	return errors.New("index down")
}

func (brokenIndex) LookupCustomer(context.Context, string) (int64, error) {
	return 0, errors.New("index down")
}

func TestIndexedStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("primary behind resolves through the index", func(t *testing.T) {
		t.Parallel()
		inner := subscription.NewMemoryStore(storeDefaults)
		idx := subscription.NewMemoryIndex()
		store := subscription.NewIndexedStore(inner, idx, nil)

		_, err := inner.Upsert(ctx, 7, subscription.Patch{Tier: subscription.Set("pro")})
		require.NoError(t, err)
		require.NoError(t, idx.Remember(ctx, &subscription.Record{UserID: 7, CustomerID: "cus_7", SubscriptionID: "sub_7"}))

		got, err := store.FindBySubscriptionID(ctx, "sub_7")
		require.NoError(t, err)
		assert.Equal(t, int64(7), got)
		got, err = store.FindByCustomerID(ctx, "cus_7")
		require.NoError(t, err)
		assert.Equal(t, int64(7), got)
	})

	t.Run("mapping to a record with another id is rejected", func(t *testing.T) {
		t.Parallel()
		inner := subscription.NewMemoryStore(storeDefaults)
		idx := subscription.NewMemoryIndex()
		store := subscription.NewIndexedStore(inner, idx, nil)

		_, err := inner.Upsert(ctx, 7, subscription.Patch{SubscriptionID: subscription.Set("sub_new")})
		require.NoError(t, err)
		require.NoError(t, idx.Remember(ctx, &subscription.Record{UserID: 7, SubscriptionID: "sub_old"}))

		_, err = store.FindBySubscriptionID(ctx, "sub_old")
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
	})

	t.Run("mapping to a deleted record is rejected", func(t *testing.T) {
		t.Parallel()
		idx := subscription.NewMemoryIndex()
		store := subscription.NewIndexedStore(subscription.NewMemoryStore(storeDefaults), idx, nil)
		require.NoError(t, idx.Remember(ctx, &subscription.Record{UserID: 8, SubscriptionID: "sub_8"}))

		_, err := store.FindBySubscriptionID(ctx, "sub_8")
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
	})

	t.Run("cleared mapping is forgotten", func(t *testing.T) {
		t.Parallel()
		idx := subscription.NewMemoryIndex()
		store := subscription.NewIndexedStore(subscription.NewMemoryStore(storeDefaults), idx, nil)

		_, err := store.Upsert(ctx, 1, subscription.Patch{SubscriptionID: subscription.Set("sub_1")})
		require.NoError(t, err)
		got, err := store.FindBySubscriptionID(ctx, "sub_1")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got)

		_, err = store.Upsert(ctx, 1, subscription.Patch{SubscriptionID: subscription.Set("")})
		require.NoError(t, err)
		_, err = idx.LookupSubscription(ctx, "sub_1")
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)

		_, err = store.FindBySubscriptionID(ctx, "sub_1")
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
	})

	t.Run("miss is backfilled from the store", func(t *testing.T) {
		t.Parallel()
		inner := subscription.NewMemoryStore(storeDefaults)
		idx := subscription.NewMemoryIndex()
		store := subscription.NewIndexedStore(inner, idx, nil)

		_, err := inner.Upsert(ctx, 5, subscription.Patch{CustomerID: subscription.Set("cus_5")})
		require.NoError(t, err)

		got, err := store.FindByCustomerID(ctx, "cus_5")
		require.NoError(t, err)
		assert.Equal(t, int64(5), got)

		cached, err := idx.LookupCustomer(ctx, "cus_5")
		require.NoError(t, err)
		assert.Equal(t, int64(5), cached)
	})

	t.Run("index failures do not fail writes", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewIndexedStore(subscription.NewMemoryStore(storeDefaults), brokenIndex{}, nil)

		rec, err := store.Upsert(ctx, 9, subscription.Patch{CustomerID: subscription.Set("cus_9")})
		require.NoError(t, err)
		assert.Equal(t, "cus_9", rec.CustomerID)

		got, err := store.FindByCustomerID(ctx, "cus_9")
		require.NoError(t, err)
		assert.Equal(t, int64(9), got)
	})

	t.Run("delete forgets mappings", func(t *testing.T) {
		t.Parallel()
		idx := subscription.NewMemoryIndex()
		store := subscription.NewIndexedStore(subscription.NewMemoryStore(storeDefaults), idx, nil)

		_, err := store.Upsert(ctx, 3, subscription.Patch{CustomerID: subscription.Set("cus_3")})
		require.NoError(t, err)
		require.NoError(t, store.Delete(ctx, 3))

		_, err = idx.LookupCustomer(ctx, "cus_3")
		assert.ErrorIs(t, err, subscription.ErrRecordNotFound)
		require.NoError(t, store.Delete(ctx, 3))
	})

	t.Run("engine resolves through the index", func(t *testing.T) {
		t.Parallel()
		idx := subscription.NewMemoryIndex()
		catalog := testCatalog()
		store := subscription.NewIndexedStore(subscription.NewMemoryStore(storeDefaults), idx, nil)
		engine := subscription.NewEngine(store, catalog, &MockGateway{})

		_, err := store.Upsert(ctx, 11, subscription.Patch{SubscriptionID: subscription.Set("sub_11")})
		require.NoError(t, err)

		res, err := engine.Apply(ctx, invoiceEvent("evt_1", subscription.KindInvoicePaymentFailed, "sub_11"))
		require.NoError(t, err)
		assert.Equal(t, int64(11), res.UserID)
	})

	t.Run("engine applies invoice while primary is behind", func(t *testing.T) {
		t.Parallel()
		inner := subscription.NewMemoryStore(storeDefaults)
		idx := subscription.NewMemoryIndex()
		store := subscription.NewIndexedStore(inner, idx, nil)
		engine := subscription.NewEngine(store, testCatalog(), &MockGateway{})

		_, err := inner.Upsert(ctx, 7, subscription.Patch{
			Tier:   subscription.Set("pro"),
			Status: subscription.Set(subscription.StatusActive),
		})
		require.NoError(t, err)
		require.NoError(t, idx.Remember(ctx, &subscription.Record{UserID: 7, SubscriptionID: "sub_7"}))

		res, err := engine.Apply(ctx, invoiceEvent("evt_2", subscription.KindInvoicePaymentFailed, "sub_7"))
		require.NoError(t, err)
		assert.Equal(t, subscription.OutcomeApplied, res.Outcome)
		assert.Equal(t, int64(7), res.UserID)

		rec, err := store.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPastDue, rec.Status)
		assert.Equal(t, "pro", rec.Tier)
	})
}
