package subscription_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/subsync/pkg/subscription"
	"github.com/dmitrymomot/subsync/pkg/tier"
)

// MockGateway is a mock implementation of subscription.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCustomer(ctx context.Context, params subscription.CustomerParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) GetSubscription(ctx context.Context, subscriptionID string) (*subscription.GatewaySubscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.GatewaySubscription), args.Error(1)
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, params subscription.CheckoutSessionParams) (*subscription.CheckoutLink, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.CheckoutLink), args.Error(1)
}

func (m *MockGateway) CreatePortalSession(ctx context.Context, params subscription.PortalSessionParams) (*subscription.PortalLink, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.PortalLink), args.Error(1)
}

// recorder collects published notifications.
type recorder struct {
	mu   sync.Mutex
	sent []subscription.Notification
}

func (r *recorder) Publish(_ context.Context, n subscription.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recorder) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Name)
	}
	return out
}

func (r *recorder) find(name string) (subscription.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.sent {
		if n.Name == name {
			return n, true
		}
	}
	return subscription.Notification{}, false
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}

type users map[string]int64

func (u users) UserIDByEmail(_ context.Context, email string) (int64, error) {
	if id, ok := u[email]; ok {
		return id, nil
	}
	return 0, subscription.ErrRecordNotFound
}

var (
	t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 = t0.AddDate(0, 1, 0)
	t2 = t1.AddDate(0, 1, 0)
)

func ptr(t time.Time) *time.Time { return &t }

func testCatalog() *tier.Static {
	return tier.New([]tier.Definition{
		{ID: "free", Name: "Free", Free: true},
		{ID: "pro", Name: "Pro", MonthlyPriceID: "price_pro_m", YearlyPriceID: "price_pro_y"},
		{ID: "fleet", Name: "Fleet", MonthlyPriceID: "price_fleet_m"},
	})
}

type fixture struct {
	engine  *subscription.Engine
	store   *subscription.MemoryStore
	gateway *MockGateway
	pub     *recorder
	clock   *clock
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFixture(opts ...subscription.EngineOption) *fixture {
	catalog := testCatalog()
	cfg := subscription.DefaultConfig()
	clk := &clock{now: t0}
	store := subscription.NewMemoryStore(subscription.DefaultsFor(catalog, cfg)).WithClock(clk.Now)
	gw := &MockGateway{}
	pub := &recorder{}

	all := append([]subscription.EngineOption{
		subscription.WithConfig(cfg),
		subscription.WithPublisher(pub),
		subscription.WithClock(clk.Now),
	}, opts...)
	return &fixture{
		engine:  subscription.NewEngine(store, catalog, gw, all...),
		store:   store,
		gateway: gw,
		pub:     pub,
		clock:   clk,
	}
}

func (f *fixture) record(userID int64) *subscription.Record {
	rec, err := f.store.Get(context.Background(), userID)
	if err != nil {
		return nil
	}
	return rec
}

func subEvent(id string, kind subscription.EventKind, sub subscription.GatewaySubscription) subscription.Event {
	return subscription.Event{ID: id, Kind: kind, Subscription: &sub}
}

func invoiceEvent(id string, kind subscription.EventKind, subscriptionID string) subscription.Event {
	return subscription.Event{ID: id, Kind: kind, Invoice: &subscription.Invoice{ID: "in_" + id, SubscriptionID: subscriptionID}}
}

// proSub is an active monthly pro subscription for user 42.
func proSub() subscription.GatewaySubscription {
	return subscription.GatewaySubscription{
		ID:                 "sub_1",
		CustomerID:         "cus_1",
		Status:             "active",
		PriceID:            "price_pro_m",
		CurrentPeriodStart: ptr(t0),
		CurrentPeriodEnd:   ptr(t1),
		Metadata:           map[string]string{subscription.MetadataUserID: "42"},
	}
}

// withoutTimestamps drops the store bookkeeping fields so snapshots compare by content.
func withoutTimestamps(r *subscription.Record) subscription.Record {
	c := *r.Clone()
	c.CreatedAt, c.UpdatedAt = time.Time{}, time.Time{}
	return c
}
