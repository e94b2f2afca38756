package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmitrymomot/subsync/pkg/logger"
	"github.com/dmitrymomot/subsync/pkg/tier"
)

// Outcome classifies what Apply did with an event.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeIgnored Outcome = "ignored"
)

// Result describes a handled event. Reason is set for ignored events.
type Result struct {
	Kind    EventKind
	Outcome Outcome
	UserID  int64
	Reason  string
}

// Reasons for ignored events.
const (
	ReasonUnsupportedKind   = "unsupported event kind"
	ReasonUnresolvedUser    = "user not resolved"
	ReasonUnknownPrice      = "price not in catalog"
	ReasonNoSubscription    = "invoice has no subscription"
	ReasonNoRecord          = "no local record"
	ReasonMissingPayload    = "event has no payload"
	ReasonNonSubscriptionCO = "checkout session is not a subscription"
)

// UserDirectory resolves local users by email. It is the last resort of user
// resolution and may be omitted.
type UserDirectory interface {
	// UserIDByEmail returns ErrRecordNotFound when no user has the address.
	UserIDByEmail(ctx context.Context, email string) (int64, error)
}

// StoreDirectory is a UserDirectory over the addresses saved by OnRegister
// and Checkout.
type StoreDirectory struct {
	store Store
}

func NewStoreDirectory(store Store) *StoreDirectory {
	if store == nil {
		panic("subscription: store is required")
	}
	return &StoreDirectory{store: store}
}

func (d *StoreDirectory) UserIDByEmail(ctx context.Context, email string) (int64, error) {
	return d.store.FindByEmail(ctx, normalizeEmail(email))
}

// Engine reconciles gateway events and entry point actions into the Store.
type Engine struct {
	store     Store
	catalog   tier.Catalog
	gateway   Gateway
	publisher Publisher
	users     UserDirectory
	log       *slog.Logger
	now       func() time.Time
	cfg       Config
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

func WithUserDirectory(d UserDirectory) EngineOption {
	return func(e *Engine) { e.users = d }
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithConfig(cfg Config) EngineOption {
	return func(e *Engine) { e.cfg = cfg }
}

// NewEngine wires the engine. Store, catalog and gateway are required; it
// panics without them so misconfiguration fails at startup.
func NewEngine(store Store, catalog tier.Catalog, gateway Gateway, opts ...EngineOption) *Engine {
	if store == nil {
		panic("subscription: Store is required")
	}
	if catalog == nil {
		panic("subscription: tier.Catalog is required")
	}
	if gateway == nil {
		panic("subscription: Gateway is required")
	}

	e := &Engine{
		store:     store,
		catalog:   catalog,
		gateway:   gateway,
		publisher: nopPublisher{},
		log:       logger.Discard(),
		now:       func() time.Time { return time.Now().UTC() },
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(logger.Component("subscription_engine"))
	return e
}

// Defaults returns the values stores should use for fields a patch leaves unset.
func (e *Engine) Defaults() Defaults {
	return DefaultsFor(e.catalog, e.cfg)
}

// DefaultsFor derives store defaults from the catalog and configuration.
func DefaultsFor(catalog tier.Catalog, cfg Config) Defaults {
	return Defaults{Tier: catalog.DefaultFree(), Status: cfg.FreeStatus()}
}

// Apply reconciles one gateway event.
func (e *Engine) Apply(ctx context.Context, ev Event) (Result, error) {
	start := time.Now()
	log := e.log.With(logger.EventType(string(ev.Kind)), logger.EventID(ev.ID))

	var (
		res Result
		err error
	)
	switch ev.Kind {
	case KindCheckoutCompleted:
		res, err = e.onCheckoutCompleted(ctx, ev)
	case KindSubscriptionCreated:
		res, err = e.onSubscriptionCreated(ctx, ev)
	case KindSubscriptionUpdated:
		res, err = e.onSubscriptionUpdated(ctx, ev)
	case KindSubscriptionDeleted:
		res, err = e.onSubscriptionDeleted(ctx, ev)
	case KindSubscriptionTrialEnds:
		res, err = e.onTrialWillEnd(ctx, ev)
	case KindInvoicePaid, KindInvoicePaymentSuccess:
		res, err = e.onInvoicePaid(ctx, ev)
	case KindInvoicePaymentFailed:
		res, err = e.onInvoiceFailed(ctx, ev)
	default:
		res = ignored(ReasonUnsupportedKind)
	}
	res.Kind = ev.Kind

	attrs := []any{logger.Duration(time.Since(start))}
	if res.UserID > 0 {
		attrs = append(attrs, logger.UserID(res.UserID))
	}
	switch {
	case err != nil:
		log.ErrorContext(ctx, "gateway event failed", append(attrs, logger.Error(err))...)
	case res.Outcome == OutcomeIgnored:
		log.InfoContext(ctx, "gateway event ignored", append(attrs, logger.Reason(res.Reason))...)
	default:
		log.InfoContext(ctx, "gateway event applied", attrs...)
	}
	return res, err
}

func ignored(reason string) Result {
	return Result{Outcome: OutcomeIgnored, Reason: reason}
}

func ignoredFor(userID int64, reason string) Result {
	return Result{Outcome: OutcomeIgnored, UserID: userID, Reason: reason}
}

func applied(userID int64) Result {
	return Result{Outcome: OutcomeApplied, UserID: userID}
}

// prior loads the current record, returning nil when there is none.
func (e *Engine) prior(ctx context.Context, userID int64) (*Record, error) {
	rec, err := e.store.Get(ctx, userID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	return rec, err
}

// gatewayCtx bounds a single outbound gateway call.
func (e *Engine) gatewayCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.GatewayTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.GatewayTimeout)
}

func (e *Engine) fetchSubscription(ctx context.Context, subscriptionID string) (*GatewaySubscription, error) {
	ctx, cancel := e.gatewayCtx(ctx)
	defer cancel()
	sub, err := e.gateway.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return nil, errors.Join(ErrGateway, err)
	}
	return sub, nil
}

// publish never fails the caller: errors and panics are logged.
func (e *Engine) publish(ctx context.Context, n Notification) {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = e.now()
	}
	if err := safePublish(ctx, e.publisher, n); err != nil {
		e.log.WarnContext(ctx, "failed to publish notification",
			logger.Notification(n.Name), logger.UserID(n.UserID), logger.Error(err))
	}
}

// tierOf returns the record's tier, or the default free tier when there is no record.
func (e *Engine) tierOf(rec *Record) string {
	if rec == nil {
		return e.catalog.DefaultFree()
	}
	return rec.Tier
}

func statusOf(rec *Record) Status {
	if rec == nil {
		return StatusNone
	}
	return rec.Status
}

func (e *Engine) publishTierChange(ctx context.Context, eventID string, before *Record, after *Record) {
	oldTier := e.tierOf(before)
	if oldTier == after.Tier {
		return
	}
	e.publish(ctx, Notification{
		Name:       NotifyTierChanged,
		UserID:     after.UserID,
		EventID:    eventID,
		CustomerID: after.CustomerID,
		OldTier:    oldTier,
		NewTier:    after.Tier,
		OldStatus:  statusOf(before),
		NewStatus:  after.Status,
	})
}

func (e *Engine) publishStatusChange(ctx context.Context, eventID string, before *Record, after *Record) {
	e.publish(ctx, Notification{
		Name:       NotifyStatusChanged,
		UserID:     after.UserID,
		EventID:    eventID,
		CustomerID: after.CustomerID,
		OldTier:    e.tierOf(before),
		NewTier:    after.Tier,
		OldStatus:  statusOf(before),
		NewStatus:  after.Status,
	})
}
