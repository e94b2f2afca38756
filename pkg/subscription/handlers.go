package subscription

import (
	"context"
	"time"

	"github.com/dmitrymomot/subsync/pkg/logger"
)

func (e *Engine) onCheckoutCompleted(ctx context.Context, ev Event) (Result, error) {
	s := ev.Checkout
	if s == nil {
		return ignored(ReasonMissingPayload), nil
	}
	if s.Mode != "" && s.Mode != "subscription" {
		return ignored(ReasonNonSubscriptionCO), nil
	}

	userID, ok, err := e.resolveUser(ctx, userHints{
		Metadata:       s.Metadata,
		ReferenceID:    s.ClientReferenceID,
		SubscriptionID: s.SubscriptionID,
		CustomerID:     s.CustomerID,
		Email:          s.CustomerEmail,
	})
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{}, &UnresolvedUserError{
			EventID:        ev.ID,
			SubscriptionID: s.SubscriptionID,
			CustomerID:     s.CustomerID,
			Email:          s.CustomerEmail,
		}
	}

	before, err := e.prior(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	// The session alone proves payment; a failed fetch only loses period data.
	var sub *GatewaySubscription
	if s.SubscriptionID != "" {
		sub, err = e.fetchSubscription(ctx, s.SubscriptionID)
		if err != nil {
			e.log.WarnContext(ctx, "subscription fetch failed, using checkout session data",
				logger.UserID(userID), logger.SubscriptionID(s.SubscriptionID), logger.Error(err))
			sub = nil
		}
	}

	var patch Patch
	if sub != nil {
		patch = e.subscriptionPatch(before, sub)
	} else {
		patch = Patch{
			Status:     Set(StatusActive),
			CanceledAt: Set[*time.Time](nil),
		}
		if s.SubscriptionID != "" {
			patch.SubscriptionID = Set(s.SubscriptionID)
		}
	}
	if s.CustomerID != "" {
		patch.CustomerID = Set(s.CustomerID)
	}
	if tierID, ok := e.checkoutTier(ctx, userID, s, sub); ok {
		patch.Tier = Set(tierID)
	}

	after, err := e.store.Upsert(ctx, userID, patch)
	if err != nil {
		return Result{}, err
	}

	e.publishTierChange(ctx, ev.ID, before, after)
	e.publish(ctx, Notification{
		Name:       NotifyCheckoutCompleted,
		UserID:     userID,
		EventID:    ev.ID,
		CustomerID: after.CustomerID,
		OldTier:    e.tierOf(before),
		NewTier:    after.Tier,
		OldStatus:  statusOf(before),
		NewStatus:  after.Status,
		Data:       map[string]any{"session_id": s.ID},
	})
	return applied(userID), nil
}

// checkoutTier prefers the tier named in metadata, then the subscription's
// price, then the configured default paid tier. It reports false when none of
// them is a tier the catalog knows, and the record keeps its tier.
func (e *Engine) checkoutTier(ctx context.Context, userID int64, s *CheckoutSession, sub *GatewaySubscription) (string, bool) {
	if id := s.Metadata[MetadataTier]; id != "" {
		if _, ok := e.catalog.Tier(id); ok {
			return id, true
		}
	}
	if sub != nil {
		if id, ok := e.catalog.TierByPrice(sub.PriceID); ok {
			return id, true
		}
	}
	if def, ok := e.catalog.Tier(e.cfg.DefaultPaidTier); ok && !def.Free {
		return e.cfg.DefaultPaidTier, true
	}
	e.log.WarnContext(ctx, "checkout tier unknown and default paid tier not in catalog, keeping tier",
		logger.UserID(userID), logger.Tier(e.cfg.DefaultPaidTier))
	return "", false
}

func (e *Engine) onSubscriptionCreated(ctx context.Context, ev Event) (Result, error) {
	sub := ev.Subscription
	if sub == nil {
		return ignored(ReasonMissingPayload), nil
	}

	userID, ok, err := e.resolveSubscriptionUser(ctx, sub)
	if err != nil || !ok {
		return ignored(ReasonUnresolvedUser), err
	}

	tierID, known := e.catalog.TierByPrice(sub.PriceID)
	if !known {
		e.log.WarnContext(ctx, "subscription price not in catalog",
			logger.UserID(userID), logger.PriceID(sub.PriceID))
		return ignoredFor(userID, ReasonUnknownPrice), nil
	}

	before, err := e.prior(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	patch := e.subscriptionPatch(before, sub)
	patch.Tier = Set(tierID)
	after, err := e.store.Upsert(ctx, userID, patch)
	if err != nil {
		return Result{}, err
	}

	e.publishTierChange(ctx, ev.ID, before, after)
	return applied(userID), nil
}

func (e *Engine) onSubscriptionUpdated(ctx context.Context, ev Event) (Result, error) {
	sub := ev.Subscription
	if sub == nil {
		return ignored(ReasonMissingPayload), nil
	}

	userID, ok, err := e.resolveSubscriptionUser(ctx, sub)
	if err != nil || !ok {
		return ignored(ReasonUnresolvedUser), err
	}

	before, err := e.prior(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	after, err := e.reconcileSubscription(ctx, ev.ID, userID, before, sub)
	if err != nil {
		return Result{}, err
	}
	e.publishStatusChange(ctx, ev.ID, before, after)
	return applied(userID), nil
}

// reconcileSubscription writes the full subscription snapshot and publishes a
// tier change. An unknown price keeps the existing tier instead of guessing.
// Callers decide whether the status notification goes out.
func (e *Engine) reconcileSubscription(ctx context.Context, eventID string, userID int64, before *Record, sub *GatewaySubscription) (*Record, error) {
	patch := e.subscriptionPatch(before, sub)
	if tierID, ok := e.catalog.TierByPrice(sub.PriceID); ok {
		patch.Tier = Set(tierID)
	} else {
		e.log.WarnContext(ctx, "subscription price not in catalog, keeping tier",
			logger.UserID(userID), logger.PriceID(sub.PriceID))
	}

	after, err := e.store.Upsert(ctx, userID, patch)
	if err != nil {
		return nil, err
	}

	e.publishTierChange(ctx, eventID, before, after)
	return after, nil
}

func (e *Engine) onSubscriptionDeleted(ctx context.Context, ev Event) (Result, error) {
	sub := ev.Subscription
	if sub == nil {
		return ignored(ReasonMissingPayload), nil
	}

	userID, ok, err := e.resolveSubscriptionUser(ctx, sub)
	if err != nil || !ok {
		return ignored(ReasonUnresolvedUser), err
	}

	before, err := e.prior(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	patch := Patch{
		Tier:               Set(e.catalog.DefaultFree()),
		Status:             Set(StatusInactive),
		SubscriptionID:     Set(""),
		CurrentPeriodStart: Set[*time.Time](nil),
		CurrentPeriodEnd:   Set[*time.Time](nil),
		CanceledAt:         Set(e.cancelStamp(before)),
	}
	if before == nil {
		// Without history assume the trial was consumed rather than re-offer it.
		patch.TrialUsed = Set(true)
		if sub.CustomerID != "" {
			patch.CustomerID = Set(sub.CustomerID)
		}
	}

	after, err := e.store.Upsert(ctx, userID, patch)
	if err != nil {
		return Result{}, err
	}

	e.publishTierChange(ctx, ev.ID, before, after)
	e.publish(ctx, Notification{
		Name:       NotifySubscriptionCanceled,
		UserID:     userID,
		EventID:    ev.ID,
		CustomerID: after.CustomerID,
		OldTier:    e.tierOf(before),
		NewTier:    after.Tier,
		OldStatus:  statusOf(before),
		NewStatus:  after.Status,
		Data:       map[string]any{"subscription_id": sub.ID},
	})
	return applied(userID), nil
}

func (e *Engine) onTrialWillEnd(ctx context.Context, ev Event) (Result, error) {
	sub := ev.Subscription
	if sub == nil {
		return ignored(ReasonMissingPayload), nil
	}

	userID, ok, err := e.resolveSubscriptionUser(ctx, sub)
	if err != nil || !ok {
		return ignored(ReasonUnresolvedUser), err
	}

	data := map[string]any{"subscription_id": sub.ID}
	if sub.TrialEnd != nil {
		data["trial_end"] = *sub.TrialEnd
	}
	e.publish(ctx, Notification{
		Name:       NotifyTrialWillEnd,
		UserID:     userID,
		EventID:    ev.ID,
		CustomerID: sub.CustomerID,
		Data:       data,
	})
	return applied(userID), nil
}

func (e *Engine) onInvoicePaid(ctx context.Context, ev Event) (Result, error) {
	userID, before, res, err := e.invoiceRecord(ctx, ev)
	if before == nil {
		return res, err
	}

	// Invoices may lack authoritative period bounds, so the subscription is re-read.
	sub, err := e.fetchSubscription(ctx, ev.Invoice.SubscriptionID)
	if err != nil {
		return Result{}, err
	}

	after, err := e.store.Upsert(ctx, userID, Patch{
		Status:             Set(StatusActive),
		CurrentPeriodStart: Set(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   Set(sub.CurrentPeriodEnd),
	})
	if err != nil {
		return Result{}, err
	}

	if before.Status != after.Status {
		e.publishStatusChange(ctx, ev.ID, before, after)
	}
	e.publish(ctx, Notification{
		Name:       NotifyPaymentSucceeded,
		UserID:     userID,
		EventID:    ev.ID,
		CustomerID: after.CustomerID,
		NewTier:    after.Tier,
		OldStatus:  before.Status,
		NewStatus:  after.Status,
		Data:       map[string]any{"invoice_id": ev.Invoice.ID},
	})
	return applied(userID), nil
}

func (e *Engine) onInvoiceFailed(ctx context.Context, ev Event) (Result, error) {
	userID, before, res, err := e.invoiceRecord(ctx, ev)
	if before == nil {
		return res, err
	}

	after, err := e.store.Upsert(ctx, userID, Patch{Status: Set(StatusPastDue)})
	if err != nil {
		return Result{}, err
	}

	e.publishStatusChange(ctx, ev.ID, before, after)
	e.publish(ctx, Notification{
		Name:       NotifyPaymentFailed,
		UserID:     userID,
		EventID:    ev.ID,
		CustomerID: after.CustomerID,
		NewTier:    after.Tier,
		OldStatus:  before.Status,
		NewStatus:  after.Status,
		Data:       map[string]any{"invoice_id": ev.Invoice.ID},
	})
	return applied(userID), nil
}

// invoiceRecord resolves an invoice to an existing record through its
// subscription id. A nil record means the event is to be ignored (res) or
// failed (err).
func (e *Engine) invoiceRecord(ctx context.Context, ev Event) (int64, *Record, Result, error) {
	inv := ev.Invoice
	if inv == nil {
		return 0, nil, ignored(ReasonMissingPayload), nil
	}
	if inv.SubscriptionID == "" {
		return 0, nil, ignored(ReasonNoSubscription), nil
	}

	userID, ok, err := e.resolveUser(ctx, userHints{SubscriptionID: inv.SubscriptionID})
	if err != nil {
		return 0, nil, Result{}, err
	}
	if !ok {
		return 0, nil, ignored(ReasonUnresolvedUser), nil
	}

	rec, err := e.prior(ctx, userID)
	if err != nil {
		return 0, nil, Result{}, err
	}
	if rec == nil {
		return 0, nil, ignoredFor(userID, ReasonNoRecord), nil
	}
	return userID, rec, Result{}, nil
}

func (e *Engine) resolveSubscriptionUser(ctx context.Context, sub *GatewaySubscription) (int64, bool, error) {
	return e.resolveUser(ctx, userHints{
		Metadata:       sub.Metadata,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Email:          sub.CustomerEmail,
	})
}

// subscriptionPatch derives every subscription-owned field from the snapshot.
// trial_used is only ever raised; canceled_at is kept across redeliveries of a
// cancellation and cleared once the subscription is entitled again.
func (e *Engine) subscriptionPatch(before *Record, sub *GatewaySubscription) Patch {
	status := foldStatus(sub)
	p := Patch{
		SubscriptionID:     Set(sub.ID),
		Status:             Set(status),
		CurrentPeriodStart: Set(sub.CurrentPeriodStart),
		CurrentPeriodEnd:   Set(sub.CurrentPeriodEnd),
	}
	if sub.CustomerID != "" {
		p.CustomerID = Set(sub.CustomerID)
	}
	if sub.TrialStart != nil {
		p.TrialUsed = Set(true)
	}
	switch {
	case status == StatusCanceled:
		p.CanceledAt = Set(e.cancelStamp(before))
	case status.Entitled():
		p.CanceledAt = Set[*time.Time](nil)
	}
	return p
}

// cancelStamp keeps an existing cancellation time so redelivered events converge.
func (e *Engine) cancelStamp(before *Record) *time.Time {
	if before != nil && before.CanceledAt != nil &&
		(before.Status == StatusCanceled || before.Status == StatusInactive) {
		return cloneTime(before.CanceledAt)
	}
	now := e.now()
	return &now
}
