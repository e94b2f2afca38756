package subscription

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/dmitrymomot/subsync/pkg/logger"
	"github.com/dmitrymomot/subsync/pkg/tier"
)

// CheckoutRequest asks for a hosted checkout of a paid tier.
type CheckoutRequest struct {
	UserID int64
	Email  string
	Tier   string
	Period tier.Period
}

// Checkout creates a hosted checkout session for an authenticated user.
//
// A gateway customer is created on first use and persisted before the session
// is requested; that write is not undone if the session call then fails.
// A trial is offered only when trials are enabled and the user never had one.
func (e *Engine) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.UserID <= 0 {
		return nil, ErrUnauthenticated
	}
	def, ok := e.catalog.Tier(req.Tier)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTierNotFound, req.Tier)
	}
	if def.Free {
		return nil, fmt.Errorf("%w: %q", ErrFreeTier, req.Tier)
	}
	period := req.Period
	if period == "" {
		period = tier.PeriodMonthly
	}
	priceID := def.PriceID(period)
	if priceID == "" {
		return nil, fmt.Errorf("%w: %s/%s", ErrPriceNotConfigured, req.Tier, period)
	}

	rec, err := e.prior(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	customerID := ""
	if rec != nil {
		customerID = rec.CustomerID
	}
	if customerID == "" {
		customerID, err = e.createCustomer(ctx, req.UserID, req.Email)
		if err != nil {
			return nil, err
		}
		patch := Patch{CustomerID: Set(customerID)}
		if addr := normalizeEmail(req.Email); addr != "" && (rec == nil || rec.Email == "") {
			patch.Email = Set(addr)
		}
		if rec, err = e.store.Upsert(ctx, req.UserID, patch); err != nil {
			return nil, err
		}
	}

	var trialDays int64
	if e.cfg.TrialDays > 0 && (rec == nil || !rec.TrialUsed) {
		trialDays = e.cfg.TrialDays
	}

	uid := strconv.FormatInt(req.UserID, 10)
	gctx, cancel := e.gatewayCtx(ctx)
	defer cancel()
	link, err := e.gateway.CreateCheckoutSession(gctx, CheckoutSessionParams{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: e.cfg.SuccessURL,
		CancelURL:  e.cfg.CancelURL,
		TrialDays:  trialDays,
		Metadata: map[string]string{
			MetadataUserID:        uid,
			MetadataTier:          req.Tier,
			MetadataBillingPeriod: string(period),
		},
		SubscriptionMetadata: map[string]string{
			MetadataUserID: uid,
			MetadataTier:   req.Tier,
		},
	})
	if err != nil {
		return nil, errors.Join(ErrGateway, err)
	}

	e.log.InfoContext(ctx, "checkout session created",
		logger.UserID(req.UserID), logger.Tier(req.Tier), logger.CustomerID(customerID))
	return link, nil
}

// Portal creates a billing portal session for a user with a gateway customer.
func (e *Engine) Portal(ctx context.Context, userID int64) (*PortalLink, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}
	rec, err := e.prior(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.CustomerID == "" {
		return nil, ErrNoSubscription
	}

	gctx, cancel := e.gatewayCtx(ctx)
	defer cancel()
	link, err := e.gateway.CreatePortalSession(gctx, PortalSessionParams{
		CustomerID: rec.CustomerID,
		ReturnURL:  e.cfg.PortalReturnURL,
	})
	if err != nil {
		return nil, errors.Join(ErrGateway, err)
	}
	return link, nil
}

// OnRegister creates the initial record for a new account. It never overwrites
// the billing fields of a record that already exists, e.g. one written by an
// early webhook, but it does store the account email for later resolution.
func (e *Engine) OnRegister(ctx context.Context, userID int64, email string) (*Record, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}

	tierID := e.cfg.RegistrationTier
	if tierID == "" {
		tierID = e.catalog.DefaultFree()
	}
	status := StatusNone
	if def, ok := e.catalog.Tier(tierID); !ok || def.Free {
		status = e.cfg.FreeStatus()
	}

	addr := normalizeEmail(email)
	patch := Patch{Tier: Set(tierID), Status: Set(status)}
	if addr != "" {
		patch.Email = Set(addr)
	}

	rec, created, err := e.store.CreateIfAbsent(ctx, userID, patch)
	if err != nil {
		return nil, err
	}
	if !created && addr != "" && rec.Email != addr {
		if rec, err = e.store.Upsert(ctx, userID, Patch{Email: Set(addr)}); err != nil {
			return nil, err
		}
	}
	if !created || !e.cfg.CreateCustomerOnRegister || rec.CustomerID != "" {
		return rec, nil
	}

	// Eager customer creation is a convenience; checkout creates one on demand.
	customerID, err := e.createCustomer(ctx, userID, email)
	if err != nil {
		e.log.WarnContext(ctx, "customer creation on registration failed",
			logger.UserID(userID), logger.Error(err))
		return rec, nil
	}
	return e.store.Upsert(ctx, userID, Patch{CustomerID: Set(customerID)})
}

// OnLogin refreshes the record from the gateway when the user has a known
// subscription. A status notification is published only when the refresh
// changed the status. Failures are logged and the local record is left as is.
func (e *Engine) OnLogin(ctx context.Context, userID int64) {
	log := e.log.With(logger.UserID(userID))

	rec, err := e.prior(ctx, userID)
	if err != nil {
		log.WarnContext(ctx, "login sync: load record failed", logger.Error(err))
		return
	}
	if rec == nil || rec.SubscriptionID == "" {
		return
	}

	sub, err := e.fetchSubscription(ctx, rec.SubscriptionID)
	if err != nil {
		log.WarnContext(ctx, "login sync: subscription fetch failed",
			logger.SubscriptionID(rec.SubscriptionID), logger.Error(err))
		return
	}
	after, err := e.reconcileSubscription(ctx, "", userID, rec, sub)
	if err != nil {
		log.WarnContext(ctx, "login sync: store failed", logger.Error(err))
		return
	}
	if after.Status != rec.Status {
		e.publishStatusChange(ctx, "", rec, after)
	}
	log.DebugContext(ctx, "login sync applied", logger.SubscriptionID(sub.ID))
}

// ResetTrial clears the trial flag so the user is offered a trial again.
func (e *Engine) ResetTrial(ctx context.Context, userID int64) error {
	if err := e.store.ResetTrial(ctx, userID); err != nil {
		return err
	}
	e.log.InfoContext(ctx, "trial reset", logger.UserID(userID))
	return nil
}

// Forget deletes the user's record. Used on account teardown only.
func (e *Engine) Forget(ctx context.Context, userID int64) error {
	if err := e.store.Delete(ctx, userID); err != nil {
		return err
	}
	e.log.InfoContext(ctx, "subscription record deleted", logger.UserID(userID))
	return nil
}

// Record returns the stored record for a user.
func (e *Engine) Record(ctx context.Context, userID int64) (*Record, error) {
	return e.store.Get(ctx, userID)
}

func (e *Engine) createCustomer(ctx context.Context, userID int64, email string) (string, error) {
	gctx, cancel := e.gatewayCtx(ctx)
	defer cancel()
	id, err := e.gateway.CreateCustomer(gctx, CustomerParams{UserID: userID, Email: email})
	if err != nil {
		return "", errors.Join(ErrGateway, err)
	}
	return id, nil
}
