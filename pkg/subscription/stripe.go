package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	stripesub "github.com/stripe/stripe-go/v82/subscription"

	"github.com/dmitrymomot/subsync/pkg/logger"
)

// StripeGateway implements Gateway with stripe-go. SDK calls are held in
// function fields so tests can replace them.
type StripeGateway struct {
	newCustomer        func(params *stripe.CustomerParams) (*stripe.Customer, error)
	getCustomer        func(id string, params *stripe.CustomerParams) (*stripe.Customer, error)
	getSubscription    func(id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error)
	newCheckoutSession func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	newPortalSession   func(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// NewStripeGateway configures the stripe-go API backend and returns a gateway.
// The SDK keeps its key and backend in package state, so one process talks to
// one Stripe account. Network retries are disabled: the engine surfaces
// failures and the webhook path relies on Stripe's redelivery.
func NewStripeGateway(cfg StripeConfig, log *slog.Logger) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, ErrMissingAPIKey
	}
	if log == nil {
		log = logger.Discard()
	}

	stripe.Key = cfg.SecretKey
	backendCfg := &stripe.BackendConfig{
		HTTPClient:        cfg.httpClient(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     stripeLogger{log: log.With(logger.Component("stripe"))},
	}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg))

	return &StripeGateway{
		newCustomer:        customer.New,
		getCustomer:        customer.Get,
		getSubscription:    stripesub.Get,
		newCheckoutSession: checkoutsession.New,
		newPortalSession:   portalsession.New,
	}, nil
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, p CustomerParams) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if p.Email != "" {
		params.Email = stripe.String(p.Email)
	}
	params.AddMetadata(MetadataUserID, strconv.FormatInt(p.UserID, 10))

	c, err := g.newCustomer(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return c.ID, nil
}

// CustomerEmail returns the email on file for a customer.
func (g *StripeGateway) CustomerEmail(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	c, err := g.getCustomer(customerID, params)
	if err != nil {
		return "", fmt.Errorf("stripe get customer: %w", err)
	}
	if c.Deleted {
		return "", fmt.Errorf("stripe get customer: %s is deleted", customerID)
	}
	return c.Email, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionID string) (*GatewaySubscription, error) {
	if subscriptionID == "" {
		return nil, errors.New("stripe get subscription: id is required")
	}
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	s, err := g.getSubscription(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}
	return fromStripeSubscription(s), nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutLink, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(p.CustomerID),
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(p.PriceID), Quantity: stripe.Int64(1)},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: p.SubscriptionMetadata,
		},
	}
	params.Context = ctx
	if p.TrialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = stripe.Int64(p.TrialDays)
	}
	if uid := p.Metadata[MetadataUserID]; uid != "" {
		params.ClientReferenceID = stripe.String(uid)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}

	s, err := g.newCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	if s.URL == "" {
		return nil, errors.New("stripe create checkout session: no url returned")
	}
	link := &CheckoutLink{URL: s.URL, SessionID: s.ID}
	if s.ExpiresAt > 0 {
		link.ExpiresAt = time.Unix(s.ExpiresAt, 0).UTC()
	}
	return link, nil
}

func (g *StripeGateway) CreatePortalSession(ctx context.Context, p PortalSessionParams) (*PortalLink, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(p.CustomerID),
		ReturnURL: stripe.String(p.ReturnURL),
	}
	params.Context = ctx

	s, err := g.newPortalSession(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create portal session: %w", err)
	}
	if s.URL == "" {
		return nil, errors.New("stripe create portal session: no url returned")
	}
	return &PortalLink{URL: s.URL}, nil
}

func fromStripeSubscription(s *stripe.Subscription) *GatewaySubscription {
	sub := &GatewaySubscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		TrialStart:        unixTime(s.TrialStart),
		TrialEnd:          unixTime(s.TrialEnd),
		Metadata:          s.Metadata,
	}
	if s.Customer != nil {
		sub.CustomerID = s.Customer.ID
		sub.CustomerEmail = s.Customer.Email
	}
	if s.Items != nil && len(s.Items.Data) > 0 {
		item := s.Items.Data[0]
		if item.Price != nil {
			sub.PriceID = item.Price.ID
		}
		sub.CurrentPeriodStart = unixTime(item.CurrentPeriodStart)
		sub.CurrentPeriodEnd = unixTime(item.CurrentPeriodEnd)
	}
	return sub
}

func unixTime(v int64) *time.Time {
	return unixPtr(&v)
}

// stripeLogger routes SDK logs through slog.
type stripeLogger struct {
	log *slog.Logger
}

func (l stripeLogger) Debugf(format string, v ...any) { l.log.Debug(fmt.Sprintf(format, v...)) }
func (l stripeLogger) Infof(format string, v ...any)  { l.log.Debug(fmt.Sprintf(format, v...)) }
func (l stripeLogger) Warnf(format string, v ...any)  { l.log.Warn(fmt.Sprintf(format, v...)) }
func (l stripeLogger) Errorf(format string, v ...any) { l.log.Error(fmt.Sprintf(format, v...)) }
