package subscription

import (
	"context"
	"time"
)

// Gateway is the payment provider as seen by the Engine.
type Gateway interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (string, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*GatewaySubscription, error)
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutLink, error)
	CreatePortalSession(ctx context.Context, params PortalSessionParams) (*PortalLink, error)
}

// CustomerParams describes a gateway customer to create.
type CustomerParams struct {
	UserID int64
	Email  string
}

// CheckoutSessionParams is a subscription-mode checkout with a single line item.
type CheckoutSessionParams struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	// TrialDays is omitted from the request when zero.
	TrialDays int64
	// Metadata is attached to the session; SubscriptionMetadata to the
	// subscription it creates, which later lifecycle events carry.
	Metadata             map[string]string
	SubscriptionMetadata map[string]string
}

type PortalSessionParams struct {
	CustomerID string
	ReturnURL  string
}

// CheckoutLink is a hosted checkout page.
type CheckoutLink struct {
	URL       string    `json:"url"`
	SessionID string    `json:"session_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// PortalLink is a pre-authenticated billing portal page.
type PortalLink struct {
	URL string `json:"url"`
}

// GatewaySubscription is the gateway's subscription object, reduced to the
// fields reconciliation reads.
type GatewaySubscription struct {
	ID                 string
	CustomerID         string
	CustomerEmail      string
	Status             string
	CancelAtPeriodEnd  bool
	PriceID            string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	TrialStart         *time.Time
	TrialEnd           *time.Time
	Metadata           map[string]string
}

// CheckoutSession is a completed checkout session.
type CheckoutSession struct {
	ID                string
	Mode              string
	CustomerID        string
	CustomerEmail     string
	SubscriptionID    string
	ClientReferenceID string
	Metadata          map[string]string
}

// Invoice is reduced to what ties it to a subscription.
type Invoice struct {
	ID             string
	CustomerID     string
	CustomerEmail  string
	SubscriptionID string
}
