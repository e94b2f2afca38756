package subscription

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EventKind is the gateway event type string.
type EventKind string

const (
	KindCheckoutCompleted     EventKind = "checkout.session.completed"
	KindSubscriptionCreated   EventKind = "customer.subscription.created"
	KindSubscriptionUpdated   EventKind = "customer.subscription.updated"
	KindSubscriptionDeleted   EventKind = "customer.subscription.deleted"
	KindSubscriptionTrialEnds EventKind = "customer.subscription.trial_will_end"
	KindInvoicePaid           EventKind = "invoice.paid"
	KindInvoicePaymentSuccess EventKind = "invoice.payment_succeeded"
	KindInvoicePaymentFailed  EventKind = "invoice.payment_failed"
)

// Event is a parsed webhook delivery. Exactly one of Checkout, Subscription or
// Invoice is set for known kinds; unknown kinds carry none.
type Event struct {
	ID           string
	Kind         EventKind
	Created      time.Time
	Checkout     *CheckoutSession
	Subscription *GatewaySubscription
	Invoice      *Invoice
}

type wireEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes a webhook body into a typed Event. Unknown event types
// parse successfully with no payload so the caller can acknowledge them.
func ParseEvent(payload []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if w.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrInvalidEvent)
	}

	ev := Event{ID: w.ID, Kind: EventKind(w.Type)}
	if w.Created > 0 {
		ev.Created = time.Unix(w.Created, 0).UTC()
	}

	var err error
	switch ev.Kind {
	case KindCheckoutCompleted:
		ev.Checkout, err = decodeCheckoutSession(w.Data.Object)
	case KindSubscriptionCreated, KindSubscriptionUpdated, KindSubscriptionDeleted, KindSubscriptionTrialEnds:
		ev.Subscription, err = DecodeSubscription(w.Data.Object)
	case KindInvoicePaid, KindInvoicePaymentSuccess, KindInvoicePaymentFailed:
		ev.Invoice, err = decodeInvoice(w.Data.Object)
	default:
		return ev, nil
	}
	if err != nil {
		return Event{}, fmt.Errorf("%w: %s: %v", ErrInvalidEvent, ev.Kind, err)
	}
	return ev, nil
}

// expandable accepts either an id string or an expanded object with an id.
type expandable struct {
	ID    string
	Email string
}

func (e *expandable) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &e.ID)
	}
	var obj struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	e.ID, e.Email = obj.ID, obj.Email
	return nil
}

type wireSubscription struct {
	ID                 string            `json:"id"`
	Object             string            `json:"object"`
	Customer           expandable        `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart *int64            `json:"current_period_start"`
	CurrentPeriodEnd   *int64            `json:"current_period_end"`
	TrialStart         *int64            `json:"trial_start"`
	TrialEnd           *int64            `json:"trial_end"`
	Metadata           map[string]string `json:"metadata"`
	Plan               *struct {
		ID string `json:"id"`
	} `json:"plan"`
	Items struct {
		Data []struct {
			Price *struct {
				ID string `json:"id"`
			} `json:"price"`
			Plan *struct {
				ID string `json:"id"`
			} `json:"plan"`
			CurrentPeriodStart *int64 `json:"current_period_start"`
			CurrentPeriodEnd   *int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// DecodeSubscription parses a subscription object. Period bounds are read from
// the first item, falling back to the legacy top-level fields.
func DecodeSubscription(raw json.RawMessage) (*GatewaySubscription, error) {
	var w wireSubscription
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	if w.ID == "" {
		return nil, fmt.Errorf("subscription id is missing")
	}

	sub := &GatewaySubscription{
		ID:                w.ID,
		CustomerID:        w.Customer.ID,
		CustomerEmail:     w.Customer.Email,
		Status:            w.Status,
		CancelAtPeriodEnd: w.CancelAtPeriodEnd,
		TrialStart:        unixPtr(w.TrialStart),
		TrialEnd:          unixPtr(w.TrialEnd),
		Metadata:          w.Metadata,
	}

	start, end := w.CurrentPeriodStart, w.CurrentPeriodEnd
	if len(w.Items.Data) > 0 {
		item := w.Items.Data[0]
		switch {
		case item.Price != nil && item.Price.ID != "":
			sub.PriceID = item.Price.ID
		case item.Plan != nil:
			sub.PriceID = item.Plan.ID
		}
		if item.CurrentPeriodStart != nil {
			start = item.CurrentPeriodStart
		}
		if item.CurrentPeriodEnd != nil {
			end = item.CurrentPeriodEnd
		}
	}
	if sub.PriceID == "" && w.Plan != nil {
		sub.PriceID = w.Plan.ID
	}
	sub.CurrentPeriodStart = unixPtr(start)
	sub.CurrentPeriodEnd = unixPtr(end)
	return sub, nil
}

type wireCheckoutSession struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          expandable        `json:"customer"`
	CustomerEmail     string            `json:"customer_email"`
	Subscription      expandable        `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	CustomerDetails   *struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

func decodeCheckoutSession(raw json.RawMessage) (*CheckoutSession, error) {
	var w wireCheckoutSession
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	s := &CheckoutSession{
		ID:                w.ID,
		Mode:              w.Mode,
		CustomerID:        w.Customer.ID,
		CustomerEmail:     w.CustomerEmail,
		SubscriptionID:    w.Subscription.ID,
		ClientReferenceID: w.ClientReferenceID,
		Metadata:          w.Metadata,
	}
	if s.CustomerEmail == "" && w.CustomerDetails != nil {
		s.CustomerEmail = w.CustomerDetails.Email
	}
	if s.CustomerEmail == "" {
		s.CustomerEmail = w.Customer.Email
	}
	return s, nil
}

type wireInvoice struct {
	ID            string     `json:"id"`
	Customer      expandable `json:"customer"`
	CustomerEmail string     `json:"customer_email"`
	Subscription  expandable `json:"subscription"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription expandable `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func decodeInvoice(raw json.RawMessage) (*Invoice, error) {
	var w wireInvoice
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, err
	}
	inv := &Invoice{
		ID:             w.ID,
		CustomerID:     w.Customer.ID,
		CustomerEmail:  w.CustomerEmail,
		SubscriptionID: w.Subscription.ID,
	}
	if w.Parent != nil && w.Parent.SubscriptionDetails != nil && w.Parent.SubscriptionDetails.Subscription.ID != "" {
		inv.SubscriptionID = w.Parent.SubscriptionDetails.Subscription.ID
	}
	return inv, nil
}

func unixPtr(v *int64) *time.Time {
	if v == nil || *v <= 0 {
		return nil
	}
	t := time.Unix(*v, 0).UTC()
	return &t
}
