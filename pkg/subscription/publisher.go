package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Notification names.
const (
	NotifyTierChanged          = "tier_changed"
	NotifyStatusChanged        = "status_changed"
	NotifyCheckoutCompleted    = "checkout_completed"
	NotifySubscriptionCanceled = "subscription_canceled"
	NotifyPaymentSucceeded     = "payment_succeeded"
	NotifyPaymentFailed        = "payment_failed"
	NotifyTrialWillEnd         = "trial_will_end"
)

// Notification is a domain event emitted after a reconciliation.
type Notification struct {
	Name       string         `json:"name"`
	UserID     int64          `json:"user_id"`
	EventID    string         `json:"event_id,omitempty"`
	CustomerID string         `json:"customer_id,omitempty"`
	OldTier    string         `json:"old_tier,omitempty"`
	NewTier    string         `json:"new_tier,omitempty"`
	OldStatus  Status         `json:"old_status,omitempty"`
	NewStatus  Status         `json:"new_status,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher delivers notifications to listeners. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, n Notification) error

func (f PublisherFunc) Publish(ctx context.Context, n Notification) error { return f(ctx, n) }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Notification) error { return nil }

// Publishers fans a notification out to every publisher. A failing or
// panicking publisher does not stop the others; errors are joined.
func Publishers(ps ...Publisher) Publisher {
	list := make([]Publisher, 0, len(ps))
	for _, p := range ps {
		if p != nil {
			list = append(list, p)
		}
	}
	return PublisherFunc(func(ctx context.Context, n Notification) error {
		var errs []error
		for _, p := range list {
			if err := safePublish(ctx, p, n); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

func safePublish(ctx context.Context, p Publisher, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("publisher panic on %s: %v", n.Name, r)
		}
	}()
	return p.Publish(ctx, n)
}
