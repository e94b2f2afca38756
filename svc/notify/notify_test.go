package notify_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subsync/pkg/email"
	"github.com/dmitrymomot/subsync/pkg/subscription"
	"github.com/dmitrymomot/subsync/pkg/tier"
	"github.com/dmitrymomot/subsync/svc/notify"
)

type outbox struct {
	mu   sync.Mutex
	sent []email.SendEmailParams
	err  error
}

func (o *outbox) SendEmail(_ context.Context, p email.SendEmailParams) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, p)
	return nil
}

type lookup map[string]string

func (l lookup) CustomerEmail(_ context.Context, customerID string) (string, error) {
	if customerID == "cus_err" {
		return "", errors.New("gateway down")
	}
	return l[customerID], nil
}

func newNotifier(box *outbox) *notify.Notifier {
	catalog := tier.New([]tier.Definition{
		{ID: "free", Name: "Free", Free: true},
		{ID: "pro", Name: "Pro", MonthlyPriceID: "price_pro_m"},
		{ID: "team_plus"},
	})
	return notify.New(box, lookup{"cus_1": "ada@example.com", "cus_blank": ""}, catalog,
		notify.WithAppName("Acme"), notify.WithSupportEmail("help@acme.test"))
}

func TestNotifier_Publish(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name        string
		note        subscription.Notification
		wantSubject string
		wantBody    []string
	}{
		{
			name: "trial will end",
			note: subscription.Notification{
				Name: subscription.NotifyTrialWillEnd, UserID: 1, CustomerID: "cus_1",
				Data: map[string]any{"trial_end": time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)},
			},
			wantSubject: "Your Acme trial ends soon",
			wantBody:    []string{"March 15, 2025", "help@acme.test"},
		},
		{
			name: "payment failed",
			note: subscription.Notification{
				Name: subscription.NotifyPaymentFailed, UserID: 1, CustomerID: "cus_1", NewTier: "pro",
			},
			wantSubject: "Payment failed for your Acme subscription",
			wantBody:    []string{"your Pro plan"},
		},
		{
			name: "canceled",
			note: subscription.Notification{
				Name: subscription.NotifySubscriptionCanceled, UserID: 1, CustomerID: "cus_1", OldTier: "team_plus", NewTier: "free",
			},
			wantSubject: "Your Acme subscription has ended",
			wantBody:    []string{"Team Plus subscription", "the Free plan"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			box := &outbox{}
			require.NoError(t, newNotifier(box).Publish(ctx, tt.note))

			require.Len(t, box.sent, 1)
			msg := box.sent[0]
			assert.Equal(t, "ada@example.com", msg.SendTo)
			assert.Equal(t, tt.wantSubject, msg.Subject)
			assert.Equal(t, tt.note.Name, msg.Tag)
			assert.Equal(t, tt.note.CustomerID, msg.Metadata["customer_id"])
			assert.Equal(t, strconv.FormatInt(tt.note.UserID, 10), msg.Metadata["user_id"])
			assert.NoError(t, msg.Validate())
			for _, s := range tt.wantBody {
				assert.Contains(t, msg.BodyHTML, s)
			}
		})
	}
}

func TestNotifier_PublishEscapesBody(t *testing.T) {
	t.Parallel()
	box := &outbox{}
	catalog := tier.New([]tier.Definition{
		{ID: "free", Name: "Free", Free: true},
		{ID: "gold", Name: "<b>Gold</b>", MonthlyPriceID: "price_gold_m"},
	})
	n := notify.New(box, lookup{"cus_1": "ada@example.com"}, catalog,
		notify.WithAppName("Tom & Jerry"), notify.WithSupportEmail(`help"@acme.test`))

	err := n.Publish(context.Background(), subscription.Notification{
		Name: subscription.NotifyPaymentFailed, UserID: 1, CustomerID: "cus_1", NewTier: "gold",
	})
	require.NoError(t, err)

	require.Len(t, box.sent, 1)
	msg := box.sent[0]
	assert.Equal(t, "Payment failed for your Tom & Jerry subscription", msg.Subject)
	assert.Contains(t, msg.BodyHTML, "your &lt;b&gt;Gold&lt;/b&gt; plan")
	assert.NotContains(t, msg.BodyHTML, "<b>Gold</b>")
	assert.Contains(t, msg.BodyHTML, "Tom &amp; Jerry billing")
	assert.Contains(t, msg.BodyHTML, `mailto:help&#34;@acme.test`)
}

func TestNotifier_PublishSkipsAndFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("notifications without template are ignored", func(t *testing.T) {
		t.Parallel()
		box := &outbox{}
		err := newNotifier(box).Publish(ctx, subscription.Notification{Name: subscription.NotifyTierChanged, CustomerID: "cus_1"})
		require.NoError(t, err)
		assert.Empty(t, box.sent)
	})

	errorCases := []struct {
		name     string
		customer string
		sendErr  error
		want     error
	}{
		{"no customer", "", nil, notify.ErrNoRecipient},
		{"customer without email", "cus_blank", nil, notify.ErrNoRecipient},
		{"send failure", "cus_1", email.ErrInvalidMessage, email.ErrInvalidMessage},
	}
	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			box := &outbox{err: tt.sendErr}
			err := newNotifier(box).Publish(ctx, subscription.Notification{
				Name: subscription.NotifyPaymentFailed, CustomerID: tt.customer, NewTier: "pro",
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("lookup failure", func(t *testing.T) {
		t.Parallel()
		err := newNotifier(&outbox{}).Publish(ctx, subscription.Notification{
			Name: subscription.NotifyPaymentFailed, CustomerID: "cus_err",
		})
		assert.ErrorContains(t, err, "gateway down")
	})
}

func TestNew_PanicsWithoutDependencies(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { notify.New(nil, lookup{}, tier.New(nil)) })
}
