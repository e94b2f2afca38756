// Package notify emails customers about billing events the reconciliation
// engine publishes: an ending trial, a failed payment and a cancellation.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/subsync/pkg/email"
	"github.com/dmitrymomot/subsync/pkg/email/templates"
	"github.com/dmitrymomot/subsync/pkg/logger"
	"github.com/dmitrymomot/subsync/pkg/subscription"
	"github.com/dmitrymomot/subsync/pkg/tier"
)

var (
	ErrNoRecipient    = errors.New("notification has no resolvable recipient")
	ErrRenderTemplate = errors.New("failed to render email template")
)

// EmailLookup resolves the address on file for a gateway customer.
type EmailLookup interface {
	CustomerEmail(ctx context.Context, customerID string) (string, error)
}

// Notifier is a subscription.Publisher that sends customer emails.
type Notifier struct {
	sender  email.Sender
	lookup  EmailLookup
	catalog tier.Catalog
	log     *slog.Logger
	appName string
	support string
}

type Option func(*Notifier)

func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) {
		if l != nil {
			n.log = l
		}
	}
}

// WithAppName sets the product name used in subjects and bodies.
func WithAppName(name string) Option {
	return func(n *Notifier) {
		if name != "" {
			n.appName = name
		}
	}
}

// WithSupportEmail sets the reply address shown in the footer.
func WithSupportEmail(addr string) Option {
	return func(n *Notifier) { n.support = addr }
}

func New(sender email.Sender, lookup EmailLookup, catalog tier.Catalog, opts ...Option) *Notifier {
	if sender == nil || lookup == nil || catalog == nil {
		panic("notify: sender, lookup and catalog are required")
	}
	n := &Notifier{
		sender:  sender,
		lookup:  lookup,
		catalog: catalog,
		log:     logger.Discard(),
		appName: "Subsync",
	}
	for _, opt := range opts {
		opt(n)
	}
	n.log = n.log.With(logger.Component("notify"))
	return n
}

// Publish implements subscription.Publisher. Notifications without an email
// template are ignored.
func (n *Notifier) Publish(ctx context.Context, note subscription.Notification) error {
	msg, ok := messages[note.Name]
	if !ok {
		return nil
	}
	if note.CustomerID == "" {
		return fmt.Errorf("%w: %s for user %d", ErrNoRecipient, note.Name, note.UserID)
	}

	to, err := n.lookup.CustomerEmail(ctx, note.CustomerID)
	if err != nil {
		return fmt.Errorf("notify: lookup customer email: %w", err)
	}
	if to == "" {
		return fmt.Errorf("%w: customer %s has no email", ErrNoRecipient, note.CustomerID)
	}

	data := n.viewData(note)
	subject, err := templates.Render(ctx, msg.subject(data))
	if err != nil {
		return errors.Join(ErrRenderTemplate, err)
	}
	body, err := templates.Render(ctx, msg.body(data))
	if err != nil {
		return errors.Join(ErrRenderTemplate, err)
	}

	if err := n.sender.SendEmail(ctx, email.SendEmailParams{
		SendTo:   to,
		Subject:  strings.TrimSpace(subject),
		BodyHTML: body,
		Tag:      note.Name,
		Metadata: map[string]string{
			"user_id":     strconv.FormatInt(note.UserID, 10),
			"customer_id": note.CustomerID,
		},
	}); err != nil {
		return fmt.Errorf("notify: send %s: %w", note.Name, err)
	}

	n.log.InfoContext(ctx, "billing email sent",
		logger.Notification(note.Name), logger.UserID(note.UserID), logger.CustomerID(note.CustomerID))
	return nil
}

type viewData struct {
	AppName   string
	Support   string
	Tier      string
	OldTier   string
	TrialEnds string
}

func (n *Notifier) viewData(note subscription.Notification) viewData {
	d := viewData{
		AppName: n.appName,
		Support: n.support,
		Tier:    n.tierName(note.NewTier),
		OldTier: n.tierName(note.OldTier),
	}
	if end, ok := note.Data["trial_end"].(time.Time); ok {
		d.TrialEnds = end.UTC().Format("January 2, 2006")
	}
	return d
}

func (n *Notifier) tierName(id string) string {
	if id == "" {
		return ""
	}
	if def, ok := n.catalog.Tier(id); ok && def.Name != "" {
		return def.Name
	}
	// Casers hold state, so one is made per call.
	return cases.Title(language.English).String(strings.NewReplacer("_", " ", "-", " ").Replace(id))
}
