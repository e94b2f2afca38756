package notify

import (
	"context"
	"io"

	"github.com/a-h/templ"

	"github.com/dmitrymomot/subsync/pkg/subscription"
)

// message builds the subject line and the HTML body of one email.
type message struct {
	subject func(viewData) templ.Component
	body    func(viewData) templ.Component
}

var messages = map[string]message{
	subscription.NotifyTrialWillEnd: {
		subject: func(d viewData) templ.Component {
			return plain("Your " + d.AppName + " trial ends soon")
		},
		body: func(d viewData) templ.Component {
			plan := d.OldTier
			if plan == "" {
				plan = d.AppName
			}
			when := "in a few days"
			if d.TrialEnds != "" {
				when = "on " + d.TrialEnds
			}
			return layout(d, func(p *page) {
				p.raw("<p>Your ").text(plan).raw(" trial ends ").text(when).
					raw(".\nMake sure a payment method is on file to keep your plan without interruption.</p>\n")
			})
		},
	},

	subscription.NotifyPaymentFailed: {
		subject: func(d viewData) templ.Component {
			return plain("Payment failed for your " + d.AppName + " subscription")
		},
		body: func(d viewData) templ.Component {
			return layout(d, func(p *page) {
				p.raw("<p>We could not collect the latest payment for your ").text(d.Tier).
					raw(" plan. Please update your payment method from the billing portal; we will retry automatically.</p>\n")
			})
		},
	},

	subscription.NotifySubscriptionCanceled: {
		subject: func(d viewData) templ.Component {
			return plain("Your " + d.AppName + " subscription has ended")
		},
		body: func(d viewData) templ.Component {
			return layout(d, func(p *page) {
				p.raw("<p>Your ")
				if d.OldTier != "" {
					p.text(d.OldTier).raw(" ")
				}
				p.raw("subscription has ended and your account is now on the ").text(d.Tier).
					raw(" plan. You can subscribe again at any time.</p>\n")
			})
		},
	},
}

// plain is a subject line. Subjects are not HTML, so nothing is escaped.
func plain(s string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, s)
		return err
	})
}

// layout wraps content in the greeting and the footer.
func layout(d viewData, content func(*page)) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		p := &page{w: w}
		p.raw("<p>Hi,</p>\n")
		content(p)
		p.raw(`<p style="color:#666;font-size:12px">`).text(d.AppName).raw(" billing")
		if d.Support != "" {
			p.raw(` · questions? <a href="mailto:`).text(d.Support).raw(`">`).text(d.Support).raw("</a>")
		}
		p.raw("</p>")
		return p.err
	})
}

// page writes markup and keeps the first write error.
type page struct {
	w   io.Writer
	err error
}

func (p *page) raw(s string) *page {
	if p.err == nil {
		_, p.err = io.WriteString(p.w, s)
	}
	return p
}

// text writes s with HTML escaping.
func (p *page) text(s string) *page {
	return p.raw(templ.EscapeString(s))
}
