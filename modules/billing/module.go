package billing

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/subsync/handler"
	"github.com/dmitrymomot/subsync/pkg/archive"
	"github.com/dmitrymomot/subsync/pkg/binder"
	"github.com/dmitrymomot/subsync/pkg/subscription"
)

// Engine is the part of subscription.Engine the module calls.
type Engine interface {
	Apply(ctx context.Context, ev subscription.Event) (subscription.Result, error)
	Checkout(ctx context.Context, req subscription.CheckoutRequest) (*subscription.CheckoutLink, error)
	Portal(ctx context.Context, userID int64) (*subscription.PortalLink, error)
}

// Verifier authenticates webhook payloads against the signature header.
type Verifier interface {
	Verify(payload []byte, header string) error
}

// Module serves the billing routes.
type Module struct {
	engine       Engine
	verifier     Verifier
	archiver     archive.Archiver
	entitlements subscription.Entitlements
	hooks        AccountHooks
	hooksToken   string
	metrics      *Metrics
	log          *slog.Logger
	errs         handler.ErrorHandler[handler.Context]
	maxBody      int64
	now          func() time.Time
}

// Option configures a Module.
type Option func(*Module)

// WithArchiver stores every verified delivery before it is applied.
func WithArchiver(a archive.Archiver) Option {
	return func(m *Module) {
		if a != nil {
			m.archiver = a
		}
	}
}

// WithEntitlements enables GET /entitlements.
func WithEntitlements(e subscription.Entitlements) Option {
	return func(m *Module) { m.entitlements = e }
}

func WithMetrics(metrics *Metrics) Option {
	return func(m *Module) { m.metrics = metrics }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Module) {
		if l != nil {
			m.log = l
		}
	}
}

// WithMaxBodySize overrides binder.DefaultMaxBodySize for webhook and JSON bodies.
func WithMaxBodySize(n int64) Option {
	return func(m *Module) {
		if n > 0 {
			m.maxBody = n
		}
	}
}

// New creates the module. It panics if engine or verifier is nil.
func New(engine Engine, verifier Verifier, opts ...Option) *Module {
	if engine == nil {
		panic("billing: engine is required")
	}
	if verifier == nil {
		panic("billing: webhook verifier is required")
	}

	m := &Module{
		engine:   engine,
		verifier: verifier,
		archiver: archive.Discard{},
		log:      slog.Default(),
		maxBody:  binder.DefaultMaxBodySize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(slog.String("component", "billing"))
	m.errs = handler.NewErrorHandler(m.log, classify)
	return m
}

// Handle returns the module router.
func (m *Module) Handle() http.Handler {
	r := chi.NewRouter()

	r.Post("/webhook", handler.Wrap(handler.HandlerFunc[handler.Context, webhookRequest](m.webhook),
		handler.WithBinder[handler.Context, webhookRequest](bindWebhook(m.maxBody)),
		handler.WithErrorHandler[handler.Context, webhookRequest](m.errs),
	))

	r.Group(func(r chi.Router) {
		r.Use(RequireUser)

		r.Post("/checkout", handler.Wrap(handler.HandlerFunc[handler.Context, checkoutRequest](m.checkout),
			handler.WithBinder[handler.Context, checkoutRequest](binder.JSON(binder.WithMaxSize(m.maxBody))),
			handler.WithErrorHandler[handler.Context, checkoutRequest](m.errs),
		))

		r.Post("/portal", handler.Wrap(handler.HandlerFunc[handler.Context, struct{}](m.portal),
			handler.WithErrorHandler[handler.Context, struct{}](m.errs),
		))

		if m.entitlements != nil {
			r.Get("/entitlements", handler.Wrap(handler.HandlerFunc[handler.Context, struct{}](m.entitlementsOf),
				handler.WithErrorHandler[handler.Context, struct{}](m.errs),
			))
		}
	})

	if m.hooks != nil {
		r.Route("/internal", m.hookRoutes)
	}

	return r
}
