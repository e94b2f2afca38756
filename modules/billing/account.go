package billing

import (
	"strings"
	"time"

	"github.com/dmitrymomot/subsync/handler"
	"github.com/dmitrymomot/subsync/pkg/subscription"
	"github.com/dmitrymomot/subsync/pkg/tier"
	"github.com/dmitrymomot/subsync/pkg/validator"
)

const maxTierIDLength = 64

type checkoutRequest struct {
	Tier          string `json:"tier"`
	BillingPeriod string `json:"billing_period"`
}

type urlResponse struct {
	URL string `json:"url"`
}

type entitlementsResponse struct {
	Tier      string     `json:"tier"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

func (m *Module) checkout(ctx handler.Context, req checkoutRequest) handler.Response {
	user, _ := UserFromContext(ctx)

	tierID := strings.TrimSpace(req.Tier)
	period, periodOK := tier.ParsePeriod(req.BillingPeriod)
	if err := validator.Apply(
		validator.RequiredString("tier", tierID),
		validator.MaxLenString("tier", tierID, maxTierIDLength),
		validator.Valid("billing_period", periodOK, "must be monthly or yearly"),
	); err != nil {
		return handler.JSONError(err)
	}

	link, err := m.engine.Checkout(ctx, subscription.CheckoutRequest{
		UserID: user.ID,
		Email:  user.Email,
		Tier:   tierID,
		Period: period,
	})
	m.metrics.observeSession("checkout", err)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(urlResponse{URL: link.URL})
}

func (m *Module) portal(ctx handler.Context, _ struct{}) handler.Response {
	user, _ := UserFromContext(ctx)

	link, err := m.engine.Portal(ctx, user.ID)
	m.metrics.observeSession("portal", err)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(urlResponse{URL: link.URL})
}

func (m *Module) entitlementsOf(ctx handler.Context, _ struct{}) handler.Response {
	user, _ := UserFromContext(ctx)

	tierID, err := m.entitlements.UserTier(ctx, user.ID)
	if err != nil {
		return handler.Fail(err)
	}
	active, err := m.entitlements.IsActive(ctx, user.ID)
	if err != nil {
		return handler.Fail(err)
	}
	expiry, err := m.entitlements.Expiry(ctx, user.ID)
	if err != nil {
		return handler.Fail(err)
	}
	return handler.JSON(entitlementsResponse{Tier: tierID, Active: active, ExpiresAt: expiry})
}
