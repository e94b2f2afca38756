package subscription

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRecordNotFound     = errors.New("subscription record not found")
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrUnresolvedUser     = errors.New("could not resolve local user for gateway event")
	ErrTierNotFound       = errors.New("tier not found")
	ErrFreeTier           = errors.New("tier is free and cannot be purchased")
	ErrPriceNotConfigured = errors.New("no price configured for tier and billing period")
	ErrNoSubscription     = errors.New("no subscription found")
	ErrUnauthenticated    = errors.New("authenticated user required")
	ErrGateway            = errors.New("payment gateway error")
	ErrInvalidEvent       = errors.New("invalid gateway event")

	ErrMissingAPIKey                 = errors.New("stripe secret key is required")
	ErrUnknownEntitlementsProvider   = errors.New("unknown entitlements provider")
	ErrStaticEntitlementsTierMissing = errors.New("static entitlements provider requires a tier")
)

// UnresolvedUserError reports which hints were tried when no local user matched
// a checkout session.
type UnresolvedUserError struct {
	EventID        string
	SubscriptionID string
	CustomerID     string
	Email          string
}

func (e *UnresolvedUserError) Error() string {
	var hints []string
	if e.SubscriptionID != "" {
		hints = append(hints, "subscription="+e.SubscriptionID)
	}
	if e.CustomerID != "" {
		hints = append(hints, "customer="+e.CustomerID)
	}
	if e.Email != "" {
		hints = append(hints, "email="+e.Email)
	}
	if len(hints) == 0 {
		hints = append(hints, "no hints")
	}
	return fmt.Sprintf("%s: event %s (%s)", ErrUnresolvedUser, e.EventID, strings.Join(hints, ", "))
}

func (e *UnresolvedUserError) Unwrap() error { return ErrUnresolvedUser }
