package billing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/subsync/handler"
	"github.com/dmitrymomot/subsync/pkg/binder"
	"github.com/dmitrymomot/subsync/pkg/subscription"
)

var (
	errInvalidSignature = handler.NewHTTPError(http.StatusBadRequest, "invalid signature")
	errInvalidEvent     = handler.NewHTTPError(http.StatusBadRequest, "invalid event payload")
	errWebhookFailed    = handler.NewHTTPError(http.StatusInternalServerError, "webhook processing failed")
	errNoSubscription   = handler.NewHTTPError(http.StatusNotFound, "no subscription found")
	errNoRecord         = handler.NewHTTPError(http.StatusNotFound, "no subscription record for user")
	errInvalidUserID    = handler.NewHTTPError(http.StatusBadRequest, "invalid user id")
)

// classify maps binder and engine errors to client-facing HTTP errors.
func classify(err error) (handler.HTTPError, bool) {
	switch {
	case errors.Is(err, binder.ErrBodyTooLarge):
		return handler.ErrRequestEntityTooLarge, true
	case errors.Is(err, binder.ErrUnsupportedMediaType), errors.Is(err, binder.ErrMissingContentType):
		return handler.ErrUnsupportedMediaType, true
	case errors.Is(err, binder.ErrFailedToParseJSON), errors.Is(err, binder.ErrFailedToReadBody):
		return handler.ErrBadRequest, true
	case errors.Is(err, subscription.ErrUnauthenticated):
		return handler.ErrUnauthorized, true
	case errors.Is(err, subscription.ErrTierNotFound),
		errors.Is(err, subscription.ErrFreeTier),
		errors.Is(err, subscription.ErrPriceNotConfigured):
		return handler.NewHTTPError(http.StatusBadRequest, publicMessage(err)), true
	case errors.Is(err, subscription.ErrNoSubscription):
		return errNoSubscription, true
	case errors.Is(err, subscription.ErrRecordNotFound):
		return errNoRecord, true
	case errors.Is(err, subscription.ErrInvalidUserID):
		return errInvalidUserID, true
	case errors.Is(err, subscription.ErrGateway):
		return handler.ErrBadGateway, true
	}
	return handler.HTTPError{}, false
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, subscription.ErrTierNotFound):
		return "unknown tier"
	case errors.Is(err, subscription.ErrFreeTier):
		return "tier is free and cannot be purchased"
	default:
		return "tier is not available for this billing period"
	}
}
