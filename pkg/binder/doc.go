// Package binder reads HTTP request bodies for JSON handlers.
//
// JSON decodes a strict JSON body into a struct: the media type must be
// application/json, unknown fields are rejected and the body is capped.
// Body reads a raw body under the same cap, for handlers that must see the
// exact bytes, such as signed webhooks.
//
//	var req CheckoutRequest
//	if err := binder.JSON()(r, &req); err != nil {
//		// 400 or 413
//	}
//
//	payload, err := binder.Body(r, binder.DefaultMaxBodySize)
package binder
