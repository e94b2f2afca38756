// Package handler adapts typed request handlers to net/http for JSON APIs.
//
// A HandlerFunc receives a Context and a bound request value and returns a
// Response. Wrap turns it into an http.HandlerFunc, running binders before the
// handler and routing binder, handler and render failures to an ErrorHandler:
//
//	type checkoutRequest struct {
//		Tier string `json:"tier"`
//	}
//
//	h := handler.HandlerFunc[handler.Context, checkoutRequest](
//		func(ctx handler.Context, req checkoutRequest) handler.Response {
//			if err := validator.Apply(validator.RequiredString("tier", req.Tier)); err != nil {
//				return handler.JSONError(err)
//			}
//			return handler.JSON(map[string]string{"url": "https://..."})
//		},
//	)
//	r.Post("/checkout", handler.Wrap(h, handler.WithBinder[handler.Context, checkoutRequest](binder.JSON())))
//
// Errors are rendered as {"error": "..."}. HTTPError selects the status and
// the public message; validator.ValidationErrors renders as 400 with
// per-field details.
// Anything else becomes a 500 with a generic message so internals never leak.
package handler
