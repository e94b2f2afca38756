// Package billing exposes the subscription engine over HTTP.
//
// Routes, relative to where the module is mounted:
//
//	POST /webhook       signed gateway deliveries
//	POST /checkout      {"tier": "pro", "billing_period": "yearly"} -> {"url": "..."}
//	POST /portal        -> {"url": "..."}
//	GET  /entitlements  current tier, access and expiry of the caller
//
//	POST   /internal/users/registered         {"user_id": 7, "email": "..."}
//	POST   /internal/users/{id}/login
//	POST   /internal/users/{id}/reset-trial
//	DELETE /internal/users/{id}
//
// Webhooks authenticate with the Stripe-Signature header. The /internal
// routes exist only with WithAccountHooks and require its bearer token. The
// other routes need a user in the request context, placed there by WithUser
// or by the HeaderUser middleware when an upstream proxy authenticates callers.
//
//	m := billing.New(engine, webhook.NewVerifier(secret),
//		billing.WithArchiver(archiver),
//		billing.WithEntitlements(ents),
//		billing.WithMetrics(metrics),
//		billing.WithLogger(log),
//		billing.WithAccountHooks(engine, hooksToken),
//	)
//	r.Mount("/billing", m.Handle())
package billing
