// Package webhook signs and verifies webhook payloads using the timestamped
// HMAC-SHA256 scheme used by Stripe.
//
// The signature header has the form
//
//	t=1700000000,v1=5257a869e7ecebeda32affa62cdca3fa51cad7e77a0e56ff536d0ce8e108d8bd
//
// where v1 is hex(HMAC-SHA256(secret, "<t>.<payload>")). Several v1 entries may be
// present during secret rotation; any match is accepted.
//
//	v := webhook.NewVerifier(secret, webhook.WithTolerance(5*time.Minute))
//	if err := v.Verify(body, r.Header.Get(webhook.SignatureHeader)); err != nil {
//		// reject with 400
//	}
//
// Sign produces a header for tests and for forwarding signed payloads.
package webhook
