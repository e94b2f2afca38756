// Package subscription keeps a local per-user subscription record consistent
// with a payment gateway's webhook stream.
//
// The Engine consumes gateway events (checkout completed, subscription created,
// updated, deleted, trial ending, invoice paid or failed) and synchronous entry
// points (checkout, billing portal, registration, login sync) and writes the
// result through a Store. Every handler derives absolute field values from the
// payload it receives, so redelivered or reordered events converge by literal
// overwrite: no event-id dedup table is needed.
//
// # Records
//
// A Record holds the user's tier, status, billing period and whether a trial has
// been used. Status is one of active, trialing, past_due, canceled, inactive or
// none; only active and trialing grant entitlement. TrialUsed only moves from
// false to true; every Store enforces this at the storage layer and only
// ResetTrial clears it.
//
// Writes go through Store.Upsert with a Patch, which distinguishes "not set" from
// a zero value:
//
//	rec, err := store.Upsert(ctx, userID, subscription.Patch{
//		Status:     subscription.Set(subscription.StatusPastDue),
//		CanceledAt: subscription.Set[*time.Time](nil),
//	})
//
// MemoryStore, PostgresStore and MongoStore implement Store; IndexedStore adds a
// Redis or in-memory secondary index for gateway id lookups.
//
// # Engine
//
//	engine := subscription.NewEngine(store, catalog, gateway,
//		subscription.WithConfig(cfg),
//		subscription.WithPublisher(notifier),
//		subscription.WithLogger(log),
//	)
//
//	ev, err := subscription.ParseEvent(body)
//	if err != nil {
//		// malformed payload: reject with 400
//	}
//	res, err := engine.Apply(ctx, ev)
//
// Apply returns an ignored Result, not an error, for conditions the gateway
// cannot fix by retrying: unknown event kinds, users that cannot be resolved,
// prices missing from the catalog. Errors mean storage or gateway I/O failed,
// or a checkout session could not be tied to a local user.
//
// # Notifications
//
// Tier and status changes are published through a Publisher. Publishing is best
// effort: errors and panics are logged and never fail the reconciliation.
package subscription
