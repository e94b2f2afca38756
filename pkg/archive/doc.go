// Package archive stores raw webhook deliveries in S3 or an S3-compatible
// service so they can be audited or replayed later.
//
// Every delivery is written as its own object, keyed by day, event type and
// event id:
//
//	<prefix>2025/03/01/invoice.paid/evt_123/6f1c...e2.json
//
// Archiving is best effort from the caller's point of view: the webhook
// handler logs archive failures and carries on with reconciliation.
//
// # Usage
//
//	arc, err := archive.New(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	key, err := arc.Archive(ctx, archive.Entry{
//		EventID:  "evt_123",
//		Kind:     "invoice.paid",
//		Received: time.Now(),
//		Payload:  body,
//	})
//
// Use WithS3Client to plug in a mock or a pre-configured client.
package archive
