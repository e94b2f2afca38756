// Package logger builds log/slog loggers for the service.
//
// New returns a *slog.Logger configured through functional options. Output is JSON
// by default; WithEnvironment switches to human-readable text with debug level for
// development. Context extractors let request-scoped values (request id, user id)
// land on every record without threading them through each call:
//
//	log := logger.New(
//		logger.WithEnvironment(environment.Production, "subsyncd"),
//		logger.WithContextExtractors(logger.RequestIDExtractor()),
//	)
//	log.InfoContext(ctx, "subscription reconciled",
//		logger.UserID(42), logger.Tier("pro"), logger.Status("active"))
//
// The attribute helpers keep key names consistent across packages.
package logger
