// Package requestid attaches a correlation id to every HTTP request.
//
// Middleware reuses a well-formed X-Request-ID header or generates a UUID,
// echoes it in the response and stores it with logger.WithRequestID so that
// loggers built with logger.RequestIDExtractor tag every record of the request.
//
//	r := chi.NewRouter()
//	r.Use(requestid.Middleware)
//
// Invalid or oversized client ids are replaced, never rejected.
package requestid
