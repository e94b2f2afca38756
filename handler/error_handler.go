package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/subsync/pkg/logger"
	"github.com/dmitrymomot/subsync/pkg/validator"
)

// ErrorInfo contains classified error information
type ErrorInfo struct {
	StatusCode int
	Message    string
	Details    map[string][]string
	LogLevel   slog.Level
}

// Classifier maps domain errors to HTTP errors. It reports false for errors it
// does not recognize.
type Classifier func(err error) (HTTPError, bool)

func isClientError(statusCode int) bool {
	return statusCode >= http.StatusBadRequest && statusCode < http.StatusInternalServerError
}

func determineLogLevel(statusCode int) slog.Level {
	if isClientError(statusCode) {
		return slog.LevelWarn
	}
	return slog.LevelError
}

func classifyError(err error, classifiers ...Classifier) ErrorInfo {
	info := ErrorInfo{
		StatusCode: http.StatusInternalServerError,
		Message:    ErrInternalServerError.Message,
	}

	var httpErr HTTPError
	var validationErr validator.ValidationErrors
	switch {
	case errors.As(err, &validationErr):
		info.StatusCode = http.StatusBadRequest
		info.Message = "validation failed"
		info.Details = validationErr.Map()
	case errors.As(err, &httpErr):
		info.StatusCode = httpErr.Code
		info.Message = httpErr.Message
	default:
		for _, classify := range classifiers {
			if classify == nil {
				continue
			}
			if he, ok := classify(err); ok {
				info.StatusCode = he.Code
				info.Message = he.Message
				break
			}
		}
	}

	info.LogLevel = determineLogLevel(info.StatusCode)
	return info
}

func logError(log *slog.Logger, ctx Context, err error, info ErrorInfo) {
	r := ctx.Request()
	log.LogAttrs(r.Context(), info.LogLevel, "request error",
		logger.RequestID(ctx.RequestID()),
		logger.Error(err),
		slog.Int("status_code", info.StatusCode),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		logger.Component("error_handler"),
	)
}

// NewErrorHandler creates an error handler that logs the error and renders it
// as JSON. Classifiers are consulted in order for errors that are neither
// HTTPError nor validator.ValidationErrors.
func NewErrorHandler(log *slog.Logger, classifiers ...Classifier) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx Context, err error) {
		info := classifyError(err, classifiers...)
		logError(log, ctx, err, info)

		if renderErr := errorResponse(info).Render(ctx.ResponseWriter(), ctx.Request()); renderErr != nil {
			log.Error("failed to render error response",
				logger.Error(renderErr),
				logger.Component("error_handler"),
			)
		}
	}
}
