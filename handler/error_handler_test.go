package handler_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/subsync/handler"
)

var errNoSubscription = errors.New("no subscription")

func TestNewErrorHandler(t *testing.T) {
	t.Parallel()

	classify := func(err error) (handler.HTTPError, bool) {
		if errors.Is(err, errNoSubscription) {
			return handler.ErrNotFound, true
		}
		return handler.HTTPError{}, false
	}

	tests := []struct {
		name   string
		err    error
		status int
		msg    string
		level  string
	}{
		{"classified", fmt.Errorf("portal: %w", errNoSubscription), http.StatusNotFound, "not found", "WARN"},
		{"http error wins", handler.ErrBadGateway, http.StatusBadGateway, "payment provider unavailable", "ERROR"},
		{"unclassified", errors.New("disk full"), http.StatusInternalServerError, "internal server error", "ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var logs bytes.Buffer
			log := slog.New(slog.NewTextHandler(&logs, nil))
			errs := handler.NewErrorHandler(log, nil, classify)

			rec := httptest.NewRecorder()
			errs(handler.NewContext(rec, httptest.NewRequest(http.MethodPost, "/portal", nil)), tt.err)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.msg, decodeError(t, rec).Error)
			assert.Contains(t, logs.String(), "level="+tt.level)
			assert.Contains(t, logs.String(), "path=/portal")
		})
	}
}
