package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/subsync/handler"
	"github.com/dmitrymomot/subsync/pkg/binder"
	"github.com/dmitrymomot/subsync/pkg/logger"
)

type mockResponse struct {
	statusCode int
	body       string
	renderErr  error
}

func (m mockResponse) Render(w http.ResponseWriter, r *http.Request) error {
	if m.renderErr != nil {
		return m.renderErr
	}
	w.WriteHeader(m.statusCode)
	_, _ = w.Write([]byte(m.body))
	return nil
}

type tierRequest struct {
	Tier string `json:"tier"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorBody {
	t.Helper()
	var body handler.ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWrap(t *testing.T) {
	t.Parallel()

	t.Run("basic handler without options", func(t *testing.T) {
		t.Parallel()
		h := handler.HandlerFunc[handler.Context, string](func(ctx handler.Context, req string) handler.Response {
			assert.NotNil(t, ctx.Request())
			assert.Empty(t, req)
			return mockResponse{statusCode: http.StatusOK, body: "success"}
		})

		rec := httptest.NewRecorder()
		handler.Wrap(h)(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "success", rec.Body.String())
	})

	t.Run("binder output reaches the handler", func(t *testing.T) {
		t.Parallel()
		h := handler.HandlerFunc[handler.Context, tierRequest](func(ctx handler.Context, req tierRequest) handler.Response {
			return handler.JSON(map[string]string{"tier": req.Tier})
		})
		wrapped := handler.Wrap(h, handler.WithBinder[handler.Context, tierRequest](binder.JSON()))

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"tier":"pro"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		wrapped(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"tier":"pro"}`, rec.Body.String())
	})

	t.Run("binder error goes to error handler", func(t *testing.T) {
		t.Parallel()
		called := false
		h := handler.HandlerFunc[handler.Context, tierRequest](func(ctx handler.Context, req tierRequest) handler.Response {
			called = true
			return handler.JSON(nil)
		})
		var got error
		wrapped := handler.Wrap(h,
			handler.WithBinder[handler.Context, tierRequest](binder.JSON()),
			handler.WithErrorHandler[handler.Context, tierRequest](func(ctx handler.Context, err error) {
				got = err
				ctx.ResponseWriter().WriteHeader(http.StatusTeapot)
			}),
		)

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"tier":`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		wrapped(rec, req)

		assert.False(t, called)
		assert.ErrorIs(t, got, binder.ErrFailedToParseJSON)
		assert.Equal(t, http.StatusTeapot, rec.Code)
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()
		h := handler.HandlerFunc[handler.Context, string](func(ctx handler.Context, req string) handler.Response {
			return nil
		})
		rec := httptest.NewRecorder()
		handler.Wrap(h)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "internal server error", decodeError(t, rec).Error)
	})

	t.Run("render error does not leak", func(t *testing.T) {
		t.Parallel()
		h := handler.HandlerFunc[handler.Context, string](func(ctx handler.Context, req string) handler.Response {
			return mockResponse{renderErr: errors.New("db password is hunter2")}
		})
		rec := httptest.NewRecorder()
		handler.Wrap(h)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "hunter2")
	})

	t.Run("fail routes to error handler", func(t *testing.T) {
		t.Parallel()
		h := handler.HandlerFunc[handler.Context, string](func(ctx handler.Context, req string) handler.Response {
			return handler.Fail(handler.ErrBadGateway)
		})
		rec := httptest.NewRecorder()
		handler.Wrap(h)(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "payment provider unavailable", decodeError(t, rec).Error)
	})

	t.Run("decorators run outermost first", func(t *testing.T) {
		t.Parallel()
		var order []string
		mark := func(name string) handler.Decorator[handler.Context, string] {
			return func(next handler.HandlerFunc[handler.Context, string]) handler.HandlerFunc[handler.Context, string] {
				return func(ctx handler.Context, req string) handler.Response {
					order = append(order, name)
					return next(ctx, req)
				}
			}
		}
		h := handler.HandlerFunc[handler.Context, string](func(ctx handler.Context, req string) handler.Response {
			order = append(order, "handler")
			return handler.JSON(nil)
		})
		rec := httptest.NewRecorder()
		handler.Wrap(h, handler.WithDecorators(mark("first"), mark("second")))(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, []string{"first", "second", "handler"}, order)
	})
}

func TestContextValue(t *testing.T) {
	t.Parallel()

	key := handler.NewContextKey("user")
	assert.Equal(t, "user", key.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), key, int64(42)))
	ctx := handler.NewContext(httptest.NewRecorder(), req)

	assert.Equal(t, int64(42), handler.ContextValue[int64](ctx, key))
	_, ok := handler.ContextValueOK[string](ctx, key)
	assert.False(t, ok)
	assert.Zero(t, handler.ContextValue[int64](ctx, handler.NewContextKey("other")))
	assert.Empty(t, ctx.RequestID())

	req = req.WithContext(logger.WithRequestID(req.Context(), "req-1"))
	assert.Equal(t, "req-1", handler.NewContext(httptest.NewRecorder(), req).RequestID())
}
