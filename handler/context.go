package handler

import (
	"context"
	"net/http"

	"github.com/dmitrymomot/subsync/pkg/logger"
)

// Context is the per-request context handed to every HandlerFunc. It is the
// request's own context.Context plus the raw request and response writer.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
	// RequestID returns the correlation id assigned by the requestid
	// middleware, or "" when the request never passed through it.
	RequestID() string
}

// NewContext creates a Context bound to r's context at call time.
func NewContext(w http.ResponseWriter, r *http.Request) Context {
	return &httpContext{Context: r.Context(), w: w, r: r}
}

type httpContext struct {
	context.Context
	w http.ResponseWriter
	r *http.Request
}

func (c *httpContext) Request() *http.Request              { return c.r }
func (c *httpContext) ResponseWriter() http.ResponseWriter { return c.w }

func (c *httpContext) RequestID() string {
	id, _ := logger.RequestIDFromContext(c.Context)
	return id
}

// ContextKey is a typed context key; distinct pointers never collide.
type ContextKey struct{ name string }

func (c *ContextKey) String() string { return c.name }

// NewContextKey creates a new context key.
//
//	var userKey = handler.NewContextKey("billing.user")
func NewContextKey(name string) *ContextKey {
	return &ContextKey{name}
}

// ContextValue returns the value stored under key, or the zero T when it is
// missing or of another type.
func ContextValue[T any](ctx context.Context, key any) T {
	val, _ := ctx.Value(key).(T)
	return val
}

// ContextValueOK is ContextValue with a presence flag.
func ContextValueOK[T any](ctx context.Context, key any) (T, bool) {
	val, ok := ctx.Value(key).(T)
	return val, ok
}
