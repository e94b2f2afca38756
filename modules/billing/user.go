package billing

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/dmitrymomot/subsync/handler"
	"github.com/dmitrymomot/subsync/pkg/logger"
)

// Headers read by HeaderUser.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// User is the authenticated caller.
type User struct {
	ID    int64
	Email string
}

var userKey = handler.NewContextKey("billing.user")

// WithUser stores the authenticated caller in ctx.
func WithUser(ctx context.Context, u User) context.Context {
	return logger.WithUserID(context.WithValue(ctx, userKey, u), u.ID)
}

// UserFromContext returns the caller stored by WithUser.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := handler.ContextValueOK[User](ctx, userKey)
	return u, ok && u.ID > 0
}

// HeaderUser trusts identity headers set by an authenticating proxy in front
// of the service. Requests without a valid X-User-ID pass through anonymous.
func HeaderUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(HeaderUserID)), 10, 64)
		if err == nil && id > 0 {
			u := User{ID: id, Email: strings.TrimSpace(r.Header.Get(HeaderUserEmail))}
			r = r.WithContext(WithUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireUser rejects anonymous calls with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFromContext(r.Context()); !ok {
			_ = handler.JSONError(handler.ErrUnauthorized).Render(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
